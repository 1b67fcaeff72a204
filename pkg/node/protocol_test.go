package node

import (
	"context"
	"errors"
	"testing"
)

type fakeNativeHandler struct{}

func (fakeNativeHandler) GetProviders(ctx context.Context, rootCID string) ([]string, error) {
	return []string{"peerA"}, nil
}
func (fakeNativeHandler) FetchChunk(ctx context.Context, rootCID string, index int) ([]byte, error) {
	return []byte("chunk"), nil
}
func (fakeNativeHandler) StartSeeding(ctx context.Context, rootCID string) error { return nil }
func (fakeNativeHandler) StopSeeding(ctx context.Context, rootCID string) error  { return nil }

func TestHandlerRegistryDispatchesNativeAndEmptyToRealHandler(t *testing.T) {
	reg := newHandlerRegistry(fakeNativeHandler{})

	for _, p := range []Protocol{ProtocolNative, ""} {
		h := reg.Handler(p)
		if _, ok := h.(fakeNativeHandler); !ok {
			t.Fatalf("expected native handler for protocol %q, got %T", p, h)
		}
	}
}

func TestHandlerRegistryStubsUnsupportedProtocols(t *testing.T) {
	reg := newHandlerRegistry(fakeNativeHandler{})
	ctx := context.Background()

	for _, p := range []Protocol{ProtocolBitTorrent, ProtocolHTTP, ProtocolFTP, ProtocolED2K} {
		h := reg.Handler(p)
		if _, err := h.GetProviders(ctx, "root"); !errors.Is(err, ErrUnsupportedProtocol) {
			t.Fatalf("protocol %q: expected ErrUnsupportedProtocol, got %v", p, err)
		}
		if _, err := h.FetchChunk(ctx, "root", 0); !errors.Is(err, ErrUnsupportedProtocol) {
			t.Fatalf("protocol %q: expected ErrUnsupportedProtocol from FetchChunk", p)
		}
		if err := h.StartSeeding(ctx, "root"); !errors.Is(err, ErrUnsupportedProtocol) {
			t.Fatalf("protocol %q: expected ErrUnsupportedProtocol from StartSeeding", p)
		}
		if err := h.StopSeeding(ctx, "root"); !errors.Is(err, ErrUnsupportedProtocol) {
			t.Fatalf("protocol %q: expected ErrUnsupportedProtocol from StopSeeding", p)
		}
	}
}
