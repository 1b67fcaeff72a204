package node

import "context"

// Protocol is the tagged variant spec §9's design note calls for: the
// front-end treats content protocols as a capability set rather than a
// fixed enum of behaviors.
type Protocol string

const (
	ProtocolNative      Protocol = "native"
	ProtocolBitTorrent  Protocol = "bittorrent"
	ProtocolHTTP        Protocol = "http"
	ProtocolFTP         Protocol = "ftp"
	ProtocolED2K        Protocol = "ed2k"
)

// ErrUnsupportedProtocol is returned by every non-native handler.
var ErrUnsupportedProtocol = Newf(KindConfigInvalid, "protocol", nil, "protocol not supported by this build")

// ProtocolHandler is the uniform capability interface spec §9 calls for:
// {get_providers, fetch_chunk, start_seeding, stop_seeding}.
type ProtocolHandler interface {
	GetProviders(ctx context.Context, rootCID string) ([]string, error)
	FetchChunk(ctx context.Context, rootCID string, index int) ([]byte, error)
	StartSeeding(ctx context.Context, rootCID string) error
	StopSeeding(ctx context.Context, rootCID string) error
}

// stubHandler answers every capability with ErrUnsupportedProtocol,
// mirroring the teacher's own unfinished protocol parameter on
// publish_file — Native is the only implemented path in this module.
type stubHandler struct{}

func (stubHandler) GetProviders(ctx context.Context, rootCID string) ([]string, error) {
	return nil, ErrUnsupportedProtocol
}

func (stubHandler) FetchChunk(ctx context.Context, rootCID string, index int) ([]byte, error) {
	return nil, ErrUnsupportedProtocol
}

func (stubHandler) StartSeeding(ctx context.Context, rootCID string) error {
	return ErrUnsupportedProtocol
}

func (stubHandler) StopSeeding(ctx context.Context, rootCID string) error {
	return ErrUnsupportedProtocol
}

// handlerRegistry dispatches by Protocol. Only Native is bound to a real
// handler; the rest resolve to stubHandler.
type handlerRegistry struct {
	native ProtocolHandler
}

func newHandlerRegistry(native ProtocolHandler) *handlerRegistry {
	return &handlerRegistry{native: native}
}

func (r *handlerRegistry) Handler(p Protocol) ProtocolHandler {
	if p == ProtocolNative || p == "" {
		return r.native
	}
	return stubHandler{}
}
