package node

import (
	"context"
	"testing"

	"github.com/chiral-network/chiral-network/pkg/checkpoint"
	"github.com/chiral-network/chiral-network/pkg/state"
)

func TestPublishFileRefusedInPureClientMode(t *testing.T) {
	n := &Node{cfg: Config{PureClientMode: true}}

	_, err := n.PublishFile(context.Background(), "/tmp/whatever", 0.01, ProtocolNative)
	if err == nil {
		t.Fatal("expected publish_file to be refused in pure client mode")
	}
	nodeErr, ok := err.(*Error)
	if !ok || nodeErr.Kind != KindConfigInvalid {
		t.Fatalf("expected config_invalid, got %v", err)
	}
}

func TestPublishFileRefusesNonNativeProtocol(t *testing.T) {
	n := &Node{cfg: Config{PureClientMode: false}}

	_, err := n.PublishFile(context.Background(), "/tmp/whatever", 0.01, ProtocolBitTorrent)
	if err != ErrUnsupportedProtocol {
		t.Fatalf("expected ErrUnsupportedProtocol, got %v", err)
	}
}

func TestCheckpointOperationsDelegateToManager(t *testing.T) {
	st, openErr := state.Open(t.TempDir())
	if openErr != nil {
		t.Fatalf("open state store: %v", openErr)
	}
	defer st.Close()
	n := &Node{checkpoints: checkpoint.NewManager(), store: st}

	info := n.InitPaymentCheckpoint("sess-1", 100*checkpoint.MiB, checkpoint.ModeExponential)
	if info.SessionID != "sess-1" {
		t.Fatalf("expected session id sess-1, got %s", info.SessionID)
	}

	info, err := n.UpdateCheckpointProgress("sess-1", 11*checkpoint.MiB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.BytesTransferred != 11*checkpoint.MiB {
		t.Fatalf("expected 11 MiB transferred, got %d", info.BytesTransferred)
	}

	pause, err := n.CheckShouldPauseServing("sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !pause {
		t.Fatal("expected serving to be paused past the first checkpoint")
	}

	if _, err := n.RecordCheckpointPayment("sess-1", "0xabc", 0.05); err != nil {
		t.Fatalf("unexpected error recording payment: %v", err)
	}

	if err := n.MarkCheckpointCompleted("sess-1"); err != nil {
		t.Fatalf("unexpected error marking completed: %v", err)
	}

	got, err := n.GetPaymentCheckpointInfo("sess-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != checkpoint.StateCompleted {
		t.Fatalf("expected completed state, got %s", got.State)
	}
}

func TestCheckpointOperationsOnUnknownSessionReturnConfigInvalid(t *testing.T) {
	n := &Node{checkpoints: checkpoint.NewManager()}

	if _, err := n.GetPaymentCheckpointInfo("missing"); err == nil {
		t.Fatal("expected an error for an unknown session")
	} else if nodeErr, ok := err.(*Error); !ok || nodeErr.Kind != KindConfigInvalid {
		t.Fatalf("expected config_invalid, got %v", err)
	}

	if err := n.MarkCheckpointPaymentFailed("missing", "insufficient funds"); err == nil {
		t.Fatal("expected an error for an unknown session")
	}
}
