package node

import (
	"errors"
	"testing"
)

func TestNewfWrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Newf(KindIOError, "chunkstore", cause, "failed to write %s", "chunk")

	if err.Kind != KindIOError {
		t.Fatalf("expected io_error, got %s", err.Kind)
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected Unwrap to expose the original cause")
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error string")
	}
}

func TestNewfWithoutCauseOmitsTrailingColon(t *testing.T) {
	err := Newf(KindConfigInvalid, "node", nil, "dht_port out of range")
	if err.Cause != nil {
		t.Fatal("expected nil cause")
	}
	if errors.Unwrap(err) != nil {
		t.Fatal("expected Unwrap to return nil when there is no cause")
	}
	if got := err.Error(); got != "config_invalid[node]: dht_port out of range" {
		t.Fatalf("unexpected error string %q", got)
	}
}
