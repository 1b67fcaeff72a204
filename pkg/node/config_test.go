package node

import "testing"

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsPortOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DHTPort = 0
	assertConfigInvalid(t, cfg.Validate())

	cfg.DHTPort = 70000
	assertConfigInvalid(t, cfg.Validate())
}

func TestValidateRejectsChunkSizeOutOfRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ChunkSizeKiB = 8
	assertConfigInvalid(t, cfg.Validate())

	cfg.ChunkSizeKiB = 8192
	assertConfigInvalid(t, cfg.Validate())
}

func TestValidateRejectsNegativeCacheSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CacheSizeMiB = -1
	assertConfigInvalid(t, cfg.Validate())
}

func TestValidateRejectsBadMultiaddrs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BootstrapAddrs = []string{"not-a-multiaddr"}
	assertConfigInvalid(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.PreferredRelays = []string{"not-a-multiaddr"}
	assertConfigInvalid(t, cfg.Validate())
}

func TestValidateAcceptsWellFormedMultiaddrs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BootstrapAddrs = []string{"/ip4/127.0.0.1/tcp/4001/p2p/QmWjEDfHWvttN72pmRFYKYCBkQ1vk3WBAkLzfaRWRS9xu8"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func assertConfigInvalid(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
	}
	nodeErr, ok := err.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", err)
	}
	if nodeErr.Kind != KindConfigInvalid {
		t.Fatalf("expected config_invalid, got %s", nodeErr.Kind)
	}
}
