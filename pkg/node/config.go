package node

import (
	"fmt"

	ma "github.com/multiformats/go-multiaddr"
)

// Config is the host process API's start_node argument, matching spec §6.
type Config struct {
	DHTPort                  int
	BootstrapAddrs           []string
	EnableAutoNAT            bool
	AutoNATProbeIntervalSecs uint32
	AutoNATServers           []string
	ProxyAddr                string
	ChunkSizeKiB             int
	CacheSizeMiB             int
	EnableAutoRelay          bool
	PreferredRelays          []string
	EnableRelayServer        bool
	EnableUPnP               bool
	RelayServerAlias         string
	PureClientMode           bool
	BootstrapRole            bool

	DataDir string
}

// DefaultConfig returns a Config with the spec's implied defaults where
// one is stated, and conservative values otherwise.
func DefaultConfig() Config {
	return Config{
		DHTPort:                  4001,
		EnableAutoNAT:            false,
		AutoNATProbeIntervalSecs: 90,
		ChunkSizeKiB:             256,
		CacheSizeMiB:             64,
		EnableAutoRelay:          true,
		EnableRelayServer:        false,
		EnableUPnP:               true,
		PureClientMode:           false,
		BootstrapRole:            false,
	}
}

// Validate checks the argument constraints spec §6 states inline,
// returning a config_invalid *Error on the first violation found.
func (c Config) Validate() error {
	if c.DHTPort < 1 || c.DHTPort > 65535 {
		return Newf(KindConfigInvalid, "node", nil, "dht_port out of range [1,65535]: %d", c.DHTPort)
	}
	if c.ChunkSizeKiB < 16 || c.ChunkSizeKiB > 4096 {
		return Newf(KindConfigInvalid, "node", nil, "chunk_size_kib out of range [16,4096]: %d", c.ChunkSizeKiB)
	}
	if c.CacheSizeMiB < 0 {
		return Newf(KindConfigInvalid, "node", nil, "cache_size_mib must be >= 0: %d", c.CacheSizeMiB)
	}
	if c.BootstrapRole && c.PureClientMode {
		return Newf(KindConfigInvalid, "node", nil, "bootstrap_role and pure_client_mode are mutually exclusive")
	}
	for _, addr := range c.BootstrapAddrs {
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return Newf(KindConfigInvalid, "node", err, "invalid bootstrap multiaddr %q", addr)
		}
	}
	for _, addr := range c.PreferredRelays {
		if _, err := ma.NewMultiaddr(addr); err != nil {
			return Newf(KindConfigInvalid, "node", err, "invalid relay multiaddr %q", addr)
		}
	}
	return nil
}

func (c Config) chunkSizeBytes() int {
	return c.ChunkSizeKiB * 1024
}

func (c Config) String() string {
	return fmt.Sprintf("Config{port=%d, pureClient=%v, chunkSizeKiB=%d}", c.DHTPort, c.PureClientMode, c.ChunkSizeKiB)
}
