package node

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	relayv2 "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	quictransport "github.com/libp2p/go-libp2p/p2p/transport/quic"
	ma "github.com/multiformats/go-multiaddr"

	kaddht "github.com/libp2p/go-libp2p-kad-dht"

	chirdht "github.com/chiral-network/chiral-network/pkg/dht"
)

// newLibp2pHost builds the transport host, following the teacher's own
// noise+QUIC+hole-punching option set, generalized to the config's
// relay/UPnP/port knobs.
func newLibp2pHost(cfg Config) (host.Host, error) {
	opts := []libp2p.Option{
		libp2p.ListenAddrStrings(
			fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", cfg.DHTPort),
			fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic", cfg.DHTPort),
		),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Transport(quictransport.NewTransport),
		libp2p.DefaultTransports,
		libp2p.EnableHolePunching(),
	}
	if cfg.EnableAutoRelay {
		opts = append(opts, libp2p.EnableRelay())
	}
	if cfg.EnableRelayServer {
		opts = append(opts, libp2p.EnableRelayService())
	}
	if cfg.EnableUPnP {
		opts = append(opts, libp2p.NATPortMap())
	}
	if cfg.EnableAutoNAT {
		opts = append(opts, libp2p.EnableAutoNAT())
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, Newf(KindIOError, "node", err, "failed to create libp2p host")
	}
	return h, nil
}

// newRelayService starts this node's own circuit-relay-v2 relay service,
// used only when the relay-server role is active.
func newRelayService(h host.Host) (*relayv2.Relay, error) {
	r, err := relayv2.New(h)
	if err != nil {
		return nil, Newf(KindIOError, "relay", err, "failed to start relay service")
	}
	return r, nil
}

// buildDHTEngine wires a go-libp2p-kad-dht node to the Kademlia adapter
// and the command-channel driver Engine.
func buildDHTEngine(ctx context.Context, h host.Host, cfg Config) (*kaddht.IpfsDHT, *chirdht.Engine, error) {
	kdht, err := chirdht.NewDHT(ctx, h, cfg.BootstrapRole, cfg.PureClientMode)
	if err != nil {
		return nil, nil, Newf(KindIOError, "dht", err, "failed to create DHT")
	}

	var bootstrapAddrs []ma.Multiaddr
	for _, addr := range cfg.BootstrapAddrs {
		a, err := ma.NewMultiaddr(addr)
		if err != nil {
			continue
		}
		bootstrapAddrs = append(bootstrapAddrs, a)
	}

	engine := chirdht.New(chirdht.NewAdapter(kdht, h), chirdht.Config{
		BootstrapAddrs: bootstrapAddrs,
		ClientOnly:     cfg.PureClientMode,
		BootstrapRole:  cfg.BootstrapRole,
	})
	return kdht, engine, nil
}

func dialBootstrapPeers(ctx context.Context, h host.Host, addrs []string) {
	for _, raw := range addrs {
		a, err := ma.NewMultiaddr(raw)
		if err != nil {
			log.Warnw("invalid bootstrap addr", "addr", raw, "err", err)
			continue
		}
		pi, err := peer.AddrInfoFromP2pAddr(a)
		if err != nil {
			log.Warnw("invalid bootstrap peer info", "addr", raw, "err", err)
			continue
		}
		if err := h.Connect(ctx, *pi); err != nil {
			log.Warnw("bootstrap dial failed", "peer", pi.ID, "err", err)
		}
	}
}
