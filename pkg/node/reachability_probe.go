package node

import (
	"bufio"
	"context"
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/chiral-network/chiral-network/pkg/reachability"
)

// reachabilityProbeDialTimeout bounds the server-side dial-back attempt.
const reachabilityProbeDialTimeout = 10 * time.Second

// ReachabilityProbeProtocolID carries a dial-back reachability check:
// the requester lists its own listen multiaddrs, the server attempts a
// fresh outbound dial to one of them (deliberately not reusing the stream's
// own connection) and writes back a single success/failure byte.
const ReachabilityProbeProtocolID = "/chiral/reachability-probe/1.0.0"

// reachabilityProber implements reachability.Prober against other Chiral
// nodes configured as probe servers (spec's autonat_servers list), by
// speaking ReachabilityProbeProtocolID.
type reachabilityProber struct {
	h host.Host
}

func newReachabilityProber(h host.Host) *reachabilityProber {
	return &reachabilityProber{h: h}
}

func (p *reachabilityProber) Probe(ctx context.Context, server string) (reachability.Observation, error) {
	addr, err := ma.NewMultiaddr(server)
	if err != nil {
		return reachability.Observation{}, Newf(KindConfigInvalid, "reachability", err, "invalid autonat server multiaddr %q", server)
	}
	pi, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return reachability.Observation{}, Newf(KindConfigInvalid, "reachability", err, "autonat server multiaddr missing peer id %q", server)
	}

	s, err := p.h.NewStream(ctx, pi.ID, ReachabilityProbeProtocolID)
	if err != nil {
		return reachability.Observation{}, Newf(KindPeerUnavailable, "reachability", err, "failed to reach probe server %s", pi.ID)
	}
	defer s.Close()

	var line []byte
	for _, a := range p.h.Addrs() {
		line = append(line, []byte(a.String()+"\n")...)
	}
	if _, err := s.Write(line); err != nil {
		return reachability.Observation{}, Newf(KindNetworkTimeout, "reachability", err, "failed to send observed addrs")
	}
	if err := s.CloseWrite(); err != nil {
		return reachability.Observation{}, Newf(KindNetworkTimeout, "reachability", err, "failed to close write side")
	}

	r := bufio.NewReader(s)
	result, err := r.ReadByte()
	if err != nil {
		return reachability.Observation{}, Newf(KindNetworkTimeout, "reachability", err, "failed to read probe result")
	}
	return reachability.Observation{
		ServerID: pi.ID.String(),
		Success:  result == 1,
		Addr:     server,
	}, nil
}

// registerReachabilityProbeServer installs the inbound handler that
// answers other nodes' dial-back reachability probes, used when this node
// offers itself as an autonat_servers entry.
func registerReachabilityProbeServer(h host.Host) {
	h.SetStreamHandler(ReachabilityProbeProtocolID, func(s network.Stream) {
		defer s.Close()

		requester := s.Conn().RemotePeer()
		data, err := io.ReadAll(s)
		if err != nil {
			return
		}

		var addrs []ma.Multiaddr
		start := 0
		for i, b := range data {
			if b == '\n' {
				if a, err := ma.NewMultiaddr(string(data[start:i])); err == nil {
					addrs = append(addrs, a)
				}
				start = i + 1
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), reachabilityProbeDialTimeout)
		defer cancel()

		reachable := false
		if len(addrs) > 0 {
			if err := h.Connect(ctx, peer.AddrInfo{ID: requester, Addrs: addrs}); err == nil {
				reachable = true
			}
		}

		result := byte(0)
		if reachable {
			result = 1
		}
		s.Write([]byte{result})
	})
}
