package node

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	circuitclient "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/client"
	ma "github.com/multiformats/go-multiaddr"
)

// relayDialer implements relay.Dialer by acquiring a real circuit-relay-v2
// reservation against the given relay peer.
type relayDialer struct {
	h host.Host
}

func newRelayDialer(h host.Host) *relayDialer {
	return &relayDialer{h: h}
}

func (d *relayDialer) Reserve(relayPeerID string) (time.Time, error) {
	pid, err := peer.Decode(relayPeerID)
	if err != nil {
		return time.Time{}, Newf(KindConfigInvalid, "relay", err, "invalid relay peer id %q", relayPeerID)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	rsvp, err := circuitclient.Reserve(ctx, d.h, d.h.Peerstore().PeerInfo(pid))
	if err != nil {
		return time.Time{}, Newf(KindReservationDenied, "relay", err, "reservation refused by %s", relayPeerID)
	}
	return rsvp.Expiration, nil
}

// holePunchDialer implements holepunch.Dialer by waiting for the
// rendezvous instant and then attempting a direct host.Connect using the
// peer's observed addresses, the same mechanism libp2p's own DCUtR
// protocol drives under the hood once addresses are exchanged.
type holePunchDialer struct {
	h host.Host
}

func newHolePunchDialer(h host.Host) *holePunchDialer {
	return &holePunchDialer{h: h}
}

func (d *holePunchDialer) DialAt(peerIDStr string, dialTime time.Time, observedAddrs []string) bool {
	if wait := time.Until(dialTime); wait > 0 {
		time.Sleep(wait)
	}
	pid, err := peer.Decode(peerIDStr)
	if err != nil {
		return false
	}
	addrs := make([]ma.Multiaddr, 0, len(observedAddrs))
	for _, raw := range observedAddrs {
		if a, err := ma.NewMultiaddr(raw); err == nil {
			addrs = append(addrs, a)
		}
	}
	if len(addrs) == 0 {
		return false
	}
	d.h.Peerstore().AddAddrs(pid, addrs, 2*time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.h.Connect(ctx, peer.AddrInfo{ID: pid, Addrs: addrs}); err != nil {
		return false
	}
	for _, conn := range d.h.Network().ConnsToPeer(pid) {
		if !isRelayedAddr(conn.RemoteMultiaddr()) {
			return true
		}
	}
	return false
}

func isRelayedAddr(addr ma.Multiaddr) bool {
	_, err := addr.ValueForProtocol(ma.P_CIRCUIT)
	return err == nil
}
