package node

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/chiral-network/chiral-network/pkg/reachability"
	"github.com/chiral-network/chiral-network/pkg/state"
)

const relayMaintenanceInterval = 30 * time.Second

// maintainRelayClient is the client half of the Relay Manager (spec §4.7):
// it restores any persisted pool from a prior run, registers the
// configured preferred relays as candidates, acquires and renews
// reservations on them while this node is not confirmed publicly
// reachable, evicts any that stop answering, and periodically persists
// the pool so a restart doesn't rediscover it from scratch. A publicly
// reachable node has no need of a relay reservation for itself, so
// reservations are only pursued outside reachability.StatePublic.
func (n *Node) maintainRelayClient(ctx context.Context) {
	if snap, err := n.store.LoadRelayPool(); err == nil {
		for _, pid := range snap.Candidates {
			if err := n.relay.AddCandidate(pid); err != nil {
				log.Warnw("restored relay candidate pool full", "peer", pid, "err", err)
			}
		}
	}

	for _, addr := range n.cfg.PreferredRelays {
		pid, err := peerIDFromMultiaddr(addr)
		if err != nil {
			log.Warnw("invalid preferred relay multiaddr", "addr", addr, "err", err)
			continue
		}
		if a, err := ma.NewMultiaddr(addr); err == nil {
			if pi, err := peer.AddrInfoFromP2pAddr(a); err == nil {
				n.h.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstoreTTLRelay)
			}
		}
		if err := n.relay.AddCandidate(pid); err != nil {
			log.Warnw("relay candidate pool full", "peer", pid, "err", err)
		}
	}
	n.saveRelayPool()

	ticker := time.NewTicker(relayMaintenanceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.reserveRelaysIfNeeded()
			for _, id := range n.relay.PendingRenewals(time.Now()) {
				if _, err := n.relay.Renew(id); err != nil {
					log.Warnw("relay reservation renewal failed, evicting", "peer", id, "err", err)
					n.relay.Evict(id)
				}
			}
			n.saveRelayPool()
		}
	}
}

func (n *Node) saveRelayPool() {
	snap := state.RelayPoolSnapshot{Candidates: n.relay.Candidates()}
	if err := n.store.SaveRelayPool(snap); err != nil {
		log.Warnw("failed to persist relay pool", "err", err)
	}
}

func (n *Node) reserveRelaysIfNeeded() {
	reach, _ := n.ReachabilityState()
	if reach == reachability.StatePublic {
		return
	}
	for _, pid := range n.relay.Candidates() {
		if _, err := n.relay.Reserve(pid); err != nil {
			continue
		}
	}
}

func peerIDFromMultiaddr(addr string) (string, error) {
	a, err := ma.NewMultiaddr(addr)
	if err != nil {
		return "", err
	}
	pi, err := peer.AddrInfoFromP2pAddr(a)
	if err != nil {
		return "", err
	}
	return pi.ID.String(), nil
}

const peerstoreTTLRelay = 30 * time.Minute
