package node

import (
	"context"
	"encoding/json"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// providerGossipTopic is the gossipsub topic provider announcements ride
// on, supplementing (never replacing) DHT provider lookups: a peer that
// just started seeding a root broadcasts it so nodes already connected to
// it in the mesh learn about the new seeder without waiting on their own
// DHT walk.
const providerGossipTopic = "/chiral/providers/1.0.0"

type providerAnnouncement struct {
	RootCID string   `json:"root_cid"`
	PeerID  string   `json:"peer_id"`
	Addrs   []string `json:"addrs"`
}

// providerGossip wraps a gossipsub topic carrying providerAnnouncement
// messages.
type providerGossip struct {
	h     host.Host
	topic *pubsub.Topic
	sub   *pubsub.Subscription
}

func newProviderGossip(ctx context.Context, h host.Host) (*providerGossip, error) {
	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		return nil, Newf(KindIOError, "gossip", err, "failed to start gossipsub")
	}
	topic, err := ps.Join(providerGossipTopic)
	if err != nil {
		return nil, Newf(KindIOError, "gossip", err, "failed to join provider gossip topic")
	}
	sub, err := topic.Subscribe()
	if err != nil {
		topic.Close()
		return nil, Newf(KindIOError, "gossip", err, "failed to subscribe to provider gossip topic")
	}
	return &providerGossip{h: h, topic: topic, sub: sub}, nil
}

// Announce broadcasts that this node seeds rootCID at addrs.
func (g *providerGossip) Announce(ctx context.Context, rootCID string, addrs []string) error {
	data, err := json.Marshal(providerAnnouncement{RootCID: rootCID, PeerID: g.h.ID().String(), Addrs: addrs})
	if err != nil {
		return err
	}
	return g.topic.Publish(ctx, data)
}

// Run drains incoming announcements until ctx is cancelled, handing each
// one that didn't originate locally to onPeer.
func (g *providerGossip) Run(ctx context.Context, onPeer func(rootCID string, pid peer.ID, addrs []string)) {
	for {
		msg, err := g.sub.Next(ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == g.h.ID() {
			continue
		}
		var ann providerAnnouncement
		if err := json.Unmarshal(msg.Data, &ann); err != nil {
			continue
		}
		pid, err := peer.Decode(ann.PeerID)
		if err != nil {
			continue
		}
		onPeer(ann.RootCID, pid, ann.Addrs)
	}
}

func (g *providerGossip) Close() {
	g.sub.Cancel()
	g.topic.Close()
}

// onProviderAnnouncement is providerGossip's onPeer callback: it records
// the announced addresses and queues the peer against any in-flight
// download for that root. The scheduler itself is not safe for
// concurrent mutation, so the announcement is only queued here; the
// owning download_file goroutine drains the queue and calls
// Scheduler.AddProvider itself (see drainGossipProviders in node.go).
func (n *Node) onProviderAnnouncement(rootCID string, pid peer.ID, addrs []string) {
	for _, raw := range addrs {
		if a, err := ma.NewMultiaddr(raw); err == nil {
			n.h.Peerstore().AddAddr(pid, a, 10*time.Minute)
		}
	}
	n.health.Observe(pid.String())

	n.mu.Lock()
	if _, ok := n.transfers[rootCID]; ok {
		n.gossipProviders[rootCID] = append(n.gossipProviders[rootCID], pid.String())
	}
	n.mu.Unlock()
}
