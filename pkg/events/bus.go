// Package events implements the Session/Event Bus: a cooperative pub/sub
// plane pushing DHT, peer, relay, reachability and transfer events to the
// host process. Delivery is best-effort and lossy for discovery/peer
// events under backpressure; chunk-completion and checkpoint events use a
// reliable channel that is never dropped.
package events

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Kind names an event, matching spec §4.11's fixed vocabulary.
type Kind string

const (
	KindPublishedFile       Kind = "published_file"
	KindFoundFile           Kind = "found_file"
	KindFileContent         Kind = "file_content"
	KindDHTPeerDiscovered   Kind = "dht_peer_discovered"
	KindDHTPeerConnected    Kind = "dht_peer_connected"
	KindDHTPeerDisconnected Kind = "dht_peer_disconnected"
	KindReachabilityChanged Kind = "reachability_changed"
	KindRelayStateChanged   Kind = "relay_state_changed"
	KindDCUtRResult         Kind = "dcutr_result"
	KindTransferProgress    Kind = "transfer_progress"
	KindCheckpointWaiting   Kind = "checkpoint_waiting"
	KindCheckpointPaid      Kind = "checkpoint_paid"
)

// reliableKinds never get dropped under backpressure: chunk-completion
// (file_content/transfer_progress) and checkpoint events.
var reliableKinds = map[Kind]struct{}{
	KindFileContent:       {},
	KindTransferProgress:  {},
	KindCheckpointWaiting: {},
	KindCheckpointPaid:    {},
}

// Event is one published occurrence, carrying a per-session monotonic
// sequence number so subscribers can detect gaps in the lossy channel, and
// a globally unique correlation ID so a subscriber (or a log line emitted
// elsewhere for the same occurrence) can be tied back to this exact event
// even across sessions.
type Event struct {
	Kind          Kind
	SessionID     string
	Seq           uint64
	CorrelationID string
	Payload       any
}

const (
	// DefaultLossyBufferSize is not consulted by Subscribe: each subscriber
	// has a single channel of DefaultReliableBufferSize shared by all kinds,
	// and a lossy publish drops the oldest queued event only once that
	// channel is full.
	DefaultLossyBufferSize = 128
	// DefaultReliableBufferSize is generous enough that a slow subscriber
	// rarely blocks the publisher for long, without being unbounded.
	DefaultReliableBufferSize = 1024
)

// Subscriber is a single consumer's view onto the bus.
type Subscriber struct {
	ch     chan Event
	closed int32
}

// Events returns the channel to range over for this subscription.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Bus fans out events to subscribers, never reading subscriber state back
// (write-only from the bus's perspective — it is not a cyclic backchannel).
type Bus struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	seqBySession map[string]*uint64
}

// New creates an empty event bus.
func New() *Bus {
	return &Bus{
		subscribers:  make(map[*Subscriber]struct{}),
		seqBySession: make(map[string]*uint64),
	}
}

// Subscribe registers a new subscriber and returns it along with an
// unsubscribe function.
func (b *Bus) Subscribe() (*Subscriber, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscriber{ch: make(chan Event, DefaultReliableBufferSize)}
	b.subscribers[sub] = struct{}{}
	return sub, func() { b.unsubscribe(sub) }
}

func (b *Bus) unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; !ok {
		return
	}
	delete(b.subscribers, sub)
	if atomic.CompareAndSwapInt32(&sub.closed, 0, 1) {
		close(sub.ch)
	}
}

func (b *Bus) nextSeq(sessionID string) uint64 {
	b.mu.Lock()
	counter, ok := b.seqBySession[sessionID]
	if !ok {
		var zero uint64
		counter = &zero
		b.seqBySession[sessionID] = counter
	}
	b.mu.Unlock()
	return atomic.AddUint64(counter, 1)
}

// Publish delivers an event to every current subscriber. Reliable kinds
// block (bounded by the subscriber's buffer) rather than drop; all other
// kinds drop the oldest buffered event for that subscriber to make room
// for the newest, per the bus's lossy-under-backpressure policy.
func (b *Bus) Publish(kind Kind, sessionID string, payload any) Event {
	ev := Event{
		Kind:          kind,
		SessionID:     sessionID,
		Seq:           b.nextSeq(sessionID),
		CorrelationID: uuid.NewString(),
		Payload:       payload,
	}

	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	_, reliable := reliableKinds[kind]
	for _, sub := range subs {
		if atomic.LoadInt32(&sub.closed) == 1 {
			continue
		}
		if reliable {
			sub.ch <- ev
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			// Buffer full: drop the oldest queued event to make room for
			// this one, preferring the newest discovery/peer event.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
	return ev
}

// Close unsubscribes and closes every outstanding subscriber channel.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.subscribers = make(map[*Subscriber]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		if atomic.CompareAndSwapInt32(&sub.closed, 0, 1) {
			close(sub.ch)
		}
	}
}
