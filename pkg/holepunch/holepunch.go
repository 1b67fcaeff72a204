// Package holepunch implements the Hole-Punch Coordinator: upgrading a
// relayed connection between two NATed peers into a direct one by
// synchronized simultaneous dialing, modeled at the level of libp2p's
// DCUtR exchange.
package holepunch

import (
	"sync"
	"time"
)

// Result is the outcome of one coordination attempt.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Outcome records one coordinated dial attempt's result.
type Outcome struct {
	PeerID string
	Result Result
	At     time.Time
}

// Dialer performs the synchronized simultaneous dial once both peers have
// exchanged observed addresses and a rendezvous time.
type Dialer interface {
	// DialAt blocks (or returns promptly via ctx) until dialTime, then
	// attempts a direct dial to peerID's observed addresses. Returns true
	// on a successful direct connection.
	DialAt(peerID string, dialTime time.Time, observedAddrs []string) bool
}

// Session tracks one in-progress coordination between the local node and
// a remote peer reached indirectly through a relay.
type Session struct {
	PeerID       string
	RelayPeerID  string
	StartedAt    time.Time
	RTTEstimate  time.Duration
	DirectStable bool
}

// rendezvousTime derives the synchronized dial time from the exchanged
// timestamp plus RTT/2, per spec §4.8 step 3.
func rendezvousTime(exchangedAt time.Time, rtt time.Duration) time.Time {
	return exchangedAt.Add(rtt / 2)
}

// Coordinator drives DCUtR-style synchronized dialing for a set of
// sessions and republishes outcomes. Safe for concurrent use.
type Coordinator struct {
	mu       sync.Mutex
	dialer   Dialer
	now      func() time.Time
	sessions map[string]*Session

	attempts, successes, failures int
	lastSuccess, lastFailure      time.Time

	onResult func(Outcome)
}

// New creates a hole-punch coordinator over the given dialer.
func New(dialer Dialer) *Coordinator {
	return &Coordinator{
		dialer:   dialer,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// WithClock overrides the time source, for deterministic tests.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// OnResult registers a callback invoked after each attempt; the node uses
// it to publish a `dcutr_result` event onto the session/event bus.
func (c *Coordinator) OnResult(fn func(Outcome)) {
	c.onResult = fn
}

// BeginSession records an indirect connection to peerID via relayPeerID,
// the starting point for coordination (spec §4.8 step 1).
func (c *Coordinator) BeginSession(peerID, relayPeerID string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &Session{PeerID: peerID, RelayPeerID: relayPeerID, StartedAt: c.now()}
	c.sessions[peerID] = s
	return s
}

// Attempt coordinates a simultaneous direct dial against peerID using the
// exchanged observed addresses, timestamp and RTT estimate (steps 2-4).
// The relayed stream is retained by the caller as fallback until
// DirectStable is observed true on success.
func (c *Coordinator) Attempt(peerID string, exchangedAt time.Time, rtt time.Duration, observedAddrs []string) Outcome {
	c.mu.Lock()
	s, ok := c.sessions[peerID]
	if !ok {
		s = &Session{PeerID: peerID, StartedAt: c.now()}
		c.sessions[peerID] = s
	}
	s.RTTEstimate = rtt
	c.attempts++
	c.mu.Unlock()

	dialTime := rendezvousTime(exchangedAt, rtt)
	success := c.dialer.DialAt(peerID, dialTime, observedAddrs)

	now := c.now()
	c.mu.Lock()
	result := ResultFailure
	if success {
		result = ResultSuccess
		c.successes++
		c.lastSuccess = now
		s.DirectStable = true
	} else {
		c.failures++
		c.lastFailure = now
	}
	c.mu.Unlock()

	outcome := Outcome{PeerID: peerID, Result: result, At: now}
	if c.onResult != nil {
		c.onResult(outcome)
	}
	return outcome
}

// Counters is a snapshot of the coordinator's attempt/success/failure
// tallies.
type Counters struct {
	Attempts, Successes, Failures int
	LastSuccess, LastFailure      time.Time
}

// Snapshot returns the current counters.
func (c *Coordinator) Snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{
		Attempts:    c.attempts,
		Successes:   c.successes,
		Failures:    c.failures,
		LastSuccess: c.lastSuccess,
		LastFailure: c.lastFailure,
	}
}

// IsDirectStable reports whether peerID's connection has been upgraded to
// a confirmed-stable direct connection.
func (c *Coordinator) IsDirectStable(peerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[peerID]
	return ok && s.DirectStable
}
