// Package health implements the Peer Health Manager: short-horizon
// availability/backoff decisions per peer, orthogonal to long-horizon
// reputation.
package health

import (
	"sync"
	"time"
)

// DefaultBackoffCap is T_cap from spec §4.4.
const DefaultBackoffCap = 5 * time.Minute

// DefaultMaxConcurrent is the default per-peer outstanding request limit.
const DefaultMaxConcurrent = 2

// DefaultIdleTTL is T_idle from spec §3: a peer's health entry is cleared
// once it has been idle this long.
const DefaultIdleTTL = 30 * time.Minute

// entry is one peer's short-horizon health state.
type entry struct {
	consecutiveFailures int
	backoffUntil        time.Time
	pending             int
	maxConcurrent       int
	rttEMA              time.Duration
	lastActivity        time.Time
}

// Decision is the outcome of a health check for one peer.
type Decision struct {
	ShouldUse     bool
	Weight        float64
	MaxConcurrent int
}

// Manager tracks per-peer consecutive-failure backoff and concurrency
// limits. Safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	entries  map[string]*entry
	baseWait time.Duration
	cap      time.Duration
	idleTTL  time.Duration
	now      func() time.Time
}

// New creates a health manager with default backoff parameters.
func New() *Manager {
	return &Manager{
		entries:  make(map[string]*entry),
		baseWait: 1 * time.Second,
		cap:      DefaultBackoffCap,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) getOrCreateLocked(peerID string) *entry {
	e, ok := m.entries[peerID]
	if !ok {
		e = &entry{maxConcurrent: DefaultMaxConcurrent, lastActivity: m.now()}
		m.entries[peerID] = e
	}
	return e
}

// Observe creates a zero-backoff entry for peerID if one does not already
// exist, per spec §3's "created with peer": a peer must have a health
// record the moment it becomes known, not only after its first request
// completes or fails.
func (m *Manager) Observe(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreateLocked(peerID)
}

// Success clears a peer's consecutive-failure count and any open backoff,
// and records an observed RTT for slowness-based weight/concurrency
// adjustment.
func (m *Manager) Success(peerID string, rtt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.getOrCreateLocked(peerID)
	e.consecutiveFailures = 0
	e.backoffUntil = time.Time{}
	e.lastActivity = m.now()
	if e.rttEMA == 0 {
		e.rttEMA = rtt
	} else {
		e.rttEMA = e.rttEMA/2 + rtt/2
	}
	e.maxConcurrent = concurrencyForRTT(e.rttEMA)
}

// Failure increments the consecutive-failure count and advances
// backoff_until = now + base*2^cf, capped at T_cap.
func (m *Manager) Failure(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.getOrCreateLocked(peerID)
	e.consecutiveFailures++
	e.lastActivity = m.now()

	wait := m.baseWait << uint(min(e.consecutiveFailures, 30))
	if wait > m.cap || wait <= 0 {
		wait = m.cap
	}
	e.backoffUntil = m.now().Add(wait)
}

// IncPending records a newly dispatched request to peerID.
func (m *Manager) IncPending(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.getOrCreateLocked(peerID)
	e.pending++
}

// DecPending records a completed or abandoned request to peerID.
func (m *Manager) DecPending(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[peerID]
	if !ok {
		return
	}
	if e.pending > 0 {
		e.pending--
	}
}

// ZeroPending resets pending to zero, used when a peer is removed and all
// its active requests are returned to UNREQUESTED.
func (m *Manager) ZeroPending(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[peerID]; ok {
		e.pending = 0
	}
}

// Decide returns the current scheduling decision for peerID.
func (m *Manager) Decide(peerID string) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[peerID]
	if !ok {
		return Decision{ShouldUse: false, Weight: 0, MaxConcurrent: 0}
	}
	now := m.now()
	shouldUse := !now.Before(e.backoffUntil)
	return Decision{
		ShouldUse:     shouldUse,
		Weight:        weightForRTT(e.rttEMA),
		MaxConcurrent: e.maxConcurrent,
	}
}

// Pending returns the current outstanding-request count for peerID.
func (m *Manager) Pending(peerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[peerID]; ok {
		return e.pending
	}
	return 0
}

// Remove deletes a peer's health entry (e.g. on peer removal).
func (m *Manager) Remove(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, peerID)
}

// Sweep clears entries idle longer than the manager's idleTTL.
func (m *Manager) Sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for id, e := range m.entries {
		if e.pending == 0 && now.Sub(e.lastActivity) > m.idleTTL {
			delete(m.entries, id)
		}
	}
}

// weightForRTT maps an RTT EMA to a bounded [0,1] selection weight: faster
// peers score higher, with a floor so a single slow sample never zeroes a
// peer out entirely.
func weightForRTT(rtt time.Duration) float64 {
	if rtt <= 0 {
		return 1.0
	}
	ms := float64(rtt.Milliseconds())
	w := 1.0 - (ms-100)/1900
	if w < 0.1 {
		return 0.1
	}
	if w > 1.0 {
		return 1.0
	}
	return w
}

// concurrencyForRTT reduces the per-peer concurrency allowance once a
// peer's observed response time crosses a slowness threshold.
func concurrencyForRTT(rtt time.Duration) int {
	switch {
	case rtt <= 0:
		return DefaultMaxConcurrent
	case rtt > 2*time.Second:
		return 1
	default:
		return DefaultMaxConcurrent
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
