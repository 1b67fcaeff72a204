// Package relay implements the Relay Manager: a pool of circuit-relay
// candidates, reservation acquisition/renewal, and the relay-server role
// for publicly reachable nodes.
package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// DefaultPoolSize bounds the number of tracked relay candidates.
	DefaultPoolSize = 5
	// DefaultActiveCap bounds concurrently held reservations.
	DefaultActiveCap = 2
	// RenewalFraction renews a reservation once this fraction of its TTL
	// has elapsed (0.75 * TTL, per spec §4.7).
	RenewalFraction = 0.75
)

var (
	// ErrPoolFull is returned when AddCandidate would exceed the pool cap.
	ErrPoolFull = errors.New("relay pool full")
	// ErrActiveCapReached is returned when Reserve would exceed the active cap.
	ErrActiveCapReached = errors.New("reservation_denied: active cap reached")
	// ErrUnknownCandidate is returned for operations on an untracked peer.
	ErrUnknownCandidate = errors.New("relay candidate not in pool")
)

// CandidateState describes one tracked relay's health.
type CandidateState struct {
	PeerID      string
	Reachable   bool
	LastSuccess time.Time
	LastFailure time.Time
	HealthScore float64

	reservation *Reservation
}

// Reservation is an active circuit-relay-v2 reservation.
type Reservation struct {
	RelayPeerID string
	Expiry      time.Time
	RenewCount  int
}

// RenewAt returns when this reservation should be renewed.
func (r *Reservation) RenewAt(acquiredAt time.Time) time.Time {
	ttl := r.Expiry.Sub(acquiredAt)
	return acquiredAt.Add(time.Duration(float64(ttl) * RenewalFraction))
}

// Dialer performs the actual reservation request against a relay.
type Dialer interface {
	Reserve(relayPeerID string) (expiry time.Time, err error)
}

var metricsOnce sync.Once

// Metrics are the Relay Manager's counters, grounded in spec §4.7's
// "attempts, successes, failures, renewals, evictions" list.
type Metrics struct {
	Attempts prometheus.Counter
	Successes prometheus.Counter
	Failures  prometheus.Counter
	Renewals  prometheus.Counter
	Evictions prometheus.Counter
}

// NewMetrics registers (once per process) and returns the relay manager's
// prometheus counters under the chiral_relay_ namespace.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts:  prometheus.NewCounter(prometheus.CounterOpts{Name: "chiral_relay_attempts_total"}),
		Successes: prometheus.NewCounter(prometheus.CounterOpts{Name: "chiral_relay_successes_total"}),
		Failures:  prometheus.NewCounter(prometheus.CounterOpts{Name: "chiral_relay_failures_total"}),
		Renewals:  prometheus.NewCounter(prometheus.CounterOpts{Name: "chiral_relay_renewals_total"}),
		Evictions: prometheus.NewCounter(prometheus.CounterOpts{Name: "chiral_relay_evictions_total"}),
	}
	if reg != nil {
		metricsOnce.Do(func() {
			reg.MustRegister(m.Attempts, m.Successes, m.Failures, m.Renewals, m.Evictions)
		})
	}
	return m
}

// Manager tracks the relay pool and active reservations. Safe for
// concurrent use.
type Manager struct {
	mu         sync.Mutex
	candidates map[string]*CandidateState
	poolSize   int
	activeCap  int
	dialer     Dialer
	metrics    *Metrics
	now        func() time.Time

	serverRole    bool
	serverCap     int
	serverActive  int
}

// New creates a relay manager with the spec's default pool/active caps.
func New(dialer Dialer, metrics *Metrics) *Manager {
	return &Manager{
		candidates: make(map[string]*CandidateState),
		poolSize:   DefaultPoolSize,
		activeCap:  DefaultActiveCap,
		dialer:     dialer,
		metrics:    metrics,
		now:        time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// AddCandidate registers a relay candidate discovered from config, DHT or
// peer exchange.
func (m *Manager) AddCandidate(peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.candidates[peerID]; ok {
		return nil
	}
	if len(m.candidates) >= m.poolSize {
		return ErrPoolFull
	}
	m.candidates[peerID] = &CandidateState{PeerID: peerID}
	return nil
}

func (m *Manager) activeCountLocked() int {
	n := 0
	for _, c := range m.candidates {
		if c.reservation != nil {
			n++
		}
	}
	return n
}

// Reserve attempts to acquire a reservation from peerID, subject to the
// active-reservation cap.
func (m *Manager) Reserve(peerID string) (*Reservation, error) {
	m.mu.Lock()
	c, ok := m.candidates[peerID]
	if !ok {
		m.mu.Unlock()
		return nil, ErrUnknownCandidate
	}
	if m.activeCountLocked() >= m.activeCap {
		m.mu.Unlock()
		return nil, ErrActiveCapReached
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.Attempts.Inc()
	}
	expiry, err := m.dialer.Reserve(peerID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		c.LastFailure = m.now()
		c.Reachable = false
		if m.metrics != nil {
			m.metrics.Failures.Inc()
		}
		return nil, err
	}
	res := &Reservation{RelayPeerID: peerID, Expiry: expiry}
	c.reservation = res
	c.Reachable = true
	c.LastSuccess = m.now()
	if m.metrics != nil {
		m.metrics.Successes.Inc()
	}
	return res, nil
}

// Renew re-acquires a reservation for peerID ahead of expiry.
func (m *Manager) Renew(peerID string) (*Reservation, error) {
	m.mu.Lock()
	c, ok := m.candidates[peerID]
	if !ok || c.reservation == nil {
		m.mu.Unlock()
		return nil, ErrUnknownCandidate
	}
	prevCount := c.reservation.RenewCount
	m.mu.Unlock()

	expiry, err := m.dialer.Reserve(peerID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		c.LastFailure = m.now()
		if m.metrics != nil {
			m.metrics.Failures.Inc()
		}
		return nil, err
	}
	c.reservation = &Reservation{RelayPeerID: peerID, Expiry: expiry, RenewCount: prevCount + 1}
	c.LastSuccess = m.now()
	if m.metrics != nil {
		m.metrics.Renewals.Inc()
	}
	return c.reservation, nil
}

// Evict drops a reservation immediately, e.g. on failure or relay loss,
// and makes room to attempt another candidate.
func (m *Manager) Evict(peerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[peerID]
	if !ok {
		return
	}
	c.reservation = nil
	if m.metrics != nil {
		m.metrics.Evictions.Inc()
	}
}

// ActiveReservationCount returns the number of currently active reservations.
func (m *Manager) ActiveReservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeCountLocked()
}

// Candidates lists every tracked relay candidate's peer ID, for
// persisting the pool across a restart.
func (m *Manager) Candidates() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.candidates))
	for id := range m.candidates {
		out = append(out, id)
	}
	return out
}

// PendingRenewals returns candidates whose reservation has crossed its
// renewal point as of now.
func (m *Manager) PendingRenewals(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, c := range m.candidates {
		if c.reservation == nil {
			continue
		}
		if !now.Before(c.reservation.RenewAt(c.LastSuccess)) {
			out = append(out, id)
		}
	}
	return out
}

// SetServerRole enables or disables the relay-server role, gated by the
// caller on reachability being public with high confidence and
// enable_relay_server being true.
func (m *Manager) SetServerRole(enabled bool, cap int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serverRole = enabled
	m.serverCap = cap
	if !enabled {
		m.serverActive = 0
	}
}

// IsServerRoleActive reports whether this node is currently advertising
// as a relay server.
func (m *Manager) IsServerRoleActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.serverRole
}

// AcceptServerReservation admits one incoming reservation request against
// the relay-server cap, or refuses it.
func (m *Manager) AcceptServerReservation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.serverRole || m.serverActive >= m.serverCap {
		return false
	}
	m.serverActive++
	return true
}

// ReleaseServerReservation frees one slot of the relay-server cap.
func (m *Manager) ReleaseServerReservation() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.serverActive > 0 {
		m.serverActive--
	}
}
