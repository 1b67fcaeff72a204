// Package checkpoint implements the Payment Checkpoint Engine: a
// per-transfer state machine that pauses serving at byte thresholds until
// settlement is observed.
package checkpoint

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Mode selects the checkpoint cadence.
type Mode string

const (
	ModeExponential Mode = "exponential"
	ModeUpfront     Mode = "upfront"
)

// State is the checkpoint session's current lifecycle state.
type State string

const (
	StateActive            State = "active"
	StateWaitingForPayment  State = "waiting_for_payment"
	StatePaymentReceived    State = "payment_received"
	StatePaymentFailed      State = "payment_failed"
	StateCompleted          State = "completed"
)

const (
	// MiB is one mebibyte, the unit for interval/checkpoint arithmetic.
	MiB = 1024 * 1024
	// DefaultExponentialIntervalMiB is the starting interval for
	// exponential mode (spec §4.10: "interval = 10 MiB").
	DefaultExponentialIntervalMiB = 10
)

var (
	// ErrNegativeAmount is returned when RecordPayment is called with a
	// negative amount.
	ErrNegativeAmount = errors.New("insufficient_payment: negative amount")
	// ErrDuplicatePayment is returned when the same (txHash, checkpoint)
	// pair is recorded twice.
	ErrDuplicatePayment = errors.New("insufficient_payment: duplicate payment")
)

// PaymentRecord is one entry in a session's payment history.
type PaymentRecord struct {
	Checkpoint int64     `json:"checkpoint"`
	Bytes      int64     `json:"bytes"`
	Amount     float64   `json:"amount"`
	TxHash     string    `json:"tx_hash"`
	Timestamp  time.Time `json:"timestamp"`
}

// Session is the per-transfer checkpoint state described in spec §4.10.
type Session struct {
	mu sync.Mutex

	SessionID        string
	FileSize         int64
	BytesTransferred int64
	IntervalMiB      int64
	NextCheckpoint   int64
	TotalPaid        float64
	Mode             Mode
	State            State
	History          []PaymentRecord

	now  func() time.Time
	seen map[string]struct{} // dedup key: txHash + "|" + checkpoint
}

// New initializes a checkpoint session per spec §4.10's Initialization
// rules: exponential starts at interval=10 MiB, next_checkpoint=10 MiB;
// upfront sets next_checkpoint to the full file size (one-shot).
func New(sessionID string, fileSize int64, mode Mode) *Session {
	s := &Session{
		SessionID: sessionID,
		FileSize:  fileSize,
		Mode:      mode,
		State:     StateActive,
		now:       time.Now,
		seen:      make(map[string]struct{}),
	}
	switch mode {
	case ModeUpfront:
		s.NextCheckpoint = fileSize
	default:
		s.Mode = ModeExponential
		s.IntervalMiB = DefaultExponentialIntervalMiB
		s.NextCheckpoint = DefaultExponentialIntervalMiB * MiB
	}
	return s
}

// WithClock overrides the time source, for deterministic tests.
func (s *Session) WithClock(now func() time.Time) *Session {
	s.now = now
	return s
}

// UpdateProgress records bytes transferred and transitions to
// waiting_for_payment once the next checkpoint is reached.
func (s *Session) UpdateProgress(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes > s.BytesTransferred {
		s.BytesTransferred = bytes
	}
	if s.BytesTransferred > s.FileSize {
		s.BytesTransferred = s.FileSize
	}
	if s.State == StateActive && s.BytesTransferred >= s.NextCheckpoint {
		s.State = StateWaitingForPayment
	}
}

// ShouldPauseServing reports whether the caller should pause serving this
// session, per spec §4.10: true iff state == waiting_for_payment.
func (s *Session) ShouldPauseServing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State == StateWaitingForPayment
}

// RecordPayment appends a payment to history, re-arms the next checkpoint
// (exponential mode only) and returns to the active state.
func (s *Session) RecordPayment(txHash string, amount float64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s|%d", txHash, s.NextCheckpoint)
	if _, dup := s.seen[key]; dup {
		return ErrDuplicatePayment
	}
	s.seen[key] = struct{}{}

	s.History = append(s.History, PaymentRecord{
		Checkpoint: s.NextCheckpoint,
		Bytes:      s.BytesTransferred,
		Amount:     amount,
		TxHash:     txHash,
		Timestamp:  s.now(),
	})
	s.TotalPaid += amount
	s.State = StateActive

	if s.Mode == ModeExponential {
		s.IntervalMiB *= 2
		s.NextCheckpoint = s.BytesTransferred + s.IntervalMiB*MiB
	}
	return nil
}

// MarkPaymentFailed transitions to payment_failed; the caller decides
// whether to retry or abort.
func (s *Session) MarkPaymentFailed(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StatePaymentFailed
}

// MarkCompleted transitions the session to its terminal state.
func (s *Session) MarkCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = StateCompleted
}

// Info is a consistent snapshot of session state for the host API.
type Info struct {
	SessionID        string
	FileSize         int64
	BytesTransferred int64
	IntervalMiB      int64
	NextCheckpoint   int64
	TotalPaid        float64
	Mode             Mode
	State            State
	History          []PaymentRecord
}

// Snapshot returns a copy of the session's current state.
func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]PaymentRecord, len(s.History))
	copy(history, s.History)
	return Info{
		SessionID:        s.SessionID,
		FileSize:         s.FileSize,
		BytesTransferred: s.BytesTransferred,
		IntervalMiB:      s.IntervalMiB,
		NextCheckpoint:   s.NextCheckpoint,
		TotalPaid:        s.TotalPaid,
		Mode:             s.Mode,
		State:            s.State,
		History:          history,
	}
}

// Restore reconstructs a session from a previously persisted snapshot
// (pkg/state's CheckpointSessionRecord), used to resume a transfer's
// checkpoint state across a node restart instead of starting it over
// from byte zero.
func Restore(info Info) *Session {
	return &Session{
		SessionID:        info.SessionID,
		FileSize:         info.FileSize,
		BytesTransferred: info.BytesTransferred,
		IntervalMiB:      info.IntervalMiB,
		NextCheckpoint:   info.NextCheckpoint,
		TotalPaid:        info.TotalPaid,
		Mode:             info.Mode,
		State:            info.State,
		now:              time.Now,
		seen:             make(map[string]struct{}),
	}
}

// Manager tracks checkpoint sessions by ID, the shape pkg/node's
// init/update/record/check/mark/remove host operations drive directly.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty checkpoint session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Init creates and registers a new session, matching
// init_payment_checkpoint in spec §6.
func (m *Manager) Init(sessionID string, fileSize int64, mode Mode) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := New(sessionID, fileSize, mode)
	m.sessions[sessionID] = s
	return s
}

// Get returns a session by ID.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// Remove deletes a session, matching remove_payment_checkpoint_session.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Put registers an already-constructed session (from Restore), overwriting
// any existing session under the same ID.
func (m *Manager) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.SessionID] = s
}
