// Package reputation implements the Reputation Store: per-peer Beta
// distribution success/failure counts, RTT EMA and freshness, with time
// decay, feeding the scheduler's peer selection policy.
package reputation

import (
	"encoding/json"
	"math"
	"os"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("reputation")

const (
	// priorAlpha and priorBeta are the Beta-distribution priors (alpha0,
	// beta0) from spec §4.3.
	priorAlpha = 1.0
	priorBeta  = 1.0

	// DefaultHalfLife is T_half from spec §4.3.
	DefaultHalfLife = 14 * 24 * time.Hour

	freshFullSeconds = 60.0
	freshZeroSeconds = 24 * 60 * 60.0

	rttFloor = 100.0
	rttCeil  = 2000.0
)

// Record holds one peer's raw, undecayed counters.
type Record struct {
	PeerID      string    `json:"peer_id"`
	Alpha       float64   `json:"alpha"`
	Beta        float64   `json:"beta"`
	RTTEMA      float64   `json:"rtt_ema_ms"`
	LastSeen    time.Time `json:"last_seen"`
	LastUpdated time.Time `json:"last_updated"`
}

// Store is a concurrency-safe map of peer reputations, read-often/
// write-frequent, guarded by a single mutex per the spec's concurrency
// model (§5: "protected by a single per-store mutex; critical sections
// bounded to O(1) per operation").
type Store struct {
	mu       sync.Mutex
	records  map[string]*Record
	halfLife time.Duration
	now      func() time.Time
}

// New creates an empty reputation store with the default half-life.
func New() *Store {
	return &Store{
		records:  make(map[string]*Record),
		halfLife: DefaultHalfLife,
		now:      time.Now,
	}
}

// WithHalfLife overrides the decay half-life, mainly for tests.
func (s *Store) WithHalfLife(d time.Duration) *Store {
	s.halfLife = d
	return s
}

// WithClock overrides the time source, for deterministic tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) getOrCreateLocked(peerID string) *Record {
	r, ok := s.records[peerID]
	if !ok {
		now := s.now()
		r = &Record{PeerID: peerID, LastSeen: now, LastUpdated: now}
		s.records[peerID] = r
	}
	return r
}

// decay applies exponential half-life decay to alpha/beta as of now,
// per spec §4.3: k = 0.5^(Δdays / T_half). It must be called with the
// store's mutex held, and mutates the record's LastUpdated.
func (s *Store) decayLocked(r *Record, now time.Time) {
	elapsed := now.Sub(r.LastUpdated)
	if elapsed <= 0 || s.halfLife <= 0 {
		return
	}
	deltaDays := elapsed.Hours() / 24
	k := math.Pow(0.5, deltaDays/(s.halfLife.Hours()/24))
	r.Alpha *= k
	r.Beta *= k
	r.LastUpdated = now
}

// NoteSeen records a sighting of a peer without asserting success or
// failure (e.g. a DHT routing table refresh touched it).
func (s *Store) NoteSeen(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	r := s.getOrCreateLocked(peerID)
	s.decayLocked(r, now)
	r.LastSeen = now
}

// Success records a successful interaction, optionally with an observed
// RTT used to update the exponential moving average.
func (s *Store) Success(peerID string, rtt *time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	r := s.getOrCreateLocked(peerID)
	s.decayLocked(r, now)
	r.Alpha++
	r.LastSeen = now
	if rtt != nil {
		ms := float64(rtt.Milliseconds())
		if r.RTTEMA == 0 {
			r.RTTEMA = ms
		} else {
			const alpha = 0.3
			r.RTTEMA = alpha*ms + (1-alpha)*r.RTTEMA
		}
	}
}

// Failure records a failed interaction.
func (s *Store) Failure(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	r := s.getOrCreateLocked(peerID)
	s.decayLocked(r, now)
	r.Beta++
	r.LastSeen = now
}

// Composite computes the [0,1] composite score for peerID per spec §4.3:
// 0.6*rep + 0.25*fresh + 0.15*perf. An unknown peer scores using the Beta
// priors alone (rep=0.5), fresh=0 and perf=0 (no RTT observed).
func (s *Store) Composite(peerID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	r, ok := s.records[peerID]
	if !ok {
		return 0.5*0.6 + 0*0.25 + 0*0.15
	}
	s.decayLocked(r, now)

	rep := (r.Alpha + priorAlpha) / (r.Alpha + r.Beta + priorAlpha + priorBeta)

	secs := now.Sub(r.LastSeen).Seconds()
	var fresh float64
	switch {
	case secs <= freshFullSeconds:
		fresh = 1
	case secs >= freshZeroSeconds:
		fresh = 0
	default:
		fresh = 1 - (secs-freshFullSeconds)/(freshZeroSeconds-freshFullSeconds)
	}

	var perf float64
	if r.RTTEMA <= 0 {
		perf = 0
	} else {
		clamped := clamp(r.RTTEMA, rttFloor, rttCeil)
		perf = 1 - (clamped-rttFloor)/(rttCeil-rttFloor)
	}

	return 0.6*rep + 0.25*fresh + 0.15*perf
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Remove deletes a peer's reputation row entirely (e.g. on peer removal).
func (s *Store) Remove(peerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, peerID)
}

// snapshotPayload is the on-disk format for reputation.snapshot, matching
// the teacher's flat encoding/json-on-disk convention.
type snapshotPayload struct {
	Records []Record `json:"records"`
}

// SaveSnapshot writes every record to path as JSON.
func (s *Store) SaveSnapshot(path string) error {
	s.mu.Lock()
	payload := snapshotPayload{Records: make([]Record, 0, len(s.records))}
	for _, r := range s.records {
		payload.Records = append(payload.Records, *r)
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSnapshot replaces the store's contents with records read from path.
// A missing file is not an error — it means no prior snapshot exists.
func LoadSnapshot(path string) (*Store, error) {
	s := New()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	var payload snapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		log.Warnf("discarding unreadable reputation snapshot %s: %v", path, err)
		return s, nil
	}
	for i := range payload.Records {
		r := payload.Records[i]
		s.records[r.PeerID] = &r
	}
	return s, nil
}

// StartSnapshotLoop persists the store to path every interval and on
// ctx.Done(), matching ManifestReplicator's ticker-driven persistence
// shape in the teacher.
func (s *Store) StartSnapshotLoop(done <-chan struct{}, path string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			if err := s.SaveSnapshot(path); err != nil {
				log.Errorf("final reputation snapshot failed: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.SaveSnapshot(path); err != nil {
				log.Warnf("periodic reputation snapshot failed: %v", err)
			}
		}
	}
}
