// Package scheduler implements the Chunk Scheduler: a state machine over
// chunk lifecycle that allocates outstanding requests to peers under
// concurrency, load-balance and rarest-first rules, handling timeouts,
// retries and corruption.
package scheduler

import (
	"sort"
	"time"

	"github.com/chiral-network/chiral-network/pkg/chunkstore"
	"github.com/chiral-network/chiral-network/pkg/health"
	"github.com/chiral-network/chiral-network/pkg/reputation"
)

// ChunkState is a chunk's lifecycle state.
type ChunkState int

const (
	Unrequested ChunkState = iota
	InFlight
	Received
	Corrupted
	GaveUp
)

// Strategy selects the scheduler's chunk/peer selection policy.
type Strategy int

const (
	LoadBalanced Strategy = iota
	ReputationWeighted
	RarestFirst
)

const (
	DefaultMaxConcurrentPerPeer = 2
	DefaultChunkTimeout         = 30 * time.Second
	DefaultMaxRetries           = 3
)

// Config bundles the scheduler's tunables (spec §4.9).
type Config struct {
	MaxConcurrentPerPeer int
	ChunkTimeout         time.Duration
	MaxRetries           int
	Strategy             Strategy
}

// DefaultConfig returns the spec's stated defaults: 2, 30s, 3, load_balanced.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentPerPeer: DefaultMaxConcurrentPerPeer,
		ChunkTimeout:         DefaultChunkTimeout,
		MaxRetries:           DefaultMaxRetries,
		Strategy:             LoadBalanced,
	}
}

// chunk is the scheduler's internal per-chunk bookkeeping.
type chunk struct {
	index       int
	cid         chunkstore.CID
	state       ChunkState
	attempt     int
	blacklist   map[string]struct{} // peer IDs known to have served a corrupt copy
}

// activeRequest is an outstanding (chunk, peer) assignment.
type activeRequest struct {
	chunkIndex  int
	peerID      string
	requestedAt time.Time
	attempt     int
}

// Scheduler is not safe for concurrent mutation — per spec §5 it is
// invoked only from its owning transfer task; callers serialize external
// events into its inbox themselves.
type Scheduler struct {
	cfg     Config
	chunks  []*chunk
	active  map[int]*activeRequest // chunk index -> active request
	pending map[string]int         // peer id -> pending count (scheduler-local mirror)

	// providers[chunkIndex] is the set of peers known to advertise it.
	providers map[int]map[string]struct{}

	reputation *reputation.Store
	health     *health.Manager

	now func() time.Time
}

// New creates a scheduler over total chunks, each initially UNREQUESTED.
func New(cfg Config, cids []chunkstore.CID, rep *reputation.Store, hm *health.Manager) *Scheduler {
	chunks := make([]*chunk, len(cids))
	for i, c := range cids {
		chunks[i] = &chunk{index: i, cid: c, state: Unrequested, blacklist: map[string]struct{}{}}
	}
	return &Scheduler{
		cfg:        cfg,
		chunks:     chunks,
		active:     make(map[int]*activeRequest),
		pending:    make(map[string]int),
		providers:  make(map[int]map[string]struct{}),
		reputation: rep,
		health:     hm,
		now:        time.Now,
	}
}

// WithClock overrides the time source, for deterministic tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// ChunkCount returns the total number of chunks this scheduler tracks.
// The chunk list is fixed at construction, so this needs no lock.
func (s *Scheduler) ChunkCount() int {
	return len(s.chunks)
}

// AddProvider records that peerID advertises chunkIndex.
func (s *Scheduler) AddProvider(chunkIndex int, peerID string) {
	set, ok := s.providers[chunkIndex]
	if !ok {
		set = make(map[string]struct{})
		s.providers[chunkIndex] = set
	}
	set[peerID] = struct{}{}
}

// Request describes one chunk-from-peer assignment the caller must issue.
type Request struct {
	ChunkIndex int
	PeerID     string
}

// NextRequests runs one scheduling pass: it first purges expired active
// requests (treated as failures, non-corrupted), then repeatedly picks a
// chunk and a peer for it until budget is exhausted or no further
// dispatch is possible.
func (s *Scheduler) NextRequests(budget int) []Request {
	s.purgeExpired()

	var out []Request
	for len(out) < budget {
		idx, ok := s.pickChunk()
		if !ok {
			break
		}
		peerID, ok := s.pickPeer(idx)
		if !ok {
			// No peer eligible for this chunk right now; per spec, a
			// single ineligible chunk does not necessarily stop the
			// pass — but if the chosen (rarest/first) chunk has no
			// eligible peer, no other chunk will fare better under the
			// same global peer pool, so the pass idles here.
			break
		}

		s.active[idx] = &activeRequest{
			chunkIndex:  idx,
			peerID:      peerID,
			requestedAt: s.now(),
			attempt:     s.chunks[idx].attempt,
		}
		s.chunks[idx].state = InFlight
		s.pending[peerID]++
		s.health.IncPending(peerID)

		out = append(out, Request{ChunkIndex: idx, PeerID: peerID})
	}
	return out
}

// purgeExpired fails any active request whose deadline has passed.
func (s *Scheduler) purgeExpired() {
	now := s.now()
	for idx, req := range s.active {
		if now.Sub(req.requestedAt) >= s.cfg.ChunkTimeout {
			s.failLocked(idx, req.peerID, false)
		}
	}
}

// pickChunk selects the next UNREQUESTED chunk index per the configured
// strategy. rarest_first and reputation_weighted both break ties by
// fewest advertising peers; load_balanced picks lowest index.
func (s *Scheduler) pickChunk() (int, bool) {
	var candidates []int
	for _, c := range s.chunks {
		if c.state == Unrequested {
			candidates = append(candidates, c.index)
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}

	if s.cfg.Strategy == LoadBalanced {
		sort.Ints(candidates)
		return candidates[0], true
	}

	// rarest_first / reputation_weighted: fewest advertising peers wins,
	// ties broken by lowest index for determinism.
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		ni, nj := len(s.providers[ci]), len(s.providers[cj])
		if ni != nj {
			return ni < nj
		}
		return ci < cj
	})
	return candidates[0], true
}

// pickPeer selects an eligible peer to serve chunkIndex.
func (s *Scheduler) pickPeer(chunkIndex int) (string, bool) {
	c := s.chunks[chunkIndex]
	var eligible []string
	for peerID := range s.providers[chunkIndex] {
		if _, blacklisted := c.blacklist[peerID]; blacklisted {
			continue
		}
		d := s.health.Decide(peerID)
		if !d.ShouldUse {
			continue
		}
		if s.pending[peerID] >= s.effectiveMaxConcurrent(peerID, d) {
			continue
		}
		eligible = append(eligible, peerID)
	}
	if len(eligible) == 0 {
		return "", false
	}

	switch s.cfg.Strategy {
	case ReputationWeighted:
		sort.Slice(eligible, func(i, j int) bool {
			return s.lessByCompositeThenTieBreak(eligible[i], eligible[j])
		})
	default: // load_balanced and rarest_first both pick minimum pending here
		sort.Slice(eligible, func(i, j int) bool {
			return s.lessByPendingThenTieBreak(eligible[i], eligible[j])
		})
	}
	return eligible[0], true
}

func (s *Scheduler) effectiveMaxConcurrent(peerID string, d health.Decision) int {
	max := s.cfg.MaxConcurrentPerPeer
	if d.MaxConcurrent > 0 && d.MaxConcurrent < max {
		max = d.MaxConcurrent
	}
	return max
}

// lessByPendingThenTieBreak orders by (a) lower pending, (b) higher
// composite, (c) lexicographic peer id, per spec §4.9 tie-break rules.
func (s *Scheduler) lessByPendingThenTieBreak(a, b string) bool {
	if s.pending[a] != s.pending[b] {
		return s.pending[a] < s.pending[b]
	}
	return s.lessByCompositeThenTieBreak(a, b)
}

func (s *Scheduler) lessByCompositeThenTieBreak(a, b string) bool {
	ca, cb := s.reputation.Composite(a), s.reputation.Composite(b)
	if ca != cb {
		return ca > cb // higher composite sorts first
	}
	if s.pending[a] != s.pending[b] {
		return s.pending[a] < s.pending[b]
	}
	return a < b
}

// ChunkReceived marks a chunk as successfully received once its CID has
// been verified by the caller (chunkstore already refuses to store a
// non-matching payload, so callers verify before calling this).
func (s *Scheduler) ChunkReceived(chunkIndex int, peerID string, rtt time.Duration) {
	req, ok := s.active[chunkIndex]
	if !ok || req.peerID != peerID {
		return
	}
	delete(s.active, chunkIndex)
	s.decPending(peerID)
	s.chunks[chunkIndex].state = Received
	s.reputation.Success(peerID, &rtt)
	s.health.Success(peerID, rtt)
}

// ChunkFailed routes a failure: corrupted failures blacklist the
// (chunk, peer) pair permanently (the chunk may still be retried from a
// different peer); non-corrupted failures count against max_retries.
func (s *Scheduler) ChunkFailed(chunkIndex int, peerID string, corrupted bool) {
	s.failLocked(chunkIndex, peerID, corrupted)
}

func (s *Scheduler) failLocked(chunkIndex int, peerID string, corrupted bool) {
	req, ok := s.active[chunkIndex]
	if ok && req.peerID == peerID {
		delete(s.active, chunkIndex)
	}
	s.decPending(peerID)
	s.reputation.Failure(peerID)
	s.health.Failure(peerID)

	c := s.chunks[chunkIndex]
	if corrupted {
		c.blacklist[peerID] = struct{}{}
		c.state = Corrupted
		// Still schedulable from other peers: flip back to UNREQUESTED
		// unless every known provider is now blacklisted.
		if s.hasEligibleProvider(chunkIndex) {
			c.state = Unrequested
		}
		return
	}

	c.attempt++
	if c.attempt < s.cfg.MaxRetries {
		c.state = Unrequested
	} else {
		c.state = GaveUp
	}
}

func (s *Scheduler) hasEligibleProvider(chunkIndex int) bool {
	c := s.chunks[chunkIndex]
	for peerID := range s.providers[chunkIndex] {
		if _, blacklisted := c.blacklist[peerID]; !blacklisted {
			return true
		}
	}
	return false
}

func (s *Scheduler) decPending(peerID string) {
	if s.pending[peerID] > 0 {
		s.pending[peerID]--
	}
	s.health.DecPending(peerID)
}

// RemovePeer returns any active requests to the removed peer to
// UNREQUESTED and zeroes its pending count.
func (s *Scheduler) RemovePeer(peerID string) {
	for idx, req := range s.active {
		if req.peerID == peerID {
			delete(s.active, idx)
			s.chunks[idx].state = Unrequested
		}
	}
	delete(s.pending, peerID)
	s.health.ZeroPending(peerID)
	for idx := range s.providers {
		delete(s.providers[idx], peerID)
	}
}

// IsComplete reports whether every chunk has reached RECEIVED.
func (s *Scheduler) IsComplete() bool {
	for _, c := range s.chunks {
		if c.state != Received {
			return false
		}
	}
	return true
}

// HasPendingWork reports whether any chunk can still make progress
// (is not RECEIVED and not permanently GAVE_UP).
func (s *Scheduler) HasPendingWork() bool {
	for _, c := range s.chunks {
		if c.state != Received && c.state != GaveUp {
			return true
		}
	}
	return false
}

// Counts tallies chunks per state, for the scheduler invariant in spec §8:
// active+received+unrequested+corrupted+gave_up == total_chunks.
type Counts struct {
	Unrequested, InFlight, Received, Corrupted, GaveUp int
}

// StateCounts returns the current tally across all chunks.
func (s *Scheduler) StateCounts() Counts {
	var c Counts
	for _, ch := range s.chunks {
		switch ch.state {
		case Unrequested:
			c.Unrequested++
		case InFlight:
			c.InFlight++
		case Received:
			c.Received++
		case Corrupted:
			c.Corrupted++
		case GaveUp:
			c.GaveUp++
		}
	}
	return c
}

// TotalPending sums pending counts across all peers, for the invariant
// sum(peer.pending) == active.count.
func (s *Scheduler) TotalPending() int {
	total := 0
	for _, p := range s.pending {
		total += p
	}
	return total
}

// ActiveCount returns the number of in-flight requests.
func (s *Scheduler) ActiveCount() int {
	return len(s.active)
}

// ChunkRetryCount returns the retry attempt counter for a chunk index.
func (s *Scheduler) ChunkRetryCount(chunkIndex int) int {
	return s.chunks[chunkIndex].attempt
}

// ChunkStateOf returns the lifecycle state of a chunk index.
func (s *Scheduler) ChunkStateOf(chunkIndex int) ChunkState {
	return s.chunks[chunkIndex].state
}
