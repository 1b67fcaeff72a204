package node

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	relayv2 "github.com/libp2p/go-libp2p/p2p/protocol/circuitv2/relay"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/hashicorp/go-multierror"
	logging "github.com/ipfs/go-log/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/chiral-network/chiral-network/internal/wire"
	"github.com/chiral-network/chiral-network/pkg/checkpoint"
	"github.com/chiral-network/chiral-network/pkg/chunkstore"
	chirdht "github.com/chiral-network/chiral-network/pkg/dht"
	"github.com/chiral-network/chiral-network/pkg/events"
	"github.com/chiral-network/chiral-network/pkg/health"
	"github.com/chiral-network/chiral-network/pkg/holepunch"
	"github.com/chiral-network/chiral-network/pkg/manifest"
	"github.com/chiral-network/chiral-network/pkg/reachability"
	"github.com/chiral-network/chiral-network/pkg/relay"
	"github.com/chiral-network/chiral-network/pkg/reputation"
	"github.com/chiral-network/chiral-network/pkg/scheduler"
	"github.com/chiral-network/chiral-network/pkg/state"
)

var log = logging.Logger("node")

// Node is the host process: the single object embedding every
// collaborator package and answering the operations in spec §6.
type Node struct {
	mu sync.Mutex

	cfg Config
	h   host.Host

	dhtEngine *chirdht.Engine
	relaySvc  *relayv2.Relay
	gossip    *providerGossip

	reachability *reachability.Module
	relay        *relay.Manager
	holepunch    *holepunch.Coordinator
	reputation   *reputation.Store
	health       *health.Manager
	events       *events.Bus
	chunks       *chunkstore.Store
	checkpoints  *checkpoint.Manager
	store        *state.Store
	protocols    *handlerRegistry

	transfers       map[string]*scheduler.Scheduler // keyed by root CID hex
	gossipProviders map[string][]string             // root CID -> peer IDs queued from gossip, drained by download_file

	runCtx    context.Context
	runCancel context.CancelFunc
}

// StartNode constructs and brings up a Node from cfg, matching
// start_node(cfg) -> local_peer_id in spec §6.
func StartNode(ctx context.Context, cfg Config) (*Node, string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	h, err := newLibp2pHost(cfg)
	if err != nil {
		return nil, "", err
	}

	chunkDir := filepath.Join(cfg.DataDir, "chunks")
	chunks, err := chunkstore.New(chunkDir)
	if err != nil {
		h.Close()
		return nil, "", Newf(KindIOError, "node", err, "failed to open chunk store")
	}

	st, err := state.Open(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		h.Close()
		return nil, "", Newf(KindIOError, "node", err, "failed to open state store")
	}

	runCtx, runCancel := context.WithCancel(ctx)

	_, dhtEngine, err := buildDHTEngine(runCtx, h, cfg)
	if err != nil {
		runCancel()
		st.Close()
		h.Close()
		return nil, "", err
	}

	reputationPath := filepath.Join(cfg.DataDir, "reputation.snapshot")
	rep, err := reputation.LoadSnapshot(reputationPath)
	if err != nil {
		log.Warnw("failed to load reputation snapshot, starting empty", "err", err)
		rep = reputation.New()
	}

	n := &Node{
		cfg:          cfg,
		h:            h,
		dhtEngine:    dhtEngine,
		reachability: reachability.New(),
		relay:        relay.New(newRelayDialer(h), relay.NewMetrics(prometheus.DefaultRegisterer)),
		holepunch:    holepunch.New(newHolePunchDialer(h)),
		reputation:   rep,
		health:       health.New(),
		events:       events.New(),
		chunks:       chunks,
		checkpoints:  checkpoint.NewManager(),
		store:           st,
		transfers:       make(map[string]*scheduler.Scheduler),
		gossipProviders: make(map[string][]string),
		runCtx:          runCtx,
		runCancel:       runCancel,
	}
	// The relay-server role is gated on reachability being public with high
	// confidence (spec §4.6/§4.7), not just static config, so it starts
	// inactive (reachability begins unknown) and is re-evaluated on every
	// reachability transition registered below.
	n.reachability.OnTransition(func(t reachability.Transition) {
		n.events.Publish(events.KindReachabilityChanged, n.LocalPeerID(), t)
		n.evaluateRelayServerRole()
	})
	n.evaluateRelayServerRole()
	n.holepunch.OnResult(func(o holepunch.Outcome) {
		n.events.Publish(events.KindDCUtRResult, o.PeerID, o)
	})

	native := newNativeHandler(h, chunks, n.resolveProviders)
	registerChunkHandler(h, chunks)
	registerReachabilityProbeServer(h)
	n.protocols = newHandlerRegistry(native)

	if gossip, err := newProviderGossip(runCtx, h); err != nil {
		log.Warnw("provider gossip unavailable, falling back to DHT-only discovery", "err", err)
	} else {
		n.gossip = gossip
		go gossip.Run(runCtx, n.onProviderAnnouncement)
	}

	go dhtEngine.Run(runCtx)
	go n.reputation.StartSnapshotLoop(runCtx.Done(), reputationPath, 5*time.Minute)
	dialBootstrapPeers(runCtx, h, cfg.BootstrapAddrs)

	if cfg.EnableAutoNAT && len(cfg.AutoNATServers) > 0 {
		interval := time.Duration(cfg.AutoNATProbeIntervalSecs) * time.Second
		runner := reachability.NewRunner(n.reachability, newReachabilityProber(h), cfg.AutoNATServers, interval)
		go runner.Run(runCtx)
	}
	if cfg.EnableAutoRelay {
		go n.maintainRelayClient(runCtx)
	}

	if len(cfg.BootstrapAddrs) > 0 {
		select {
		case err := <-dhtEngine.BootstrapResult():
			if err != nil {
				runCancel()
				st.Close()
				h.Close()
				return nil, "", Newf(KindNetworkTimeout, "dht", err, "bootstrap failed")
			}
		case <-runCtx.Done():
			runCancel()
			st.Close()
			h.Close()
			return nil, "", Newf(KindNetworkTimeout, "dht", runCtx.Err(), "startup cancelled before bootstrap completed")
		}
	}

	log.Infow("node started", "peer_id", h.ID().String(), "port", cfg.DHTPort)
	return n, h.ID().String(), nil
}

// evaluateRelayServerRole re-applies the relay-server gating rule: enabled
// only with enable_relay_server, outside pure-client mode, and reachability
// currently public with high confidence. Called once at startup (reachability
// begins unknown, so the role starts inactive) and again on every
// reachability transition.
func (n *Node) evaluateRelayServerRole() {
	active := n.cfg.EnableRelayServer && !n.cfg.PureClientMode &&
		n.reachability.State() == reachability.StatePublic &&
		n.reachability.Confidence() == reachability.ConfidenceHigh

	n.relay.SetServerRole(active, relay.DefaultActiveCap)

	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case active && n.relaySvc == nil:
		svc, err := newRelayService(n.h)
		if err != nil {
			log.Warnw("relay server role requested but failed to start", "err", err)
			return
		}
		n.relaySvc = svc
	case !active && n.relaySvc != nil:
		if err := n.relaySvc.Close(); err != nil {
			log.Warnw("failed to stop relay service", "err", err)
		}
		n.relaySvc = nil
	}
}

// StopNode tears down the host and its background loops, matching
// stop_node() in spec §6. Every component gets a chance to close even if
// an earlier one fails; the returned error aggregates all of them.
func (n *Node) StopNode() error {
	n.runCancel()

	if n.gossip != nil {
		n.gossip.Close()
	}

	var errs *multierror.Error
	if n.relaySvc != nil {
		if err := n.relaySvc.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("closing relay service: %w", err))
		}
	}
	if err := n.store.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing state store: %w", err))
	}
	if err := n.h.Close(); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("closing host: %w", err))
	}
	n.events.Close()

	if err := errs.ErrorOrNil(); err != nil {
		return Newf(KindIOError, "node", err, "one or more components failed to close")
	}
	return nil
}

// LocalPeerID returns this node's own peer ID string.
func (n *Node) LocalPeerID() string { return n.h.ID().String() }

// ReachabilityState reports the node's current reachability state and
// confidence, as last resolved by reachability.Module from AutoNAT-style
// probes (spec §4.6/§8). Both start at Unknown/Low until enough probes
// have run, if enable_autonat is on at all.
func (n *Node) ReachabilityState() (reachability.State, reachability.Confidence) {
	return n.reachability.State(), n.reachability.Confidence()
}

// PublishFile builds a manifest from a local file, stores its chunks, and
// asserts a provider record over the DHT, matching publish_file in
// spec §6. Pure-client-mode nodes refuse to publish: they never assert
// provider records per scenario 6.
func (n *Node) PublishFile(ctx context.Context, path string, pricePerMiB float64, protocol Protocol) (*manifest.Manifest, error) {
	if n.cfg.PureClientMode {
		return nil, Newf(KindConfigInvalid, "node", nil, "publish_file is refused in pure client mode")
	}
	if protocol != ProtocolNative && protocol != "" {
		return nil, ErrUnsupportedProtocol
	}

	m, err := manifest.Build(n.chunks, path, n.cfg.chunkSizeBytes())
	if err != nil {
		return nil, Newf(KindIOError, "node", err, "failed to build manifest for %s", path)
	}
	rootCID, err := m.RootCID()
	if err != nil {
		return nil, Newf(KindManifestInvalid, "node", err, "failed to compute root cid")
	}

	rec := &wire.ProviderRecord{
		RootCID:     rootCID.String(),
		PeerID:      n.h.ID().String(),
		Addrs:       addrStrings(n.h),
		PricePerMiB: pricePerMiB,
		TTLSeconds:  int64(wire.DefaultProviderTTL.Seconds()),
		AssertedAt:  time.Now(),
	}
	if err := n.dhtEngine.PutProvider(ctx, rootCID.String(), rec); err != nil {
		return nil, Newf(KindNetworkTimeout, "node", err, "failed to publish provider record")
	}
	if err := n.store.PinRoot(rootCID.String()); err != nil {
		log.Warnw("failed to pin published root", "root_cid", rootCID.String(), "err", err)
	}
	if err := n.saveManifest(rootCID.String(), m); err != nil {
		log.Warnw("failed to persist manifest document", "root_cid", rootCID.String(), "err", err)
	}
	if err := n.protocols.Handler(protocol).StartSeeding(ctx, rootCID.String()); err != nil {
		log.Warnw("start_seeding failed after publish", "root_cid", rootCID.String(), "err", err)
	}
	if n.gossip != nil {
		if err := n.gossip.Announce(ctx, rootCID.String(), rec.Addrs); err != nil {
			log.Warnw("provider gossip announce failed", "root_cid", rootCID.String(), "err", err)
		}
	}
	n.events.Publish(events.KindPublishedFile, rootCID.String(), m)
	return m, nil
}

// ProtocolHandler exposes the capability handler for a given protocol,
// matching the {get_providers, fetch_chunk, start_seeding, stop_seeding}
// surface spec §9's design note calls for.
func (n *Node) ProtocolHandler(p Protocol) ProtocolHandler {
	return n.protocols.Handler(p)
}

// DownloadFile drives the chunk scheduler to completion against a known
// manifest and reassembles the file at outPath, matching download_file
// in spec §6.
func (n *Node) DownloadFile(ctx context.Context, m *manifest.Manifest, outPath string) (*manifest.Manifest, error) {
	rootCID, err := m.RootCID()
	if err != nil {
		return nil, Newf(KindManifestInvalid, "node", err, "failed to compute root cid")
	}
	key := rootCID.String()

	cids := make([]chunkstore.CID, len(m.Chunks))
	for i, e := range m.Chunks {
		cids[i] = e.CID
	}

	sched := scheduler.New(scheduler.DefaultConfig(), cids, n.reputation, n.health)
	n.mu.Lock()
	n.transfers[key] = sched
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		delete(n.transfers, key)
		delete(n.gossipProviders, key)
		n.mu.Unlock()
	}()

	providers, err := n.resolveProviders(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		return nil, Newf(KindProviderLookupEmpty, "node", nil, "no providers found for %s", key)
	}
	for _, p := range providers {
		for idx := range m.Chunks {
			sched.AddProvider(idx, p.String())
		}
	}

	ck := n.resumeOrInitCheckpoint(key, m.Size)

	for !sched.IsComplete() {
		if err := ctx.Err(); err != nil {
			return nil, Newf(KindNetworkTimeout, "node", err, "download cancelled for %s", key)
		}
		n.drainGossipProviders(key, sched)
		reqs := sched.NextRequests(8)
		if len(reqs) == 0 {
			if !sched.HasPendingWork() {
				return nil, Newf(KindChunkMissing, "node", nil, "scheduler gave up on one or more chunks for %s", key)
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		// Fetching is network I/O and safe to run concurrently across the
		// distinct peers one pass targets; the scheduler itself is not
		// safe for concurrent mutation, so every fetch's outcome is
		// applied back on this goroutine once the group completes.
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(len(reqs))
		outcomes := make([]fetchOutcome, len(reqs))
		for i, req := range reqs {
			i, req := i, req
			g.Go(func() error {
				outcomes[i] = n.fetchChunk(gctx, m, req)
				return nil
			})
		}
		_ = g.Wait()
		for _, o := range outcomes {
			n.applyFetchOutcome(sched, ck, o)
		}
	}

	ck.MarkCompleted()
	if err := n.store.RemoveCheckpointSession(key); err != nil {
		log.Warnw("failed to remove completed checkpoint session", "root_cid", key, "err", err)
	}

	if err := manifest.Reassemble(n.chunks, m, outPath); err != nil {
		return nil, Newf(KindIOError, "node", err, "failed to reassemble %s", outPath)
	}
	if err := n.saveManifest(key, m); err != nil {
		log.Warnw("failed to persist manifest document", "root_cid", key, "err", err)
	}
	n.events.Publish(events.KindFileContent, key, m)
	return m, nil
}

// fetchOutcome carries a single chunk fetch's result back to the scheduler
// goroutine so NextRequests/ChunkReceived/ChunkFailed are only ever called
// from one goroutine even though the fetches themselves ran concurrently.
type fetchOutcome struct {
	req       scheduler.Request
	data      []byte
	rtt       time.Duration
	corrupted bool
	err       error
}

func (n *Node) fetchChunk(ctx context.Context, m *manifest.Manifest, req scheduler.Request) fetchOutcome {
	entry := m.Chunks[req.ChunkIndex]
	pid, err := peer.Decode(req.PeerID)
	if err != nil {
		return fetchOutcome{req: req, err: err}
	}

	start := time.Now()
	data, err := FetchChunkFromPeer(ctx, n.h, pid, entry.CID)
	if err != nil {
		if nodeErr, ok := err.(*Error); ok && nodeErr.Kind == KindPeerUnavailable && n.attemptHolePunch(ctx, pid) {
			data, err = FetchChunkFromPeer(ctx, n.h, pid, entry.CID)
		}
	}
	rtt := time.Since(start)
	if err != nil {
		corrupted := false
		if nodeErr, ok := err.(*Error); ok && nodeErr.Kind == KindIntegrityMismatch {
			corrupted = true
		}
		return fetchOutcome{req: req, rtt: rtt, corrupted: corrupted, err: err}
	}
	return fetchOutcome{req: req, data: data, rtt: rtt}
}

// drainGossipProviders feeds any peers the provider-gossip subscriber has
// queued for rootCID into sched, the one goroutine allowed to mutate it.
func (n *Node) drainGossipProviders(rootCID string, sched *scheduler.Scheduler) {
	n.mu.Lock()
	peers := n.gossipProviders[rootCID]
	delete(n.gossipProviders, rootCID)
	n.mu.Unlock()
	for _, pid := range peers {
		for idx := 0; idx < sched.ChunkCount(); idx++ {
			sched.AddProvider(idx, pid)
		}
	}
}

// attemptHolePunch upgrades an indirect (relayed) connection to peerID
// into a direct one via the Hole-Punch Coordinator (spec §4.8), tried
// opportunistically whenever a direct stream attempt fails with
// peer_unavailable. Returns false (without coordinating anything) if
// there is no relayed connection to upgrade from.
func (n *Node) attemptHolePunch(ctx context.Context, pid peer.ID) bool {
	var relayPeerID string
	for _, c := range n.h.Network().ConnsToPeer(pid) {
		if id := relayIDFromCircuitAddr(c.RemoteMultiaddr()); id != "" {
			relayPeerID = id
			break
		}
	}
	if relayPeerID == "" {
		return false
	}

	n.holepunch.BeginSession(pid.String(), relayPeerID)
	addrs := n.h.Peerstore().Addrs(pid)
	observed := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if relayIDFromCircuitAddr(a) == "" {
			observed = append(observed, a.String())
		}
	}
	if len(observed) == 0 {
		return false
	}
	outcome := n.holepunch.Attempt(pid.String(), time.Now(), 2*time.Second, observed)
	return outcome.Result == holepunch.ResultSuccess
}

// relayIDFromCircuitAddr returns the relay peer ID embedded in a
// "/p2p/<relay>/p2p-circuit/p2p/<dst>" multiaddr, or "" if addr isn't a
// relayed (circuit) address.
func relayIDFromCircuitAddr(addr ma.Multiaddr) string {
	s := addr.String()
	idx := strings.Index(s, "/p2p-circuit")
	if idx < 0 {
		return ""
	}
	parts := strings.Split(s[:idx], "/p2p/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// applyFetchOutcome feeds one fetch's result into the scheduler and
// checkpoint, both of which require serialized access from a single
// goroutine.
func (n *Node) applyFetchOutcome(sched *scheduler.Scheduler, ck *checkpoint.Session, o fetchOutcome) {
	if o.err != nil {
		sched.ChunkFailed(o.req.ChunkIndex, o.req.PeerID, o.corrupted)
		return
	}
	if _, err := n.chunks.Put(o.data); err != nil {
		sched.ChunkFailed(o.req.ChunkIndex, o.req.PeerID, false)
		return
	}
	sched.ChunkReceived(o.req.ChunkIndex, o.req.PeerID, o.rtt)
	ck.UpdateProgress(ck.Snapshot().BytesTransferred + int64(len(o.data)))
	if ck.ShouldPauseServing() {
		n.saveCheckpointSession(ck.Snapshot())
	}
	n.events.Publish(events.KindTransferProgress, ck.SessionID, o.req)
}

// saveCheckpointSession persists a checkpoint session snapshot so a
// resumed download (resumeOrInitCheckpoint) doesn't restart payment
// bookkeeping from byte zero. Sessions are keyed by root CID, so
// SessionID doubles as RootCID here.
func (n *Node) saveCheckpointSession(info checkpoint.Info) {
	rec := state.CheckpointSessionRecord{
		SessionID:        info.SessionID,
		RootCID:          info.SessionID,
		FileSize:         info.FileSize,
		BytesTransferred: info.BytesTransferred,
		IntervalMiB:      info.IntervalMiB,
		NextCheckpoint:   info.NextCheckpoint,
		TotalPaid:        info.TotalPaid,
		Mode:             string(info.Mode),
		State:            string(info.State),
	}
	if err := n.store.SaveCheckpointSession(rec); err != nil {
		log.Warnw("failed to persist checkpoint session", "session", info.SessionID, "err", err)
	}
}

// resumeOrInitCheckpoint restores a persisted, not-yet-completed
// checkpoint session for rootCID if one exists, otherwise starts a fresh
// one, so a download interrupted mid-transfer resumes its payment
// bookkeeping instead of re-negotiating from byte zero.
func (n *Node) resumeOrInitCheckpoint(rootCID string, fileSize int64) *checkpoint.Session {
	if rec, ok, err := n.store.LoadCheckpointSession(rootCID); err == nil && ok && rec.State != string(checkpoint.StateCompleted) {
		s := checkpoint.Restore(checkpoint.Info{
			SessionID:        rec.SessionID,
			FileSize:         rec.FileSize,
			BytesTransferred: rec.BytesTransferred,
			IntervalMiB:      rec.IntervalMiB,
			NextCheckpoint:   rec.NextCheckpoint,
			TotalPaid:        rec.TotalPaid,
			Mode:             checkpoint.Mode(rec.Mode),
			State:            checkpoint.State(rec.State),
		})
		n.checkpoints.Put(s)
		return s
	}
	s := n.checkpoints.Init(rootCID, fileSize, checkpoint.ModeExponential)
	n.saveCheckpointSession(s.Snapshot())
	return s
}

// SearchFileMetadata looks up the providers of a root CID via the DHT and
// returns their peer IDs, or nil if none answer within timeout. It does
// not fetch or return the file's Manifest; manifests are not stored on
// the DHT in this build.
func (n *Node) SearchFileMetadata(ctx context.Context, rootCID string, timeout time.Duration) ([]string, error) {
	recs, err := n.dhtEngine.GetProviders(ctx, rootCID, timeout)
	if err != nil {
		return nil, Newf(KindNetworkTimeout, "node", err, "provider lookup failed for %s", rootCID)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	peers := make([]string, 0, len(recs))
	for _, r := range recs {
		peers = append(peers, r.PeerID)
	}
	return peers, nil
}

// GetFileSeeders returns the peer IDs currently asserting a provider
// record for rootCID, matching get_file_seeders in spec §6.
func (n *Node) GetFileSeeders(ctx context.Context, rootCID string) ([]string, error) {
	return n.SearchFileMetadata(ctx, rootCID, 5*time.Second)
}

// GetDHTPeerCount matches get_dht_peer_count in spec §6.
func (n *Node) GetDHTPeerCount(ctx context.Context) (int, error) {
	return n.dhtEngine.PeerCount(ctx)
}

// GetDHTHealth matches get_dht_health in spec §6.
func (n *Node) GetDHTHealth(ctx context.Context) (chirdht.Health, error) {
	return n.dhtEngine.GetHealth(ctx)
}

// ConnectToPeer matches connect_to_peer(multiaddr) -> ok|err in spec §6.
func (n *Node) ConnectToPeer(ctx context.Context, addr string) error {
	a, err := ma.NewMultiaddr(addr)
	if err != nil {
		return Newf(KindConfigInvalid, "node", err, "invalid multiaddr %q", addr)
	}
	if err := n.dhtEngine.ConnectToPeer(ctx, a); err != nil {
		return Newf(KindConnectionRefused, "node", err, "failed to connect to %s", addr)
	}
	return nil
}

// --- payment checkpoint operations (spec §6) ---

func (n *Node) InitPaymentCheckpoint(sessionID string, fileSize int64, mode checkpoint.Mode) checkpoint.Info {
	return n.checkpoints.Init(sessionID, fileSize, mode).Snapshot()
}

func (n *Node) UpdateCheckpointProgress(sessionID string, bytes int64) (checkpoint.Info, error) {
	s, ok := n.checkpoints.Get(sessionID)
	if !ok {
		return checkpoint.Info{}, Newf(KindConfigInvalid, "checkpoint", nil, "unknown session %s", sessionID)
	}
	s.UpdateProgress(bytes)
	return s.Snapshot(), nil
}

func (n *Node) RecordCheckpointPayment(sessionID, txHash string, amount float64) (checkpoint.Info, error) {
	s, ok := n.checkpoints.Get(sessionID)
	if !ok {
		return checkpoint.Info{}, Newf(KindConfigInvalid, "checkpoint", nil, "unknown session %s", sessionID)
	}
	if err := s.RecordPayment(txHash, amount); err != nil {
		return s.Snapshot(), Newf(KindInsufficientPayment, "checkpoint", err, "payment rejected for %s", sessionID)
	}
	info := s.Snapshot()
	n.saveCheckpointSession(info)
	return info, nil
}

func (n *Node) CheckShouldPauseServing(sessionID string) (bool, error) {
	s, ok := n.checkpoints.Get(sessionID)
	if !ok {
		return false, Newf(KindConfigInvalid, "checkpoint", nil, "unknown session %s", sessionID)
	}
	return s.ShouldPauseServing(), nil
}

func (n *Node) GetPaymentCheckpointInfo(sessionID string) (checkpoint.Info, error) {
	s, ok := n.checkpoints.Get(sessionID)
	if !ok {
		return checkpoint.Info{}, Newf(KindConfigInvalid, "checkpoint", nil, "unknown session %s", sessionID)
	}
	return s.Snapshot(), nil
}

func (n *Node) MarkCheckpointPaymentFailed(sessionID, reason string) error {
	s, ok := n.checkpoints.Get(sessionID)
	if !ok {
		return Newf(KindConfigInvalid, "checkpoint", nil, "unknown session %s", sessionID)
	}
	s.MarkPaymentFailed(reason)
	n.saveCheckpointSession(s.Snapshot())
	return nil
}

func (n *Node) MarkCheckpointCompleted(sessionID string) error {
	s, ok := n.checkpoints.Get(sessionID)
	if !ok {
		return Newf(KindConfigInvalid, "checkpoint", nil, "unknown session %s", sessionID)
	}
	s.MarkCompleted()
	return nil
}

func (n *Node) RemovePaymentCheckpointSession(sessionID string) error {
	n.checkpoints.Remove(sessionID)
	return n.store.RemoveCheckpointSession(sessionID)
}

// resolveProviders asks the DHT for a root CID's providers and returns
// every decodable provider peer it reports, with no mode check and no
// filtering of the local peer, adding their addresses to the peerstore
// and creating a health entry for each.
func (n *Node) resolveProviders(ctx context.Context, rootCID string) ([]peer.ID, error) {
	recs, err := n.dhtEngine.GetProviders(ctx, rootCID, 5*time.Second)
	if err != nil {
		return nil, err
	}
	out := make([]peer.ID, 0, len(recs))
	for _, r := range recs {
		pid, err := peer.Decode(r.PeerID)
		if err != nil {
			continue
		}
		for _, a := range r.Addrs {
			if addr, err := ma.NewMultiaddr(a); err == nil {
				n.h.Peerstore().AddAddr(pid, addr, 10*time.Minute)
			}
		}
		n.health.Observe(pid.String())
		out = append(out, pid)
	}
	return out, nil
}

// saveManifest writes a manifest document to manifests/<rootCID>.json
// under the data directory, per the persistent state layout spec.md §6
// calls out.
func (n *Node) saveManifest(rootCID string, m *manifest.Manifest) error {
	dir := filepath.Join(n.cfg.DataDir, "manifests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := manifest.Encode(m)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, rootCID+".json"), data, 0o644)
}

func addrStrings(h host.Host) []string {
	addrs := h.Addrs()
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, fmt.Sprintf("%s/p2p/%s", a, h.ID()))
	}
	return out
}
