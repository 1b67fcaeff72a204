// Package dht implements the DHT Engine: a Kademlia participant built on
// go-libp2p-kad-dht, run as a single driver task that owns the routing
// table and all network I/O. Every other component talks to it only by
// sending commands through Engine's channel, per the concurrency model's
// "no coarse locks, serialize by message-passing" rule.
package dht

import (
	"context"
	"fmt"
	"math"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/chiral-network/chiral-network/internal/wire"
)

// providerLookupCacheSize bounds the engine's short-lived memo of recent
// FindProviders results, so a burst of downloads resolving the same root
// CID in quick succession (a popular file, several schedulers starting at
// once) doesn't each drive its own iterative DHT walk.
const providerLookupCacheSize = 256

// providerLookupCacheTTL is how long a cached lookup answers without
// re-querying the network.
const providerLookupCacheTTL = 10 * time.Second

type providerLookupEntry struct {
	records  []*wire.ProviderRecord
	fetchedAt time.Time
}

var log = logging.Logger("dht")

const (
	// DefaultMinBucketFill is the routing-table fill target below which
	// the fast refresh interval applies.
	DefaultMinBucketFill = 4
	// DefaultFastRefreshInterval is the refresh cadence while under fill target.
	DefaultFastRefreshInterval = 1 * time.Second
	// DefaultSteadyRefreshInterval is the refresh cadence once filled.
	DefaultSteadyRefreshInterval = 30 * time.Second
	// DefaultBootstrapBackoffCap bounds bootstrap retry backoff.
	DefaultBootstrapBackoffCap = 2 * time.Minute
	// DefaultBootstrapRetryCap is the consecutive-failure count at which
	// BootstrapResult reports a failure to a synchronously waiting caller.
	DefaultBootstrapRetryCap = 5
)

// Kademlia abstracts the subset of *dht.IpfsDHT the engine drives,
// letting tests exercise the command-channel driver without real
// sockets. Adapter wraps the concrete go-libp2p-kad-dht type.
type Kademlia interface {
	Bootstrap(ctx context.Context) error
	Connect(ctx context.Context, pi peer.AddrInfo) error
	Provide(ctx context.Context, key string, record *wire.ProviderRecord) error
	FindProviders(ctx context.Context, key string) ([]*wire.ProviderRecord, error)
	RoutingTableSize() int
}

// Config configures the engine, matching the relevant fields of the
// host-process cfg struct in spec §6.
type Config struct {
	BootstrapAddrs []ma.Multiaddr
	ClientOnly     bool
	BootstrapRole  bool
	ReprovideEvery time.Duration
	MinBucketFill  int
}

// Health mirrors get_dht_health's schema.
type Health struct {
	PeerCount         int
	BootstrapFailures int
	Bootstrapped      bool
	ClientOnly        bool
	BootstrapRole     bool
}

type commandKind int

const (
	cmdPutProvider commandKind = iota
	cmdGetProviders
	cmdPeerCount
	cmdHealth
	cmdConnect
	cmdReprovideTick
	cmdRefreshTick
)

type command struct {
	kind     commandKind
	rootCID  string
	addr     ma.Multiaddr
	record   *wire.ProviderRecord
	timeout  time.Duration
	replyErr chan error
	replyProviders chan []*wire.ProviderRecord
	replyInt chan int
	replyHealth chan Health
}

// Engine is the DHT driver task. Create with New, start with Run in its
// own goroutine, and interact only via the exported methods, which are
// safe to call from any goroutine because they merely enqueue commands.
type Engine struct {
	kad    Kademlia
	cfg    Config
	cmds   chan command
	now    func() time.Time

	localRoots map[string]*wire.ProviderRecord // re-advertised on the reprovide timer
	lookupCache *lru.Cache[string, providerLookupEntry]

	bootstrapFailures int
	bootstrapped      bool
	bootstrapResult   chan error
}

// New creates an engine over a Kademlia driver.
func New(kad Kademlia, cfg Config) *Engine {
	if cfg.ReprovideEvery <= 0 {
		cfg.ReprovideEvery = wire.DefaultReprovideInterval
	}
	if cfg.MinBucketFill <= 0 {
		cfg.MinBucketFill = DefaultMinBucketFill
	}
	cache, _ := lru.New[string, providerLookupEntry](providerLookupCacheSize)
	return &Engine{
		kad:             kad,
		cfg:             cfg,
		cmds:            make(chan command, 64),
		now:             time.Now,
		localRoots:      make(map[string]*wire.ProviderRecord),
		lookupCache:     cache,
		bootstrapResult: make(chan error, 1),
	}
}

// BootstrapResult signals once with the outcome of the engine's initial
// bootstrap attempt: nil on success, or an error once DefaultBootstrapRetryCap
// attempts have failed. Background refresh continues retrying indefinitely
// afterward (handleRefresh's periodic Bootstrap calls are unbounded), so a
// caller that gives up waiting here isn't giving up on the DHT ever joining
// — only on blocking startup for it.
func (e *Engine) BootstrapResult() <-chan error {
	return e.bootstrapResult
}

// WithClock overrides the time source, for deterministic tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Run drives the engine's command loop and internal tickers until ctx is
// cancelled. Call it once, in its own goroutine.
func (e *Engine) Run(ctx context.Context) {
	e.bootstrapWithBackoff(ctx)

	refresh := time.NewTicker(e.refreshInterval())
	reprovide := time.NewTicker(e.cfg.ReprovideEvery)
	defer refresh.Stop()
	defer reprovide.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmds:
			e.handle(ctx, cmd)
		case <-refresh.C:
			e.handleRefresh(ctx)
			refresh.Reset(e.refreshInterval())
		case <-reprovide.C:
			e.handleReprovide(ctx)
		}
	}
}

// refreshInterval backs off to the steady-state interval once the routing
// table is filled, except for a bootstrap-role node: it exists specifically
// to keep other nodes' routing tables fresh, so it always refreshes at the
// fast interval regardless of its own bucket fill.
func (e *Engine) refreshInterval() time.Duration {
	if e.cfg.BootstrapRole || e.kad.RoutingTableSize() < e.cfg.MinBucketFill {
		return DefaultFastRefreshInterval
	}
	return DefaultSteadyRefreshInterval
}

// bootstrapWithBackoff dials the configured bootstrap peers, retrying with
// capped exponential backoff and counting failures (surfaced via
// Health.BootstrapFailures). Once DefaultBootstrapRetryCap consecutive
// failures accumulate it reports the failure once via bootstrapResult and
// keeps retrying forever in the background at the capped interval — a
// caller synchronously waiting on BootstrapResult gets a bounded signal,
// but the node never stops trying to join.
func (e *Engine) bootstrapWithBackoff(ctx context.Context) {
	reported := false
	wait := time.Second
	for {
		var err error
		if len(e.cfg.BootstrapAddrs) > 0 {
			connected := 0
			for _, a := range e.cfg.BootstrapAddrs {
				if pi, perr := peer.AddrInfoFromP2pAddr(a); perr == nil && e.kad.Connect(ctx, *pi) == nil {
					connected++
				}
			}
			if connected == 0 {
				err = fmt.Errorf("none of %d bootstrap peers reachable", len(e.cfg.BootstrapAddrs))
			}
		}
		if err == nil {
			err = e.kad.Bootstrap(ctx)
		}
		if err != nil {
			e.bootstrapFailures++
			log.Warnw("bootstrap failed", "err", err, "attempt", e.bootstrapFailures)
			if !reported && e.bootstrapFailures >= DefaultBootstrapRetryCap {
				reported = true
				e.bootstrapResult <- fmt.Errorf("bootstrap failed after %d attempts: %w", e.bootstrapFailures, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			wait = time.Duration(math.Min(float64(wait*2), float64(DefaultBootstrapBackoffCap)))
			continue
		}
		e.bootstrapped = true
		if !reported {
			reported = true
			e.bootstrapResult <- nil
		}
		return
	}
}

func (e *Engine) handle(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdPutProvider:
		err := e.kad.Provide(ctx, wire.Key(cmd.rootCID), cmd.record)
		if err == nil {
			e.lookupCache.Remove(cmd.rootCID)
			if !e.cfg.ClientOnly {
				e.localRoots[cmd.rootCID] = cmd.record
			}
		}
		cmd.replyErr <- err
	case cmdGetProviders:
		if cached, ok := e.lookupCache.Get(cmd.rootCID); ok && e.now().Sub(cached.fetchedAt) < providerLookupCacheTTL {
			cmd.replyProviders <- cached.records
			return
		}
		lookupCtx := ctx
		var cancel context.CancelFunc
		if cmd.timeout > 0 {
			lookupCtx, cancel = context.WithTimeout(ctx, cmd.timeout)
			defer cancel()
		}
		records, err := e.kad.FindProviders(lookupCtx, wire.Key(cmd.rootCID))
		if err != nil {
			log.Debugw("provider lookup returned partial results", "root", cmd.rootCID, "err", err)
		}
		if len(records) > 0 {
			e.lookupCache.Add(cmd.rootCID, providerLookupEntry{records: records, fetchedAt: e.now()})
		}
		cmd.replyProviders <- records
	case cmdPeerCount:
		cmd.replyInt <- e.kad.RoutingTableSize()
	case cmdHealth:
		cmd.replyHealth <- Health{
			PeerCount:         e.kad.RoutingTableSize(),
			BootstrapFailures: e.bootstrapFailures,
			Bootstrapped:      e.bootstrapped,
			ClientOnly:        e.cfg.ClientOnly,
			BootstrapRole:     e.cfg.BootstrapRole,
		}
	case cmdConnect:
		pi, err := peer.AddrInfoFromP2pAddr(cmd.addr)
		if err != nil {
			cmd.replyErr <- fmt.Errorf("io_error: %w", err)
			return
		}
		cmd.replyErr <- e.kad.Connect(ctx, *pi)
	}
}

func (e *Engine) handleRefresh(ctx context.Context) {
	// A steady-state or fast refresh is simply another bootstrap-style
	// self-lookup; go-libp2p-kad-dht's RefreshRoutingTable is invoked by
	// the adapter's Bootstrap in this simplified model.
	if err := e.kad.Bootstrap(ctx); err != nil {
		log.Debugw("periodic refresh failed", "err", err)
	}
}

func (e *Engine) handleReprovide(ctx context.Context) {
	if e.cfg.ClientOnly {
		return
	}
	for rootCID, rec := range e.localRoots {
		rec.AssertedAt = e.now()
		if err := e.kad.Provide(ctx, wire.Key(rootCID), rec); err != nil {
			log.Warnw("reprovide failed", "root", rootCID, "err", err)
		}
	}
}

// PutProvider issues a provider-record write for rootCID. In client-only
// mode the record is still sent upstream but never retained locally for
// re-advertising, matching pure-client-mode's "never publish provider
// records" rule (the caller is expected to refuse to call this at all
// when pure_client_mode is set; see pkg/node).
func (e *Engine) PutProvider(ctx context.Context, rootCID string, rec *wire.ProviderRecord) error {
	reply := make(chan error, 1)
	select {
	case e.cmds <- command{kind: cmdPutProvider, rootCID: rootCID, record: rec, replyErr: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetProviders issues an iterative provider lookup with the given timeout.
func (e *Engine) GetProviders(ctx context.Context, rootCID string, timeout time.Duration) ([]*wire.ProviderRecord, error) {
	reply := make(chan []*wire.ProviderRecord, 1)
	select {
	case e.cmds <- command{kind: cmdGetProviders, rootCID: rootCID, timeout: timeout, replyProviders: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case records := <-reply:
		return records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PeerCount returns the current routing-table size.
func (e *Engine) PeerCount(ctx context.Context) (int, error) {
	reply := make(chan int, 1)
	select {
	case e.cmds <- command{kind: cmdPeerCount, replyInt: reply}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case n := <-reply:
		return n, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// GetHealth returns the engine's current Health snapshot.
func (e *Engine) GetHealth(ctx context.Context) (Health, error) {
	reply := make(chan Health, 1)
	select {
	case e.cmds <- command{kind: cmdHealth, replyHealth: reply}:
	case <-ctx.Done():
		return Health{}, ctx.Err()
	}
	select {
	case h := <-reply:
		return h, nil
	case <-ctx.Done():
		return Health{}, ctx.Err()
	}
}

// ConnectToPeer dials a single peer multiaddr directly.
func (e *Engine) ConnectToPeer(ctx context.Context, addr ma.Multiaddr) error {
	reply := make(chan error, 1)
	select {
	case e.cmds <- command{kind: cmdConnect, addr: addr, replyErr: reply}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
