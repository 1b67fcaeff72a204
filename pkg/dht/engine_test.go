package dht

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/stretchr/testify/require"

	"github.com/chiral-network/chiral-network/internal/wire"
)

type fakeKademlia struct {
	mu sync.Mutex

	bootstrapErr   error
	bootstrapCalls int
	bootstrapOKAt  int // succeed on this call number (1-indexed), 0 = never fail

	provided     map[string]*wire.ProviderRecord
	provideCalls int
	providers    map[string][]*wire.ProviderRecord
	routingTableSize int
	connected []peer.AddrInfo
}

func newFakeKademlia() *fakeKademlia {
	return &fakeKademlia{
		provided:  make(map[string]*wire.ProviderRecord),
		providers: make(map[string][]*wire.ProviderRecord),
	}
}

func (f *fakeKademlia) Bootstrap(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bootstrapCalls++
	if f.bootstrapOKAt > 0 && f.bootstrapCalls >= f.bootstrapOKAt {
		return nil
	}
	return f.bootstrapErr
}

func (f *fakeKademlia) Connect(ctx context.Context, pi peer.AddrInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = append(f.connected, pi)
	return nil
}

func (f *fakeKademlia) Provide(ctx context.Context, key string, record *wire.ProviderRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provided[key] = record
	f.provideCalls++
	return nil
}

func (f *fakeKademlia) FindProviders(ctx context.Context, key string) ([]*wire.ProviderRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.providers[key], nil
}

func (f *fakeKademlia) RoutingTableSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.routingTableSize
}

func TestPutProviderAndGetProviders(t *testing.T) {
	kad := newFakeKademlia()
	kad.bootstrapOKAt = 1
	kad.providers[wire.Key("root1")] = []*wire.ProviderRecord{{RootCID: "root1", PeerID: "peerA"}}

	e := New(kad, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	err := e.PutProvider(ctx, "root1", &wire.ProviderRecord{RootCID: "root1", PeerID: "me"})
	require.NoError(t, err)

	records, err := e.GetProviders(ctx, "root1", time.Second)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "peerA", records[0].PeerID)
}

func TestBootstrapRetriesWithBackoffAndCountsFailures(t *testing.T) {
	kad := newFakeKademlia()
	kad.bootstrapErr = errors.New("dial failed")
	kad.bootstrapOKAt = 3

	e := New(kad, Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		h, err := e.GetHealth(ctx)
		return err == nil && h.Bootstrapped
	}, 4*time.Second, 10*time.Millisecond)

	h, err := e.GetHealth(ctx)
	require.NoError(t, err)
	require.GreaterOrEqual(t, h.BootstrapFailures, 2)
	cancel()
	<-done
}

func TestClientOnlyModeSkipsReprovide(t *testing.T) {
	kad := newFakeKademlia()
	kad.bootstrapOKAt = 1

	e := New(kad, Config{ClientOnly: true, ReprovideEvery: 20 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	err := e.PutProvider(ctx, "root1", &wire.ProviderRecord{RootCID: "root1"})
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	cancel()

	// The record was sent once via PutProvider but never retained for
	// re-advertising in client-only mode, so reprovide never re-sends it
	// beyond that single initial call.
	kad.mu.Lock()
	defer kad.mu.Unlock()
	require.Len(t, kad.provided, 1)
	require.Equal(t, 1, kad.provideCalls)
}

func TestPeerCountReflectsRoutingTable(t *testing.T) {
	kad := newFakeKademlia()
	kad.bootstrapOKAt = 1
	kad.routingTableSize = 7

	e := New(kad, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	n, err := e.PeerCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 7, n)
}

func TestConnectToPeerParsesMultiaddr(t *testing.T) {
	kad := newFakeKademlia()
	kad.bootstrapOKAt = 1

	e := New(kad, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.Run(ctx)

	addr, err := ma.NewMultiaddr("/ip4/127.0.0.1/tcp/4001/p2p/QmWjEDfHWvttN72pmRFYKYCBkQ1vk3WBAkLzfaRWRS9xu8")
	require.NoError(t, err)

	err = e.ConnectToPeer(ctx, addr)
	require.NoError(t, err)

	kad.mu.Lock()
	defer kad.mu.Unlock()
	require.Len(t, kad.connected, 1)
}
