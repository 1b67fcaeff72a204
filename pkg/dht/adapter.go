package dht

import (
	"context"
	"fmt"
	"time"

	cid "github.com/ipfs/go-cid"
	kaddht "github.com/libp2p/go-libp2p-kad-dht"
	record "github.com/libp2p/go-libp2p-record"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	mh "github.com/multiformats/go-multihash"

	"github.com/chiral-network/chiral-network/internal/wire"
)

// providerValidator restricts the "chiral-provider" DHT namespace to
// well-formed, unexpired provider records, the direct descendant of the
// teacher's own namespaced manifest validator.
type providerValidator struct{}

func (providerValidator) Validate(key string, value []byte) error {
	rec, err := wire.Decode(value)
	if err != nil {
		return fmt.Errorf("manifest_invalid: %w", err)
	}
	return rec.Validate(time.Now())
}

func (providerValidator) Select(key string, values [][]byte) (int, error) {
	best := 0
	var bestAt int64
	for i, v := range values {
		rec, err := wire.Decode(v)
		if err != nil {
			continue
		}
		if t := rec.AssertedAt.Unix(); t > bestAt {
			bestAt = t
			best = i
		}
	}
	return best, nil
}

// NewAdapter wraps a running *dht.IpfsDHT so it satisfies the Kademlia
// interface the Engine's command loop drives. Pass it the same host used
// to construct kdht via kaddht.New(ctx, h, opts...).
func NewAdapter(kdht *kaddht.IpfsDHT, h host.Host) Kademlia {
	return &adapter{kdht: kdht, host: h}
}

type adapter struct {
	kdht *kaddht.IpfsDHT
	host host.Host
}

func (a *adapter) Bootstrap(ctx context.Context) error {
	return a.kdht.Bootstrap(ctx)
}

func (a *adapter) Connect(ctx context.Context, pi peer.AddrInfo) error {
	a.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, peerstore.TempAddrTTL)
	return a.host.Connect(ctx, pi)
}

// Provide wraps the root CID string into a CIDv1 (sha2-256 multihash, the
// same construction the teacher's ManifestReplicator uses before calling
// kdht.Provide) and asserts a provider record at that key.
func (a *adapter) Provide(ctx context.Context, key string, rec *wire.ProviderRecord) error {
	c, err := cidFromKey(key)
	if err != nil {
		return err
	}
	if err := a.kdht.Provide(ctx, c, true); err != nil {
		return err
	}
	data, err := wire.Encode(rec)
	if err != nil {
		return err
	}
	return a.kdht.PutValue(ctx, key, data)
}

func (a *adapter) FindProviders(ctx context.Context, key string) ([]*wire.ProviderRecord, error) {
	c, err := cidFromKey(key)
	if err != nil {
		return nil, err
	}
	var out []*wire.ProviderRecord
	for pi := range a.kdht.FindProvidersAsync(ctx, c, 0) {
		data, err := a.kdht.GetValue(ctx, key)
		if err != nil {
			out = append(out, &wire.ProviderRecord{PeerID: pi.ID.String()})
			continue
		}
		rec, err := wire.Decode(data)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (a *adapter) RoutingTableSize() int {
	return a.kdht.RoutingTable().Size()
}

func cidFromKey(key string) (cid.Cid, error) {
	sum, err := mh.Sum([]byte(key), mh.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// NewDHT constructs a go-libp2p-kad-dht node in either bootstrap (server,
// ModeServer) or normal (ModeAuto) role, with the provider-record
// validator registered under its own namespace.
func NewDHT(ctx context.Context, h host.Host, bootstrapRole bool, clientOnly bool) (*kaddht.IpfsDHT, error) {
	mode := kaddht.ModeAuto
	if bootstrapRole {
		mode = kaddht.ModeServer
	}
	if clientOnly {
		mode = kaddht.ModeClient
	}
	return kaddht.New(ctx, h,
		kaddht.Mode(mode),
		kaddht.Validator(record.NamespacedValidator{
			wire.Namespace: providerValidator{},
		}),
	)
}
