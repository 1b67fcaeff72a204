// Package wire defines the on-the-wire schemas exchanged over the DHT:
// provider records asserting that a peer serves a given root CID.
package wire

import (
	"encoding/json"
	"errors"
	"time"
)

// DefaultProviderTTL is T_provider from spec §3: the maximum lifetime of
// an asserted provider record before it must be expunged.
const DefaultProviderTTL = 24 * time.Hour

// DefaultReprovideInterval is T_reprovide: how often a locally-held root
// CID's provider record is re-asserted.
const DefaultReprovideInterval = 1 * time.Hour

// ProviderRecord is the wire form of `{root_cid, peer_id, addrs,
// price_per_mib, ttl}` from spec §6, carried as the value half of a DHT
// namespaced record.
type ProviderRecord struct {
	RootCID     string    `json:"root_cid"`
	PeerID      string    `json:"peer_id"`
	Addrs       []string  `json:"addrs"`
	PricePerMiB float64   `json:"price_per_mib"`
	TTLSeconds  int64     `json:"ttl"`
	AssertedAt  time.Time `json:"asserted_at"`

	// Signature is opaque: signing and verification are delegated to the
	// keystore collaborator, out of scope for this module.
	Signature []byte `json:"signature,omitempty"`
}

// ErrExpired is returned by Validate when a record's TTL has elapsed.
var ErrExpired = errors.New("provider_record_expired")

// Expiry returns the instant this record should be considered gone.
func (r *ProviderRecord) Expiry() time.Time {
	ttl := time.Duration(r.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = DefaultProviderTTL
	}
	return r.AssertedAt.Add(ttl)
}

// Validate checks a record against now, returning ErrExpired past TTL.
func (r *ProviderRecord) Validate(now time.Time) error {
	if now.After(r.Expiry()) {
		return ErrExpired
	}
	return nil
}

// Encode serializes a provider record for transport over the DHT's
// namespaced record validator.
func Encode(r *ProviderRecord) ([]byte, error) {
	return json.Marshal(r)
}

// Decode parses a provider record previously produced by Encode.
func Decode(data []byte) (*ProviderRecord, error) {
	var r ProviderRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Namespace is the DHT key prefix provider records are stored under,
// matching go-libp2p-record's namespaced validator convention
// (`/<namespace>/<key>`).
const Namespace = "chiral-provider"

// Key builds the namespaced DHT key for a root CID.
func Key(rootCID string) string {
	return "/" + Namespace + "/" + rootCID
}
