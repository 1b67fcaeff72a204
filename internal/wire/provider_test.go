package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	r := &ProviderRecord{
		RootCID:     "abc123",
		PeerID:      "12D3KooW...",
		Addrs:       []string{"/ip4/1.2.3.4/tcp/4001"},
		PricePerMiB: 0.001,
		TTLSeconds:  int64(DefaultProviderTTL.Seconds()),
		AssertedAt:  time.Unix(1700000000, 0).UTC(),
	}
	data, err := Encode(r)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	require.Equal(t, r.RootCID, decoded.RootCID)
	require.Equal(t, r.PeerID, decoded.PeerID)
	require.Equal(t, r.Addrs, decoded.Addrs)
}

func TestValidateRejectsExpired(t *testing.T) {
	r := &ProviderRecord{
		TTLSeconds: 60,
		AssertedAt: time.Now().Add(-time.Hour),
	}
	err := r.Validate(time.Now())
	require.ErrorIs(t, err, ErrExpired)
}

func TestValidateAcceptsWithinTTL(t *testing.T) {
	r := &ProviderRecord{
		TTLSeconds: int64(DefaultProviderTTL.Seconds()),
		AssertedAt: time.Now(),
	}
	require.NoError(t, r.Validate(time.Now().Add(time.Minute)))
}

func TestKeyNamespacing(t *testing.T) {
	require.Equal(t, "/chiral-provider/abc123", Key("abc123"))
}
