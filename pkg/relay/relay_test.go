package relay

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	ttl time.Duration
	err error
	now func() time.Time
}

func (f *fakeDialer) Reserve(relayPeerID string) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	return f.now().Add(f.ttl), nil
}

func TestReserveSucceedsWithinPoolAndCap(t *testing.T) {
	clock := time.Now()
	d := &fakeDialer{ttl: time.Hour, now: func() time.Time { return clock }}
	m := New(d, nil).WithClock(func() time.Time { return clock })

	require.NoError(t, m.AddCandidate("relay1"))
	res, err := m.Reserve("relay1")
	require.NoError(t, err)
	require.Equal(t, "relay1", res.RelayPeerID)
	require.Equal(t, 1, m.ActiveReservationCount())
}

func TestPoolSizeCapped(t *testing.T) {
	d := &fakeDialer{ttl: time.Hour, now: time.Now}
	m := New(d, nil)
	for i := 0; i < DefaultPoolSize; i++ {
		require.NoError(t, m.AddCandidate(string(rune('a'+i))))
	}
	err := m.AddCandidate("overflow")
	require.ErrorIs(t, err, ErrPoolFull)
}

func TestActiveReservationCapEnforced(t *testing.T) {
	clock := time.Now()
	d := &fakeDialer{ttl: time.Hour, now: func() time.Time { return clock }}
	m := New(d, nil).WithClock(func() time.Time { return clock })

	for i := 0; i < DefaultActiveCap+1; i++ {
		require.NoError(t, m.AddCandidate(string(rune('a'+i))))
	}
	for i := 0; i < DefaultActiveCap; i++ {
		_, err := m.Reserve(string(rune('a' + i)))
		require.NoError(t, err)
	}
	_, err := m.Reserve(string(rune('a' + DefaultActiveCap)))
	require.ErrorIs(t, err, ErrActiveCapReached)
}

func TestEvictFreesCapForAnotherCandidate(t *testing.T) {
	clock := time.Now()
	d := &fakeDialer{ttl: time.Hour, now: func() time.Time { return clock }}
	m := New(d, nil).WithClock(func() time.Time { return clock })
	require.NoError(t, m.AddCandidate("relay1"))
	require.NoError(t, m.AddCandidate("relay2"))
	_, err := m.Reserve("relay1")
	require.NoError(t, err)

	m.Evict("relay1")
	require.Equal(t, 0, m.ActiveReservationCount())

	_, err = m.Reserve("relay2")
	require.NoError(t, err)
}

func TestReserveFailurePropagatesError(t *testing.T) {
	d := &fakeDialer{err: errors.New("reservation_denied")}
	m := New(d, nil)
	require.NoError(t, m.AddCandidate("relay1"))
	_, err := m.Reserve("relay1")
	require.Error(t, err)
}

func TestRenewalDueAtSeventyFivePercentOfTTL(t *testing.T) {
	acquired := time.Now()
	r := &Reservation{Expiry: acquired.Add(100 * time.Second)}
	renewAt := r.RenewAt(acquired)
	require.Equal(t, acquired.Add(75*time.Second), renewAt)
}

func TestServerRoleAcceptsUpToCap(t *testing.T) {
	m := New(&fakeDialer{}, nil)
	m.SetServerRole(true, 2)
	require.True(t, m.AcceptServerReservation())
	require.True(t, m.AcceptServerReservation())
	require.False(t, m.AcceptServerReservation())

	m.ReleaseServerReservation()
	require.True(t, m.AcceptServerReservation())
}

func TestServerRoleDisabledRefusesReservations(t *testing.T) {
	m := New(&fakeDialer{}, nil)
	require.False(t, m.AcceptServerReservation())
	require.False(t, m.IsServerRoleActive())
}
