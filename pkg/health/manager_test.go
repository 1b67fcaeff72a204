package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUnknownPeerShouldNotBeUsed(t *testing.T) {
	m := New()
	d := m.Decide("ghost")
	require.False(t, d.ShouldUse)
}

func TestFailureTriggersBackoff(t *testing.T) {
	clock := time.Now()
	m := New().WithClock(func() time.Time { return clock })

	m.Success("p", 10*time.Millisecond) // create entry, should_use becomes true
	require.True(t, m.Decide("p").ShouldUse)

	m.Failure("p")
	require.False(t, m.Decide("p").ShouldUse)

	clock = clock.Add(2 * time.Second) // base backoff (1s << 1 = 2s) elapses
	require.True(t, m.Decide("p").ShouldUse)
}

func TestBackoffCapsAtCeiling(t *testing.T) {
	clock := time.Now()
	m := New().WithClock(func() time.Time { return clock })
	m.Success("p", time.Millisecond)

	for i := 0; i < 20; i++ {
		m.Failure("p")
	}

	clock = clock.Add(DefaultBackoffCap + time.Second)
	require.True(t, m.Decide("p").ShouldUse)
}

func TestSuccessClearsConsecutiveFailures(t *testing.T) {
	clock := time.Now()
	m := New().WithClock(func() time.Time { return clock })
	m.Success("p", time.Millisecond)
	m.Failure("p")
	m.Success("p", time.Millisecond)
	// After success, backoff_until should already be in the past (zero value).
	require.True(t, m.Decide("p").ShouldUse)
}

func TestPendingAccounting(t *testing.T) {
	m := New()
	m.Success("p", time.Millisecond)
	m.IncPending("p")
	m.IncPending("p")
	require.Equal(t, 2, m.Pending("p"))
	m.DecPending("p")
	require.Equal(t, 1, m.Pending("p"))
	m.ZeroPending("p")
	require.Equal(t, 0, m.Pending("p"))
}

func TestSweepRemovesIdleEntries(t *testing.T) {
	clock := time.Now()
	m := New().WithClock(func() time.Time { return clock })
	m.Success("p", time.Millisecond)

	clock = clock.Add(DefaultIdleTTL + time.Minute)
	m.Sweep()

	require.False(t, m.Decide("p").ShouldUse) // entry gone entirely
}
