package reputation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCompositeInRange(t *testing.T) {
	s := New()
	s.Success("peerA", nil)
	s.Failure("peerA")
	c := s.Composite("peerA")
	require.GreaterOrEqual(t, c, 0.0)
	require.LessOrEqual(t, c, 1.0)
}

func TestUnknownPeerComposite(t *testing.T) {
	s := New()
	c := s.Composite("ghost")
	require.InDelta(t, 0.3, c, 1e-9) // 0.5*0.6 + 0*0.25 + 0*0.15
}

func TestSuccessCommutesWithFailureWithinWindow(t *testing.T) {
	clock := time.Now()
	s1 := New().WithClock(func() time.Time { return clock })
	s2 := New().WithClock(func() time.Time { return clock })

	s1.Success("p", nil)
	s1.Failure("p")
	s2.Failure("p")
	s2.Success("p", nil)

	require.InDelta(t, s1.Composite("p"), s2.Composite("p"), 1e-9)
}

func TestDecayHalvesAfterHalfLife(t *testing.T) {
	base := time.Now()
	clock := base
	s := New().WithHalfLife(24 * time.Hour).WithClock(func() time.Time { return clock })

	s.Success("p", nil)
	s.Success("p", nil)
	s.Failure("p")

	clock = base.Add(24 * time.Hour)
	// Trigger decay via NoteSeen, then inspect raw counters.
	s.NoteSeen("p")

	s.mu.Lock()
	r := s.records["p"]
	s.mu.Unlock()

	require.InDelta(t, 1.0, r.Alpha, 0.05)
	require.InDelta(t, 0.5, r.Beta, 0.05)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New()
	s.Success("peerA", durationPtr(150*time.Millisecond))
	s.Failure("peerB")

	path := filepath.Join(t.TempDir(), "reputation.snapshot")
	require.NoError(t, s.SaveSnapshot(path))

	loaded, err := LoadSnapshot(path)
	require.NoError(t, err)
	require.InDelta(t, s.Composite("peerA"), loaded.Composite("peerA"), 1e-6)
}

func TestLoadSnapshotMissingFileIsEmpty(t *testing.T) {
	s, err := LoadSnapshot(filepath.Join(t.TempDir(), "absent.snapshot"))
	require.NoError(t, err)
	require.InDelta(t, 0.3, s.Composite("anyone"), 1e-9)
}

func durationPtr(d time.Duration) *time.Duration { return &d }
