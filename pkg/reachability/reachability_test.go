package reachability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Scenario 5: three successive successful inbound probes from distinct
// servers raise confidence from low to high; state transitions
// unknown -> public exactly once and emits a single event.
func TestScenario5ReachabilityFlipEmitsOneEvent(t *testing.T) {
	m := New()
	var transitions []Transition
	m.OnTransition(func(tr Transition) { transitions = append(transitions, tr) })

	now := time.Now()
	m.Record(Observation{ServerID: "s1", Success: true}, now)
	require.Equal(t, StateUnknown, m.State())

	m.Record(Observation{ServerID: "s2", Success: true}, now)
	require.Equal(t, StateUnknown, m.State())

	m.Record(Observation{ServerID: "s3", Success: true}, now)
	require.Equal(t, StatePublic, m.State())
	require.Equal(t, ConfidenceHigh, m.Confidence())

	require.Len(t, transitions, 1)
	require.Equal(t, StateUnknown, transitions[0].OldState)
	require.Equal(t, StatePublic, transitions[0].NewState)
}

func TestContradictingProbeResetsWindow(t *testing.T) {
	m := New()
	now := time.Now()
	m.Record(Observation{Success: true}, now)
	m.Record(Observation{Success: true}, now)
	m.Record(Observation{Success: false}, now) // contradiction before threshold
	require.Equal(t, StateUnknown, m.State())

	// Need a fresh run of 3 agreeing observations after the contradiction.
	m.Record(Observation{Success: false}, now)
	m.Record(Observation{Success: false}, now)
	require.Equal(t, StatePrivate, m.State())
}

func TestReversalOfEstablishedStateStartsAtMediumConfidence(t *testing.T) {
	m := New()
	now := time.Now()
	m.Record(Observation{Success: true}, now)
	m.Record(Observation{Success: true}, now)
	m.Record(Observation{Success: true}, now)
	require.Equal(t, StatePublic, m.State())
	require.Equal(t, ConfidenceHigh, m.Confidence())

	// One contradicting observation is not enough to flip; two more are.
	m.Record(Observation{Success: false}, now)
	require.Equal(t, StatePublic, m.State())
	m.Record(Observation{Success: false}, now)
	require.Equal(t, StatePublic, m.State())
	m.Record(Observation{Success: false}, now)
	require.Equal(t, StatePrivate, m.State())
	require.Equal(t, ConfidenceMedium, m.Confidence())
}

func TestHistoryIsBounded(t *testing.T) {
	m := New()
	now := time.Now()
	// Flipping direction every 3 agreeing observations forces a transition
	// each block, comfortably exceeding HistoryLimit.
	for i := 0; i < HistoryLimit+10; i++ {
		success := i%2 == 0
		for j := 0; j < DefaultMinProbes; j++ {
			m.Record(Observation{Success: success}, now)
		}
	}
	require.Len(t, m.History(), HistoryLimit)
}

func TestJitterStaysWithinTwentyPercent(t *testing.T) {
	base := 90 * time.Second
	for i := 0; i < 50; i++ {
		j := Jitter(base)
		require.InDelta(t, base, j, float64(base)/5)
	}
}
