package checkpoint

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExponentialInitialization(t *testing.T) {
	s := New("sess1", 50*MiB, ModeExponential)
	require.Equal(t, int64(10*MiB), s.NextCheckpoint)
	require.Equal(t, StateActive, s.State)
}

func TestUpfrontInitialization(t *testing.T) {
	s := New("sess1", 50*MiB, ModeUpfront)
	require.Equal(t, int64(50*MiB), s.NextCheckpoint)
}

// Scenario 2: checkpoint pause/resume on a 50 MiB exponential transfer.
func TestScenario2CheckpointPauseResume(t *testing.T) {
	s := New("sess2", 50*MiB, ModeExponential)

	s.UpdateProgress(10 * MiB)
	require.True(t, s.ShouldPauseServing())

	require.NoError(t, s.RecordPayment("0xabc", 0.01))
	require.False(t, s.ShouldPauseServing())
	require.Equal(t, int64(30*MiB), s.NextCheckpoint)

	s.UpdateProgress(30 * MiB)
	require.True(t, s.ShouldPauseServing())
	require.NoError(t, s.RecordPayment("0xdef", 0.01))
	require.Equal(t, int64(70*MiB), s.NextCheckpoint)

	// File is only 50 MiB, so the 70 MiB checkpoint lies past its end and
	// the transfer completes without a further payment firing.
	require.Equal(t, int64(50*MiB), s.FileSize)
	s.UpdateProgress(50 * MiB)
	require.False(t, s.ShouldPauseServing()) // next_checkpoint (70MiB) not reached
}

func TestRejectsNegativeAmount(t *testing.T) {
	s := New("sess", 10*MiB, ModeExponential)
	err := s.RecordPayment("0x1", -1)
	require.ErrorIs(t, err, ErrNegativeAmount)
}

func TestRejectsDuplicatePayment(t *testing.T) {
	s := New("sess", 100*MiB, ModeExponential)
	s.UpdateProgress(10 * MiB)
	require.NoError(t, s.RecordPayment("0xabc", 0.01))

	// Re-arm to the same checkpoint artificially to exercise the dup check.
	s.NextCheckpoint = 30 * MiB
	s.UpdateProgress(30 * MiB)
	require.NoError(t, s.RecordPayment("0xdef", 0.01))

	// Replaying the exact same (tx, checkpoint) pair must fail.
	s.mu.Lock()
	s.NextCheckpoint = 70 * MiB
	s.mu.Unlock()
	s.seen["0xdef|73400320"] = struct{}{} // 70 MiB
	err := s.RecordPayment("0xdef", 0.01)
	require.ErrorIs(t, err, ErrDuplicatePayment)
}

func TestTotalPaidMatchesHistorySum(t *testing.T) {
	s := New("sess", 100*MiB, ModeExponential)
	s.UpdateProgress(10 * MiB)
	require.NoError(t, s.RecordPayment("0x1", 0.01))
	s.UpdateProgress(30 * MiB)
	require.NoError(t, s.RecordPayment("0x2", 0.02))

	var sum float64
	for _, h := range s.History {
		sum += h.Amount
	}
	require.InDelta(t, s.TotalPaid, sum, 1e-9)
	require.Less(t, s.History[0].Bytes, s.History[1].Bytes)
}

func TestMarkFailedAndCompleted(t *testing.T) {
	s := New("sess", 10*MiB, ModeUpfront)
	s.MarkPaymentFailed("insufficient funds")
	require.Equal(t, StatePaymentFailed, s.State)
	s.MarkCompleted()
	require.Equal(t, StateCompleted, s.State)
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager()
	m.Init("s1", 10*MiB, ModeUpfront)
	s, ok := m.Get("s1")
	require.True(t, ok)
	require.Equal(t, "s1", s.SessionID)
	m.Remove("s1")
	_, ok = m.Get("s1")
	require.False(t, ok)
}
