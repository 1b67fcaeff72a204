package state

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "state.db")
	s, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettingRoundTrip(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetSetting("dht_port", 4001))

	var port int
	ok, err := s.GetSetting("dht_port", &port)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 4001, port)
}

func TestGetSettingMissingReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	var v string
	ok, err := s.GetSetting("missing", &v)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPinUnpinRoot(t *testing.T) {
	s := openTestStore(t)
	require.False(t, s.IsPinned("cid1"))
	require.NoError(t, s.PinRoot("cid1"))
	require.True(t, s.IsPinned("cid1"))

	roots, err := s.PinnedRoots()
	require.NoError(t, err)
	require.Contains(t, roots, "cid1")

	require.NoError(t, s.UnpinRoot("cid1"))
	require.False(t, s.IsPinned("cid1"))
}

func TestRelayPoolRoundTrip(t *testing.T) {
	s := openTestStore(t)
	snap := RelayPoolSnapshot{Candidates: []string{"relay1", "relay2"}}
	require.NoError(t, s.SaveRelayPool(snap))

	loaded, err := s.LoadRelayPool()
	require.NoError(t, err)
	require.Equal(t, snap.Candidates, loaded.Candidates)
}

func TestCheckpointSessionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	rec := CheckpointSessionRecord{
		SessionID: "sess1", RootCID: "root1", FileSize: 100, Mode: "exponential", State: "active",
	}
	require.NoError(t, s.SaveCheckpointSession(rec))

	loaded, ok, err := s.LoadCheckpointSession("sess1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec, loaded)

	require.NoError(t, s.RemoveCheckpointSession("sess1"))
	_, ok, err = s.LoadCheckpointSession("sess1")
	require.NoError(t, err)
	require.False(t, ok)
}
