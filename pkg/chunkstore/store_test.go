package chunkstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	data := []byte("hello chiral network")
	c, err := s.Put(data)
	require.NoError(t, err)
	require.True(t, s.Has(c))

	got, err := s.Get(c)
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestPutIsIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	data := []byte("duplicate write")
	c1, err := s.Put(data)
	require.NoError(t, err)
	c2, err := s.Put(data)
	require.NoError(t, err)
	require.Equal(t, c1, c2)
}

func TestGetMissing(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(Sum([]byte("never written")))
	require.ErrorIs(t, err, ErrMissing)
}

func TestGetDetectsIntegrityMismatch(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	data := []byte("original payload")
	c, err := s.Put(data)
	require.NoError(t, err)

	// Corrupt the on-disk bytes directly to simulate bit rot / a hostile peer.
	require.NoError(t, os.WriteFile(s.path(c), []byte("tampered payload!!"), 0o644))

	_, err = s.Get(c)
	require.ErrorIs(t, err, ErrIntegrityMismatch)
}

func TestIterUnreferenced(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)

	kept, err := s.Put([]byte("kept"))
	require.NoError(t, err)
	orphan, err := s.Put([]byte("orphan"))
	require.NoError(t, err)

	unref, err := s.IterUnreferenced(map[CID]struct{}{kept: {}})
	require.NoError(t, err)
	require.ElementsMatch(t, []CID{orphan}, unref)
}
