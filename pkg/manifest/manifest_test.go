package manifest

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chiral-network/chiral-network/pkg/chunkstore"
)

func writeRandomFile(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestBuildReassembleRoundTrip(t *testing.T) {
	store, err := chunkstore.New(t.TempDir())
	require.NoError(t, err)

	path := writeRandomFile(t, 1024*1024+37)
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	m, err := Build(store, path, 256*1024)
	require.NoError(t, err)
	require.Equal(t, int64(len(original)), m.Size)
	require.Equal(t, 5, len(m.Chunks)) // 4 full chunks + a 37-byte remainder

	outPath := filepath.Join(t.TempDir(), "output.bin")
	require.NoError(t, Reassemble(store, m, outPath))

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.True(t, bytes.Equal(original, got))
}

func TestScenario1OneMebibyteFile(t *testing.T) {
	store, err := chunkstore.New(t.TempDir())
	require.NoError(t, err)

	data := bytes.Repeat([]byte{0x41}, 1048576)
	path := filepath.Join(t.TempDir(), "a.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	m, err := Build(store, path, 256*1024)
	require.NoError(t, err)
	require.Equal(t, int64(1048576), m.Size)
	require.Len(t, m.Chunks, 4)
}

func TestVerifyDetectsMissingChunks(t *testing.T) {
	store, err := chunkstore.New(t.TempDir())
	require.NoError(t, err)

	path := writeRandomFile(t, 600*1024)
	m, err := Build(store, path, 256*1024)
	require.NoError(t, err)

	present := map[chunkstore.CID]struct{}{m.Chunks[0].CID: {}}
	err = Verify(m, present)
	var missingErr *ErrMissingChunks
	require.ErrorAs(t, err, &missingErr)
	require.Len(t, missingErr.Missing, len(m.Chunks)-1)
}

func TestVerifyDetectsSizeMismatch(t *testing.T) {
	store, err := chunkstore.New(t.TempDir())
	require.NoError(t, err)

	path := writeRandomFile(t, 100)
	m, err := Build(store, path, 256*1024)
	require.NoError(t, err)

	m.Size = 999

	present := map[chunkstore.CID]struct{}{}
	for _, e := range m.Chunks {
		present[e.CID] = struct{}{}
	}
	err = Verify(m, present)
	require.ErrorContains(t, err, "manifest_invalid")
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	store, err := chunkstore.New(t.TempDir())
	require.NoError(t, err)

	path := writeRandomFile(t, 10_000)
	m, err := Build(store, path, 4096)
	require.NoError(t, err)

	data, err := Encode(m)
	require.NoError(t, err)
	decoded, err := Decode(data)
	require.NoError(t, err)
	require.True(t, Equal(m, decoded))
}
