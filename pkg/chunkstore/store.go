// Package chunkstore implements the content-addressed chunk store: a
// mapping from CID to raw chunk bytes, fanned out on disk by the first two
// hex characters of the CID, with atomic writes and idempotent duplicate
// writes.
package chunkstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	logging "github.com/ipfs/go-log/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// verifiedCacheSize bounds how many CIDs Get() remembers as already
// integrity-checked, so a hot chunk served repeatedly to many peers isn't
// re-hashed from disk on every read.
const verifiedCacheSize = 4096

var log = logging.Logger("chunkstore")

// ErrIntegrityMismatch is returned when a chunk's bytes do not hash to its
// claimed CID.
var ErrIntegrityMismatch = errors.New("integrity_mismatch")

// ErrMissing is returned by Get when the CID is not present locally.
var ErrMissing = errors.New("chunk_missing")

// MaxChunkSize is the default upper bound on a single chunk's payload.
const MaxChunkSize = 256 * 1024

// CID is a 32-byte content hash, hex-encoded for use as a map/filesystem key.
type CID [32]byte

// String renders the CID as lowercase hex.
func (c CID) String() string { return hex.EncodeToString(c[:]) }

// ParseCID decodes a hex string into a CID.
func ParseCID(s string) (CID, error) {
	var c CID
	b, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("decode cid: %w", err)
	}
	if len(b) != len(c) {
		return c, fmt.Errorf("cid must be %d bytes, got %d", len(c), len(b))
	}
	copy(c[:], b)
	return c, nil
}

// Sum computes the CID of a byte slice.
func Sum(data []byte) CID {
	return CID(sha256.Sum256(data))
}

// Store is a directory-backed content-addressed chunk store. Many
// concurrent readers of the same CID are permitted; a second writer of an
// already-present CID short-circuits to idempotent success (the writer
// that "wins" is whichever one completes os.Rename first — the bytes are
// identical by construction since the CID is their hash).
type Store struct {
	root     string
	mu       sync.Mutex // guards the write-then-rename sequence only
	verified *lru.Cache[CID, struct{}]
}

// New opens (creating if necessary) a chunk store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk store root: %w", err)
	}
	cache, err := lru.New[CID, struct{}](verifiedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create verification cache: %w", err)
	}
	return &Store{root: dir, verified: cache}, nil
}

func (s *Store) path(c CID) string {
	hexID := c.String()
	return filepath.Join(s.root, hexID[:2], hexID)
}

// Has reports whether a CID is already stored.
func (s *Store) Has(c CID) bool {
	_, err := os.Stat(s.path(c))
	return err == nil
}

// Put writes bytes under their content hash, returning the computed CID.
// Writes are atomic (temp file + rename within the same fan-out directory).
func (s *Store) Put(data []byte) (CID, error) {
	c := Sum(data)
	if s.Has(c) {
		return c, nil
	}

	dir := filepath.Dir(s.path(c))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return c, fmt.Errorf("create fan-out dir: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Has(c) {
		return c, nil
	}

	tmp, err := os.CreateTemp(dir, "write-*.tmp")
	if err != nil {
		return c, fmt.Errorf("io_error: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return c, fmt.Errorf("io_error: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return c, fmt.Errorf("io_error: %w", err)
	}
	if err := os.Rename(tmpName, s.path(c)); err != nil {
		os.Remove(tmpName)
		return c, fmt.Errorf("io_error: %w", err)
	}

	return c, nil
}

// Get reads a chunk's bytes. The first read of a given CID verifies the
// bytes still hash to it; since store paths are content-addressed and
// never overwritten in place, later reads of the same CID trust the
// verification cache instead of re-hashing the whole payload.
func (s *Store) Get(c CID) ([]byte, error) {
	data, err := os.ReadFile(s.path(c))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMissing
		}
		return nil, fmt.Errorf("io_error: %w", err)
	}
	if _, ok := s.verified.Get(c); ok {
		return data, nil
	}
	if Sum(data) != c {
		log.Warnf("chunk %s failed integrity check on read", c)
		return nil, ErrIntegrityMismatch
	}
	s.verified.Add(c, struct{}{})
	return data, nil
}

// IterUnreferenced returns every stored CID not present in referenced,
// suitable for garbage collection by the caller.
func (s *Store) IterUnreferenced(referenced map[CID]struct{}) ([]CID, error) {
	var unreferenced []CID
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("io_error: %w", err)
	}
	for _, fanout := range entries {
		if !fanout.IsDir() {
			continue
		}
		inner, err := os.ReadDir(filepath.Join(s.root, fanout.Name()))
		if err != nil {
			continue
		}
		for _, f := range inner {
			c, err := ParseCID(f.Name())
			if err != nil {
				continue
			}
			if _, ok := referenced[c]; !ok {
				unreferenced = append(unreferenced, c)
			}
		}
	}
	return unreferenced, nil
}

// Remove deletes a chunk's on-disk bytes. Used by GC once a CID is
// confirmed unreferenced.
func (s *Store) Remove(c CID) error {
	if err := os.Remove(s.path(c)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("io_error: %w", err)
	}
	return nil
}
