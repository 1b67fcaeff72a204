// Package state implements the small persistent key-value store backing
// `state.db`: settings, pinned roots, the relay pool snapshot and
// checkpoint sessions, built on goleveldb the way the teacher embeds a
// local KV store for its chain state.
package state

import (
	"encoding/json"

	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
)

// Namespaces are key prefixes separating the store's logical tables.
const (
	nsSetting  = "setting/"
	nsPinned   = "pinned/"
	nsRelay    = "relay/"
	nsCheckpoint = "checkpoint/"
)

// Store wraps a goleveldb database with the four namespaced tables this
// module needs. It owns no in-memory cache: every call round-trips to
// disk, matching goleveldb's own durability model.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) the leveldb database at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Put([]byte(key), data, nil)
}

func (s *Store) getJSON(key string, v any) (bool, error) {
	data, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == ldberrors.ErrNotFound {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

// SetSetting stores an arbitrary config value under name.
func (s *Store) SetSetting(name string, value any) error {
	return s.putJSON(nsSetting+name, value)
}

// GetSetting loads a config value previously stored under name into out,
// reporting whether it existed.
func (s *Store) GetSetting(name string, out any) (bool, error) {
	return s.getJSON(nsSetting+name, out)
}

// PinRoot marks a root CID as pinned (exempt from chunk-store GC).
func (s *Store) PinRoot(rootCID string) error {
	return s.db.Put([]byte(nsPinned+rootCID), []byte{1}, nil)
}

// UnpinRoot removes a root CID's pin.
func (s *Store) UnpinRoot(rootCID string) error {
	return s.db.Delete([]byte(nsPinned+rootCID), nil)
}

// IsPinned reports whether rootCID is currently pinned.
func (s *Store) IsPinned(rootCID string) bool {
	ok, err := s.db.Has([]byte(nsPinned+rootCID), nil)
	return err == nil && ok
}

// PinnedRoots lists every currently pinned root CID.
func (s *Store) PinnedRoots() ([]string, error) {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	var out []string
	prefix := []byte(nsPinned)
	for iter.Next() {
		key := iter.Key()
		if len(key) <= len(prefix) || string(key[:len(prefix)]) != nsPinned {
			continue
		}
		out = append(out, string(key[len(prefix):]))
	}
	return out, iter.Error()
}

// RelayPoolSnapshot is the persisted shape of the relay pool, restored on
// startup so reservations can be re-acquired without rediscovery.
type RelayPoolSnapshot struct {
	Candidates []string `json:"candidates"`
}

// SaveRelayPool persists the current relay candidate set.
func (s *Store) SaveRelayPool(snap RelayPoolSnapshot) error {
	return s.putJSON(nsRelay+"pool", snap)
}

// LoadRelayPool restores the relay candidate set, returning an empty
// snapshot if none was ever saved.
func (s *Store) LoadRelayPool() (RelayPoolSnapshot, error) {
	var snap RelayPoolSnapshot
	_, err := s.getJSON(nsRelay+"pool", &snap)
	return snap, err
}

// CheckpointSessionRecord is the persisted shape of one checkpoint
// session, independent of pkg/checkpoint.Session to avoid an import
// cycle; pkg/node translates between the two at load/save time.
type CheckpointSessionRecord struct {
	SessionID        string  `json:"session_id"`
	RootCID          string  `json:"root_cid"`
	FileSize         int64   `json:"file_size"`
	BytesTransferred int64   `json:"bytes_transferred"`
	IntervalMiB      int64   `json:"interval_mib"`
	NextCheckpoint   int64   `json:"next_checkpoint"`
	TotalPaid        float64 `json:"total_paid"`
	Mode             string  `json:"mode"`
	State            string  `json:"state"`
}

// SaveCheckpointSession persists one checkpoint session record.
func (s *Store) SaveCheckpointSession(rec CheckpointSessionRecord) error {
	return s.putJSON(nsCheckpoint+rec.SessionID, rec)
}

// LoadCheckpointSession restores a checkpoint session by ID.
func (s *Store) LoadCheckpointSession(sessionID string) (CheckpointSessionRecord, bool, error) {
	var rec CheckpointSessionRecord
	ok, err := s.getJSON(nsCheckpoint+sessionID, &rec)
	return rec, ok, err
}

// RemoveCheckpointSession deletes a persisted checkpoint session record.
func (s *Store) RemoveCheckpointSession(sessionID string) error {
	return s.db.Delete([]byte(nsCheckpoint+sessionID), nil)
}
