// Package store implements the IMS record store (§4.B): a generic,
// file-backed, schema-versioned persistence layer mapping string ids to
// typed records, one JSON array file per kind.
//
// There is no pack example of a file-backed record store to ground this
// on directly; the locking discipline follows the teacher's single-writer
// reconcile pattern (one mutator at a time per resource), and the atomic
// rewrite / corrupt-file-recovery approach is standard Go idiom
// (os.CreateTemp + os.Rename), justified in DESIGN.md. The array-of-
// records wire format, with each record's id recovered via KeyFunc on
// load, mirrors DataStoreHACK's key_field constructor argument in
// _examples/original_source/src/server/__init__.py.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-logr/logr"
)

// KeyFunc extracts a record's own identifier. The on-disk array doesn't
// carry keys alongside records, so the store derives each map key from
// the record itself when loading, the same role DataStoreHACK's
// key_field plays in the original.
type KeyFunc[T any] func(T) string

// Store persists a map of id -> T to a single schema-versioned JSON file
// as an array of records, serializing every mutation behind a per-kind
// lock (§5).
type Store[T any] struct {
	mu      sync.RWMutex
	path    string
	log     logr.Logger
	keyFunc KeyFunc[T]
	records map[string]T
	order   []string // insertion/file order, preserved for Iter's determinism
}

// Open loads (or initializes) the record store backed by the file at
// path. path should already encode the schema version, e.g.
// "/data/v2.2_jobs.json" (§4.B). keyFunc recovers a record's id when
// reading the persisted array back in.
func Open[T any](path string, log logr.Logger, keyFunc KeyFunc[T]) (*Store[T], error) {
	s := &Store[T]{
		path:    path,
		log:     log,
		keyFunc: keyFunc,
		records: make(map[string]T),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store[T]) load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return s.persistLocked()
	}
	if err != nil {
		return fmt.Errorf("store: reading %s: %w", s.path, err)
	}

	var decoded []T
	if err := json.Unmarshal(data, &decoded); err != nil {
		s.log.Error(err, "store: corrupt record file, quarantining and starting empty", "path", s.path)
		if qerr := s.quarantine(); qerr != nil {
			return fmt.Errorf("store: quarantining corrupt file %s: %w", s.path, qerr)
		}
		return s.persistLocked()
	}

	s.records = make(map[string]T, len(decoded))
	s.order = make([]string, 0, len(decoded))
	for _, rec := range decoded {
		id := s.keyFunc(rec)
		s.records[id] = rec
		s.order = append(s.order, id)
	}
	return nil
}

// quarantine renames the current (unparsable) file aside with a timestamp
// prefix, so the next load starts from an empty store (§4.B crash
// recovery) without losing the broken file for forensics.
func (s *Store[T]) quarantine() error {
	dir, base := filepath.Split(s.path)
	dest := filepath.Join(dir, fmt.Sprintf("%d.corrupt_%s", time.Now().Unix(), base))
	return os.Rename(s.path, dest)
}

// Get returns the record for id, or false if absent.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.records[id]
	return v, ok
}

// Contains reports whether id is present.
func (s *Store[T]) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Len returns the number of records.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Put upserts id -> record and atomically rewrites the file (§4.B, §5).
func (s *Store[T]) Put(id string, record T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; !exists {
		s.order = append(s.order, id)
	}
	s.records[id] = record
	return s.persistLocked()
}

// Delete removes id, if present, and atomically rewrites the file.
func (s *Store[T]) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return nil
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return s.persistLocked()
}

// Iter returns a snapshot of all ids in insertion order, the stable
// iteration order §4.E's scheduler tiebreak and §4.G's delete_collection
// depend on.
func (s *Store[T]) Iter() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Reset empties the store and persists the empty file.
func (s *Store[T]) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]T)
	s.order = nil
	return s.persistLocked()
}

// persistLocked atomically rewrites the backing file as a JSON array, in
// s.order, so a reload recovers the same iteration order (§4.B, §4.E,
// §4.G). Caller must hold mu.
func (s *Store[T]) persistLocked() error {
	records := make([]T, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.records[id])
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshaling %s: %w", s.path, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("store: creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("store: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("store: renaming temp file onto %s: %w", s.path, err)
	}
	return nil
}
