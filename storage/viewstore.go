package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	"github.com/tolelom/multichain/chainid"
)

type viewSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// ViewStore is an in-memory write buffer over a DB with snapshot/rollback
// and deterministic root hashing, generalized from the teacher's
// tolelom-tolchain/storage/statedb.go StateDB: that type fixed its key
// space to a handful of domain prefixes (acct:, asset:, ...); a
// ChainStateView needs one buffer spanning many unrelated sub-spaces
// (tip/, manager/, inbox/<id>/, ...) so ViewStore takes an arbitrary
// []byte key instead.
//
// A single ViewStore is shared by every chain a worker serves, so its
// buffer is not itself chain-partitioned: Get/Put/Delete/Snapshot/
// RevertToSnapshot/Commit all touch the same dirty/deleted maps and
// snapshot stack. Callers MUST hold the store's Lock (or RLock, for
// read-only access) for the full duration of a logical scope — from
// opening it through either Commit or RevertToSnapshot — so that no two
// chains' write scopes interleave. worker.scope does exactly this.
type ViewStore struct {
	mu        sync.RWMutex
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []viewSnapshot
}

// Lock acquires exclusive access to the store for the duration of a
// mutating scope (beginScope through save or rollback). Exclusive because
// the buffer and snapshot stack are shared across every chain.
func (s *ViewStore) Lock() { s.mu.Lock() }

// Unlock releases a lock taken with Lock.
func (s *ViewStore) Unlock() { s.mu.Unlock() }

// RLock acquires shared read access, draining any in-flight writer first
// (spec.md §4.1(a): "readers can coexist with one writer", never with a
// writer mid-scope).
func (s *ViewStore) RLock() { s.mu.RLock() }

// RUnlock releases a lock taken with RLock.
func (s *ViewStore) RUnlock() { s.mu.RUnlock() }

// NewViewStore creates a ViewStore backed by db.
func NewViewStore(db DB) *ViewStore {
	return &ViewStore{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// Get reads key, preferring the uncommitted write buffer over the
// underlying DB.
func (s *ViewStore) Get(key []byte) ([]byte, error) {
	k := string(key)
	if s.deleted[k] {
		return nil, ErrNotFound
	}
	if v, ok := s.dirty[k]; ok {
		return v, nil
	}
	return s.db.Get(key)
}

// Put stages a write in the buffer.
func (s *ViewStore) Put(key, val []byte) {
	k := string(key)
	delete(s.deleted, k)
	cp := make([]byte, len(val))
	copy(cp, val)
	s.dirty[k] = cp
}

// Delete stages a deletion in the buffer.
func (s *ViewStore) Delete(key []byte) {
	k := string(key)
	delete(s.dirty, k)
	s.deleted[k] = true
}

// FindByPrefix merges the buffer over the underlying DB and returns all
// live (not deleted) key-value pairs under prefix, keys sorted.
func (s *ViewStore) FindByPrefix(prefix []byte) ([][]byte, [][]byte, error) {
	merged, err := s.mergedPrefix(prefix)
	if err != nil {
		return nil, nil, err
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	outK := make([][]byte, len(keys))
	outV := make([][]byte, len(keys))
	for i, k := range keys {
		outK[i] = []byte(k)
		outV[i] = merged[k]
	}
	return outK, outV, nil
}

func (s *ViewStore) mergedPrefix(prefix []byte) (map[string][]byte, error) {
	merged := make(map[string][]byte)
	dbKeys, dbVals, err := s.db.FindByPrefix(prefix)
	if err != nil {
		return nil, err
	}
	for i, k := range dbKeys {
		merged[string(k)] = dbVals[i]
	}
	p := string(prefix)
	for k, v := range s.dirty {
		if len(k) >= len(p) && k[:len(p)] == p {
			merged[k] = v
		}
	}
	for k := range s.deleted {
		if len(k) >= len(p) && k[:len(p)] == p {
			delete(merged, k)
		}
	}
	return merged, nil
}

// Snapshot saves the current write buffer and returns a handle that can
// later be passed to RevertToSnapshot, mirroring the teacher's
// StateDB.Snapshot/RevertToSnapshot pair — the mechanism package worker's
// transactional scope is built on (see worker.scope).
func (s *ViewStore) Snapshot() int {
	snap := viewSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1
}

// RevertToSnapshot discards every write made since snapshot id was taken.
func (s *ViewStore) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]
	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}
	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot hashes the buffer's dirty keys layered over scope, a set of
// key prefixes that together make up the state this root should cover
// (e.g. the chain's execution-state prefixes). It does not flush or modify
// the buffer, so it is safe to call before signing a block (I4).
func (s *ViewStore) ComputeRoot(scope [][]byte) (string, error) {
	merged := make(map[string][]byte)
	for _, prefix := range scope {
		m, err := s.mergedPrefix(prefix)
		if err != nil {
			return "", err
		}
		for k, v := range m {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return chainid.Hash(buf.Bytes()), nil
}

// Commit atomically flushes the write buffer to the underlying DB via a
// single Batch.Write and clears it. Call this only after the corresponding
// certificate has been durably written (I5): the worker writes the
// certificate through Store.WriteBlobsAndCertificate in its own batch
// before its scope commits the ViewStore.
func (s *ViewStore) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Put([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}

// Discard clears the write buffer without touching the underlying DB —
// the rollback path of the transactional scope when Commit was never
// called (spec.md §9).
func (s *ViewStore) Discard() {
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
}
