// Package storage defines the key-value persistence interfaces the chain
// worker is built on, plus a goleveldb-backed implementation and the
// snapshot/rollback write-buffer (ViewStore) used by the transactional
// scope in package worker.
package storage

import "errors"

// ErrNotFound is returned when a requested key does not exist.
var ErrNotFound = errors.New("storage: not found")

// Batch is an atomic write buffer. All operations are applied together via
// Write(), or discarded together on error, preventing partial commits
// (spec.md I5).
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	DeletePrefix(prefix []byte)
	Write() error
	Reset()
}

// Iterator walks key-value pairs matching a prefix.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// DB is the generic key-value store interface every chain worker reads and
// writes through (spec.md §6 "Storage (consumed)").
type DB interface {
	Get(key []byte) ([]byte, error)
	GetMulti(keys [][]byte) ([][]byte, error)
	FindByPrefix(prefix []byte) ([][]byte, [][]byte, error) // keys, values
	NewIterator(prefix []byte) Iterator
	NewBatch() Batch
	Close() error
}
