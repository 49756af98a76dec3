// Package testutil provides in-memory implementations of storage and clock
// interfaces for use in tests across the module. Never import this in
// production code.
package testutil

import (
	"strings"
	"sync"

	"github.com/tolelom/multichain/storage"
)

// MemDB is a thread-safe in-memory storage.DB for tests.
type MemDB struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemDB creates an empty MemDB.
func NewMemDB() *MemDB {
	return &MemDB{data: make(map[string][]byte)}
}

func (m *MemDB) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *MemDB) GetMulti(keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		v, err := m.Get(k)
		if err != nil && err != storage.ErrNotFound {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *MemDB) FindByPrefix(prefix []byte) ([][]byte, [][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := string(prefix)
	var keys, values [][]byte
	for k, v := range m.data {
		if strings.HasPrefix(k, p) {
			cp := make([]byte, len(v))
			copy(cp, v)
			keys = append(keys, []byte(k))
			values = append(values, cp)
		}
	}
	return keys, values, nil
}

func (m *MemDB) NewIterator(prefix []byte) storage.Iterator {
	keys, values, _ := m.FindByPrefix(prefix)
	var pairs []kv
	for i := range keys {
		pairs = append(pairs, kv{k: keys[i], v: values[i]})
	}
	return &memIter{pairs: pairs, idx: -1}
}

func (m *MemDB) NewBatch() storage.Batch {
	return &memBatch{db: m}
}

func (m *MemDB) Close() error { return nil }

// memBatch is an in-memory atomic write buffer for MemDB.
type memBatch struct {
	db            *MemDB
	ops           []memBatchOp
	prefixDeletes []string
}

type memBatchOp struct {
	key   string
	value []byte // nil means delete
}

func (b *memBatch) Put(key, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	b.ops = append(b.ops, memBatchOp{string(key), cp})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, memBatchOp{string(key), nil})
}

func (b *memBatch) DeletePrefix(prefix []byte) {
	b.prefixDeletes = append(b.prefixDeletes, string(prefix))
}

func (b *memBatch) Reset() {
	b.ops = nil
	b.prefixDeletes = nil
}

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, prefix := range b.prefixDeletes {
		for k := range b.db.data {
			if strings.HasPrefix(k, prefix) {
				delete(b.db.data, k)
			}
		}
	}
	for _, op := range b.ops {
		if op.value == nil {
			delete(b.db.data, op.key)
		} else {
			b.db.data[op.key] = op.value
		}
	}
	return nil
}

type kv struct{ k, v []byte }

type memIter struct {
	pairs []kv
	idx   int
}

func (it *memIter) Next() bool    { it.idx++; return it.idx < len(it.pairs) }
func (it *memIter) Key() []byte   { return it.pairs[it.idx].k }
func (it *memIter) Value() []byte { return it.pairs[it.idx].v }
func (it *memIter) Release()      {}
func (it *memIter) Error() error  { return nil }

// NewViewStore returns a storage.ViewStore backed by a fresh MemDB.
func NewViewStore() *storage.ViewStore {
	return storage.NewViewStore(NewMemDB())
}

// NewStore returns a storage.Store backed by a fresh MemDB and FakeClock.
func NewStore() *storage.Store {
	return storage.NewStore(NewMemDB(), NewFakeClock(0))
}

// FakeClock is a manually-advanced storage.Clock for deterministic tests.
type FakeClock struct {
	mu  sync.Mutex
	now int64
}

// NewFakeClock creates a FakeClock starting at now (unix nanos).
func NewFakeClock(now int64) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) CurrentTime() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by delta nanoseconds.
func (c *FakeClock) Advance(delta int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += delta
}

// Set pins the clock to t (unix nanos).
func (c *FakeClock) Set(t int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
