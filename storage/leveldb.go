package storage

import (
	"bytes"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB implements DB using goleveldb, the teacher's chosen on-disk
// key-value store (tolelom-tolchain/storage/db.go).
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB opens (or creates) a LevelDB database at path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, err
}

func (l *LevelDB) GetMulti(keys [][]byte) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		v, err := l.Get(k)
		if err != nil && err != ErrNotFound {
			return nil, fmt.Errorf("get multi key %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (l *LevelDB) FindByPrefix(prefix []byte) ([][]byte, [][]byte, error) {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()
	var keys, values [][]byte
	for it.Next() {
		keys = append(keys, append([]byte(nil), it.Key()...))
		values = append(values, append([]byte(nil), it.Value()...))
	}
	return keys, values, it.Error()
}

func (l *LevelDB) NewIterator(prefix []byte) Iterator {
	return l.db.NewIterator(util.BytesPrefix(prefix), nil)
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, batch: new(leveldb.Batch)}
}

func (l *LevelDB) Close() error {
	return l.db.Close()
}

// levelBatch implements Batch on top of *leveldb.Batch. DeletePrefix is not
// natively atomic in goleveldb, so prefix deletes are resolved against a
// fresh prefix scan at Write() time and folded into the same underlying
// batch as explicit key deletes — the batch as a whole still commits
// atomically via a single db.Write call.
type levelBatch struct {
	db            *leveldb.DB
	batch         *leveldb.Batch
	prefixDeletes [][]byte
}

func (b *levelBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

func (b *levelBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *levelBatch) DeletePrefix(prefix []byte) {
	b.prefixDeletes = append(b.prefixDeletes, append([]byte(nil), prefix...))
}

func (b *levelBatch) Write() error {
	for _, prefix := range b.prefixDeletes {
		it := b.db.NewIterator(util.BytesPrefix(prefix), nil)
		for it.Next() {
			if bytes.HasPrefix(it.Key(), prefix) {
				b.batch.Delete(append([]byte(nil), it.Key()...))
			}
		}
		it.Release()
		if err := it.Error(); err != nil {
			return fmt.Errorf("scan prefix %q for delete: %w", prefix, err)
		}
	}
	return b.db.Write(b.batch, nil)
}

func (b *levelBatch) Reset() {
	b.batch.Reset()
	b.prefixDeletes = nil
}
