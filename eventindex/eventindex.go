// Package eventindex maintains a secondary index over events written by
// storage.Store.WriteEvents: for a (ChainId, StreamId) pair it returns the
// ordered list of indices published so far, so a caller resolving an
// EventId (e.g. the admin chain's epoch-stream watcher, spec.md §4.5
// phase (B)) does not need a storage prefix scan on every lookup.
// Adapted from the teacher's owner/asset secondary index
// (tolelom-tolchain/indexer/indexer.go): the same
// get-list/add-to-list-over-a-DB-key shape, keyed by stream instead of by
// owner public key, and lazily rebuilt from find_by_prefix on first miss
// instead of staying permanently authoritative.
package eventindex

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/storage"
)

const prefixStreamIndex = "idx:event_stream:"

// Index is a non-authoritative read-side cache of published event
// indices, keyed by chain and stream.
type Index struct {
	mu    sync.Mutex
	store *storage.Store
}

// New creates an Index backed by store.
func New(store *storage.Store) *Index {
	return &Index{store: store}
}

func indexKey(chain chainid.ID, stream string) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", prefixStreamIndex, chain.Hex(), stream))
}

// Record notes that an event landed at index on chain's stream, called by
// the confirmed-block handler right after storage.Store.WriteEvents
// succeeds (spec.md §4.11).
func (ix *Index) Record(chain chainid.ID, stream string, index uint64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	indices, err := ix.getList(chain, stream)
	if err != nil {
		return err
	}
	for _, existing := range indices {
		if existing == index {
			return nil
		}
	}
	indices = append(indices, index)
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	return ix.putList(chain, stream, indices)
}

// Indices returns the ordered event indices published so far for
// (chain, stream), rebuilding from storage.Store.FindEvents on first miss.
func (ix *Index) Indices(chain chainid.ID, stream string) ([]uint64, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	indices, err := ix.getList(chain, stream)
	if err != nil {
		return nil, err
	}
	if indices != nil {
		return indices, nil
	}
	events, err := ix.store.FindEvents(chain, stream)
	if err != nil {
		return nil, fmt.Errorf("eventindex: rebuild %s/%s: %w", chain, stream, err)
	}
	indices = make([]uint64, 0, len(events))
	for _, e := range events {
		indices = append(indices, e.Index)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })
	if err := ix.putList(chain, stream, indices); err != nil {
		return nil, err
	}
	return indices, nil
}

// Get resolves one event by (chain, stream, index) directly through
// storage, without consulting the index (the index only orders lookups,
// it never stores payloads itself).
func (ix *Index) Get(chain chainid.ID, stream string, index uint64) (*storage.StoredEvent, error) {
	return ix.store.GetEvent(chain, stream, index)
}

func (ix *Index) getList(chain chainid.ID, stream string) ([]uint64, error) {
	data, err := ix.store.Get(indexKey(chain, stream))
	if err == storage.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var indices []uint64
	if err := json.Unmarshal(data, &indices); err != nil {
		return nil, fmt.Errorf("eventindex: decode %s/%s: %w", chain, stream, err)
	}
	return indices, nil
}

func (ix *Index) putList(chain chainid.ID, stream string, indices []uint64) error {
	data, err := json.Marshal(indices)
	if err != nil {
		return err
	}
	b := ix.store.NewBatch()
	b.Put(indexKey(chain, stream), data)
	return b.Write()
}
