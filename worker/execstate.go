package worker

import (
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/runtime"
	"github.com/tolelom/multichain/storage"
)

// execState adapts storage.ViewStore to runtime.State, scoping every key
// under this chain's execution-state sub-space so operations from
// different chains can never collide (spec.md §6 "Persisted state
// layout": chain/{chain_id}/...).
type execState struct {
	view   *storage.ViewStore
	prefix []byte
}

func newExecState(chain chainid.ID, view *storage.ViewStore) *execState {
	return &execState{view: view, prefix: execPrefix(chain)}
}

// execPrefix returns the ViewStore key-prefix scope covering chain's
// execution state, the scope over which the post-execution state root is
// computed (I4).
func execPrefix(chain chainid.ID) []byte {
	return append(storage.ChainPrefix(chain), []byte("exec/")...)
}

func (s *execState) key(k []byte) []byte {
	return append(append([]byte(nil), s.prefix...), k...)
}

func (s *execState) Get(key []byte) ([]byte, error) {
	data, err := s.view.Get(s.key(key))
	if err == storage.ErrNotFound {
		return nil, runtime.ErrNotFound
	}
	return data, err
}

func (s *execState) Put(key, value []byte) {
	s.view.Put(s.key(key), value)
}

func (s *execState) Delete(key []byte) {
	s.view.Delete(s.key(key))
}
