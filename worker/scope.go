package worker

import (
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/chainstate"
	"github.com/tolelom/multichain/storage"
)

// scope wraps a mutable ChainStateView so that any mutations made through
// it are rolled back unless save() is explicitly called before the scope
// goes out of use. Go has no destructors, so the "rollback on drop"
// invariant from spec.md §4.1 / §9 is realized with a defer plus a
// succeeded flag — directly modeled on the original's
// ChainWorkerStateWithAttemptedChanges, whose Drop impl calls
// chain.rollback() unless self.succeeded. Callers MUST defer
// sc.rollbackUnlessSucceeded() immediately after a successful beginScope.
//
// beginScope takes the view's exclusive lock and holds it until either
// save() or rollbackUnlessSucceeded() releases it. The view's write
// buffer and snapshot stack are shared across every chain this worker
// serves (storage.ViewStore is not chain-partitioned), so without this
// lock one chain's RevertToSnapshot could discard writes a concurrently
// running chain staged in between — this is what makes the mailbox's
// per-chain serialization (spec.md §5) actually safe to layer over a
// single shared view.
type scope struct {
	view      *storage.ViewStore
	state     *chainstate.ChainStateView
	snapshot  int
	succeeded bool
}

// beginScope loads chain's state and opens a write-buffer snapshot so any
// mutation made before save() can be discarded in one step.
func beginScope(chain chainid.ID, view *storage.ViewStore) (*scope, error) {
	view.Lock()
	state, err := chainstate.Load(chain, view)
	if err != nil {
		view.Unlock()
		return nil, wrapStorage(err)
	}
	snap := view.Snapshot()
	return &scope{view: view, state: state, snapshot: snap}, nil
}

// save stages the scope's mutations into the view's write buffer and
// durably flushes them to the underlying DB in a single batch (spec.md
// §4.1(b) "atomically flush pending mutations to storage via a single
// batch", I5), then marks the scope succeeded, so the deferred rollback
// becomes a no-op, and releases the lock beginScope took.
func (s *scope) save() error {
	if err := s.state.Save(); err != nil {
		return wrapStorage(err)
	}
	if err := s.view.Commit(); err != nil {
		return wrapStorage(err)
	}
	s.succeeded = true
	s.view.Unlock()
	return nil
}

// rollbackUnlessSucceeded discards every write staged since beginScope,
// unless save() already ran, and releases the lock beginScope took. Call
// via defer immediately after beginScope succeeds.
func (s *scope) rollbackUnlessSucceeded() {
	if s.succeeded {
		return
	}
	_ = s.view.RevertToSnapshot(s.snapshot)
	s.view.Unlock()
}
