// Package worker implements ChainWorker, the per-chain facade that
// composes ChainStateView, the consensus manager, the blob resolver, the
// cross-chain selector and storage behind a transactional scope (spec.md
// §2, §4.1). Every mutating request handler here corresponds to one method
// on the original's ChainWorkerStateWithAttemptedChanges
// (_examples/original_source/linera-core/src/chain_worker/state/attempted_changes.rs).
package worker

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/tolelom/multichain/blobresolver"
	"github.com/tolelom/multichain/cache"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/chainstate"
	"github.com/tolelom/multichain/crypto"
	"github.com/tolelom/multichain/eventindex"
	"github.com/tolelom/multichain/notifier"
	"github.com/tolelom/multichain/runtime"
	"github.com/tolelom/multichain/storage"
)

// Config tunes a Worker's policy decisions that are not derivable purely
// from chain state (spec.md §4.6, §4.7's "config forbids inactive
// writes").
type Config struct {
	// AllowMessagesFromDeprecatedEpochs disables cross-chain epoch-trust
	// filtering, accepting any non-skipped bundle regardless of epoch.
	AllowMessagesFromDeprecatedEpochs bool
	// AllowInactiveChains permits staging cross-chain messages into a
	// chain that has not yet been activated.
	AllowInactiveChains bool
	// BlockValuesCacheSize bounds the shared block-values LRU.
	BlockValuesCacheSize int
}

// DefaultConfig returns conservative defaults suitable for a single
// validator process.
func DefaultConfig() Config {
	return Config{BlockValuesCacheSize: 4096}
}

// Worker is the ChainWorker facade: one instance is shared by every chain
// this validator serves, dispatching requests through a per-chain
// transactional scope over shared storage.
type Worker struct {
	cfg      Config
	store    *storage.Store
	view     *storage.ViewStore
	resolver *blobresolver.Resolver
	executor *runtime.Executor
	values   *cache.BlockValues
	notify   *notifier.DeliveryNotifier
	events   *eventindex.Index
	priv     ed25519.PrivateKey
	pub      crypto.PublicKey

	mu       sync.Mutex
	mailboxes map[chainid.ID]*Mailbox
}

// New creates a Worker for the local validator identified by priv,
// operating over store/view and dispatching execution through executor.
func New(cfg Config, store *storage.Store, view *storage.ViewStore, executor *runtime.Executor, priv crypto.PrivateKey) (*Worker, error) {
	values, err := cache.New(cfg.BlockValuesCacheSize)
	if err != nil {
		return nil, fmt.Errorf("worker: create block values cache: %w", err)
	}
	return &Worker{
		cfg:       cfg,
		store:     store,
		view:      view,
		resolver:  blobresolver.New(store),
		executor:  executor,
		values:    values,
		notify:    notifier.New(),
		events:    eventindex.New(store),
		priv:      ed25519.PrivateKey(priv),
		pub:       priv.Public(),
		mailboxes: make(map[chainid.ID]*Mailbox),
	}, nil
}

// privateKey returns the worker's signing key as the crypto package's
// wrapper type, for use with committee.Signature and consensus.Manager.
func (w *Worker) privateKey() crypto.PrivateKey {
	return crypto.PrivateKey(w.priv)
}

// mailbox returns (creating if necessary) the single-writer actor for
// chain, so all mutating requests against it serialize (spec.md §5).
func (w *Worker) mailbox(chain chainid.ID) *Mailbox {
	w.mu.Lock()
	defer w.mu.Unlock()
	mb, ok := w.mailboxes[chain]
	if !ok {
		mb = NewMailbox()
		w.mailboxes[chain] = mb
	}
	return mb
}

// GetChainInfo returns the chain's current state snapshot without opening
// a write scope. It takes the view's read lock, so it waits while any
// chain's scope is open (a scope holds the exclusive lock from beginScope
// until save or rollback, for the whole request) and never observes a
// write half-applied.
func (w *Worker) GetChainInfo(chain chainid.ID) (ChainInfo, error) {
	w.view.RLock()
	defer w.view.RUnlock()
	state, err := chainstate.Load(chain, w.view)
	if err != nil {
		return ChainInfo{}, wrapStorage(err)
	}
	return chainInfoFrom(state), nil
}

// chainInfoFrom builds the read-only response snapshot from a loaded
// ChainStateView, the way the original builds a ChainInfoResponse from
// `&self.state.chain` at the end of every handler.
func chainInfoFrom(state *chainstate.ChainStateView) ChainInfo {
	return ChainInfo{
		ChainID:         state.ChainID,
		NextBlockHeight: state.Tip.NextBlockHeight,
		BlockHash:       state.Tip.BlockHash,
		Epoch:           state.Epoch,
		ManagerRound:    state.Manager.Round,
	}
}
