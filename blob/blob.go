// Package blob defines the immutable, content-addressed byte payload type
// and the pending-blob tracking sets used while a proposal or validated
// block is waiting on blobs a client has not yet uploaded.
package blob

import (
	"sort"
	"sync"

	"github.com/tolelom/multichain/chainid"
)

// Blob is an immutable content-addressed byte payload referenced by a
// block's operations.
type Blob struct {
	ID      chainid.BlobID `json:"id"`
	Content []byte         `json:"content"`
}

// New wraps content as a Blob, computing its content-addressed ID.
func New(content []byte) Blob {
	return Blob{ID: chainid.HashBlobID(content), Content: content}
}

// PendingSet tracks the blob ids a single in-progress proposal or
// validated-block vote is still waiting on. Adapted from the teacher's
// mempool pattern (tolelom-tolchain/core/mempool.go): a map for O(1)
// membership plus an ordered slice so Missing() is deterministic.
type PendingSet struct {
	mu        sync.RWMutex
	round     uint64
	validated bool
	found     map[chainid.BlobID]Blob
	order     []chainid.BlobID // ids still outstanding, ascending id order
	outstanding map[chainid.BlobID]bool
}

// NewPendingSet creates an empty set for the given round, recording
// whether it belongs to a validated-block vote (true) or a proposal vote
// (false) — the distinction the committee policy check in §4.8 relies on.
func NewPendingSet(round uint64, validated bool) *PendingSet {
	return &PendingSet{
		round:       round,
		validated:   validated,
		found:       make(map[chainid.BlobID]Blob),
		outstanding: make(map[chainid.BlobID]bool),
	}
}

// Validated reports whether this set belongs to a validated-block vote.
func (p *PendingSet) Validated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.validated
}

// Round returns the round this pending set was recorded for.
func (p *PendingSet) Round() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.round
}

// Update replaces the set's outstanding ids from the partial resolution
// maybeBlobs (id -> blob, nil if still missing), matching the original's
// `pending_validated_blobs.update(round, true, maybe_blobs)` call.
func (p *PendingSet) Update(round uint64, validated bool, maybeBlobs map[chainid.BlobID]*Blob) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.round = round
	p.validated = validated
	p.found = make(map[chainid.BlobID]Blob)
	p.outstanding = make(map[chainid.BlobID]bool)
	p.order = nil
	for id, b := range maybeBlobs {
		if b != nil {
			p.found[id] = *b
			continue
		}
		p.outstanding[id] = true
		p.order = append(p.order, id)
	}
	sort.Slice(p.order, func(i, j int) bool { return p.order[i] < p.order[j] })
}

// MaybeInsert records blob if it is one of this set's outstanding ids.
// Returns true if the blob was expected.
func (p *PendingSet) MaybeInsert(b Blob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.outstanding[b.ID] {
		return false
	}
	delete(p.outstanding, b.ID)
	p.found[b.ID] = b
	filtered := p.order[:0]
	for _, id := range p.order {
		if id != b.ID {
			filtered = append(filtered, id)
		}
	}
	p.order = filtered
	return true
}

// Missing returns the outstanding blob ids in ascending id order, the
// order Update records them in.
func (p *PendingSet) Missing() []chainid.BlobID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]chainid.BlobID, len(p.order))
	copy(out, p.order)
	return out
}

// Count returns the number of blobs already found in this set, used by the
// committee policy's total-published-blobs limit (§4.8).
func (p *PendingSet) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.found)
}

// Complete reports whether every id in the set has been found.
func (p *PendingSet) Complete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.outstanding) == 0
}

// Found returns the resolved blobs collected so far.
func (p *PendingSet) Found() map[chainid.BlobID]Blob {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[chainid.BlobID]Blob, len(p.found))
	for k, v := range p.found {
		out[k] = v
	}
	return out
}
