// Package blobresolver resolves the blob dependencies a block requires,
// checking chain-local state (blobs created within the same block), then
// storage, and reporting back which ids remain missing — grounded on the
// original's maybe_get_required_blobs / missing_blob_ids
// (_examples/original_source/linera-core/src/chain_worker/state/attempted_changes.rs).
package blobresolver

import (
	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/storage"
)

// Resolver looks up blobs from a chain's locally-created set first, falling
// back to durable storage.
type Resolver struct {
	store *storage.Store
}

// New creates a Resolver backed by store.
func New(store *storage.Store) *Resolver {
	return &Resolver{store: store}
}

// MaybeGetRequired resolves each id in ids against created (blobs produced
// earlier in the same block) and then storage, returning a map with a nil
// entry for any id that could not be found anywhere — mirroring the
// original's BTreeMap<BlobId, Option<Blob>> shape so a caller can tell
// "missing" apart from "not yet looked up".
func (r *Resolver) MaybeGetRequired(ids []chainid.BlobID, created map[chainid.BlobID]blob.Blob) (map[chainid.BlobID]*blob.Blob, error) {
	out := make(map[chainid.BlobID]*blob.Blob, len(ids))
	for _, id := range ids {
		if b, ok := created[id]; ok {
			bc := b
			out[id] = &bc
			continue
		}
		b, err := r.store.GetBlob(id)
		if err == storage.ErrNotFound {
			out[id] = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		out[id] = b
	}
	return out, nil
}

// Missing returns the ids in maybeBlobs whose value is nil, in a
// deterministic order matching the input id order, replicating the
// original's missing_blob_ids helper.
func Missing(ids []chainid.BlobID, maybeBlobs map[chainid.BlobID]*blob.Blob) []chainid.BlobID {
	var out []chainid.BlobID
	for _, id := range ids {
		if maybeBlobs[id] == nil {
			out = append(out, id)
		}
	}
	return out
}

// GetRequired resolves ids the same way as MaybeGetRequired and returns
// only the found blobs keyed by id: an id that does not resolve is left
// out of the result without an error. Used once the caller has already confirmed nothing is missing (e.g.
// after a successful vote) and wants a plain map instead of Option-like
// nils.
func (r *Resolver) GetRequired(ids []chainid.BlobID, created map[chainid.BlobID]blob.Blob) (map[chainid.BlobID]blob.Blob, error) {
	maybeBlobs, err := r.MaybeGetRequired(ids, created)
	if err != nil {
		return nil, err
	}
	out := make(map[chainid.BlobID]blob.Blob, len(ids))
	for id, b := range maybeBlobs {
		if b == nil {
			continue
		}
		out[id] = *b
	}
	return out, nil
}
