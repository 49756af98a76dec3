package blobresolver

import (
	"testing"

	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/internal/testutil"
)

// emptyCert returns a minimal, well-formed certificate suitable for
// exercising storage writes that only care about its content hash.
func emptyCert() block.Certificate {
	blk := block.Block{}
	return block.Certificate{Kind: block.CertConfirmed, Confirmed: &blk}
}

func TestMaybeGetRequiredPrefersCreatedOverStorage(t *testing.T) {
	store := testutil.NewStore()
	r := New(store)

	stored := blob.New([]byte("from storage"))
	if err := store.WriteBlobsAndCertificate([]blob.Blob{stored}, emptyCert()); err != nil {
		t.Fatalf("WriteBlobsAndCertificate: %v", err)
	}
	created := blob.New([]byte("from this block"))

	got, err := r.MaybeGetRequired([]chainid.BlobID{stored.ID, created.ID}, map[chainid.BlobID]blob.Blob{created.ID: created})
	if err != nil {
		t.Fatalf("MaybeGetRequired: %v", err)
	}
	if got[stored.ID] == nil || string(got[stored.ID].Content) != "from storage" {
		t.Fatalf("expected stored blob to resolve from storage, got %+v", got[stored.ID])
	}
	if got[created.ID] == nil || string(got[created.ID].Content) != "from this block" {
		t.Fatalf("expected created blob to resolve from the created map, got %+v", got[created.ID])
	}
}

func TestMaybeGetRequiredReportsMissingAsNil(t *testing.T) {
	store := testutil.NewStore()
	r := New(store)
	unknown := chainid.HashBlobID([]byte("never written"))

	got, err := r.MaybeGetRequired([]chainid.BlobID{unknown}, nil)
	if err != nil {
		t.Fatalf("MaybeGetRequired: %v", err)
	}
	if got[unknown] != nil {
		t.Fatalf("expected an unresolved id to map to nil, got %+v", got[unknown])
	}
}

func TestMissingReturnsOnlyUnresolvedIDsInOrder(t *testing.T) {
	a := chainid.HashBlobID([]byte("a"))
	b := chainid.HashBlobID([]byte("b"))
	c := chainid.HashBlobID([]byte("c"))
	content := blob.New([]byte("b content"))

	maybeBlobs := map[chainid.BlobID]*blob.Blob{a: nil, b: &content, c: nil}
	missing := Missing([]chainid.BlobID{a, b, c}, maybeBlobs)
	if len(missing) != 2 || missing[0] != a || missing[1] != c {
		t.Fatalf("expected [a, c] missing in input order, got %v", missing)
	}
}

func TestGetRequiredDropsUnresolvedEntries(t *testing.T) {
	store := testutil.NewStore()
	r := New(store)
	found := blob.New([]byte("present"))
	missing := chainid.HashBlobID([]byte("absent"))

	got, err := r.GetRequired([]chainid.BlobID{found.ID, missing}, map[chainid.BlobID]blob.Blob{found.ID: found})
	if err != nil {
		t.Fatalf("GetRequired: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the resolved blob, got %d entries", len(got))
	}
	if _, ok := got[found.ID]; !ok {
		t.Fatalf("expected the created blob to be present in the result")
	}
}
