package eventindex

import (
	"testing"

	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/internal/testutil"
	"github.com/tolelom/multichain/storage"
)

func testChain(t *testing.T) chainid.ID {
	t.Helper()
	id, err := chainid.IDFromHex(chainid.Hash([]byte("eventindex-test-chain")))
	if err != nil {
		t.Fatalf("derive test chain id: %v", err)
	}
	return id
}

func TestRecordAndIndicesOrdersByIndex(t *testing.T) {
	store := testutil.NewStore()
	ix := New(store)
	chain := testChain(t)

	for _, i := range []uint64{3, 1, 2} {
		if err := ix.Record(chain, "epoch", i); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	got, err := ix.Indices(chain, "epoch")
	if err != nil {
		t.Fatalf("Indices: %v", err)
	}
	want := []uint64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	store := testutil.NewStore()
	ix := New(store)
	chain := testChain(t)

	if err := ix.Record(chain, "epoch", 5); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := ix.Record(chain, "epoch", 5); err != nil {
		t.Fatalf("Record again: %v", err)
	}

	got, err := ix.Indices(chain, "epoch")
	if err != nil {
		t.Fatalf("Indices: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected a single entry after duplicate Record, got %v", got)
	}
}

func TestIndicesRebuildsFromStoreOnFirstMiss(t *testing.T) {
	store := testutil.NewStore()
	chain := testChain(t)

	// Write events directly through storage, bypassing the index, the
	// way a fresh validator's storage.Store.WriteEvents calls would have
	// landed before the index existed.
	events := []storage.StoredEvent{
		{ChainID: chain, StreamID: "epoch", Index: 0, Payload: []byte(`"a"`)},
		{ChainID: chain, StreamID: "epoch", Index: 1, Payload: []byte(`"b"`)},
	}
	if err := store.WriteEvents(events); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	ix := New(store)
	got, err := ix.Indices(chain, "epoch")
	if err != nil {
		t.Fatalf("Indices: %v", err)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Fatalf("expected rebuilt indices [0 1], got %v", got)
	}
}

func TestGetResolvesStoredEvent(t *testing.T) {
	store := testutil.NewStore()
	ix := New(store)
	chain := testChain(t)

	if err := store.WriteEvents([]storage.StoredEvent{
		{ChainID: chain, StreamID: "epoch", Index: 0, Payload: []byte(`{"committee":true}`)},
	}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	if err := ix.Record(chain, "epoch", 0); err != nil {
		t.Fatalf("Record: %v", err)
	}

	e, err := ix.Get(chain, "epoch", 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(e.Payload) != `{"committee":true}` {
		t.Fatalf("unexpected payload: %s", e.Payload)
	}
}

func TestGetUnknownEventReturnsNotFound(t *testing.T) {
	store := testutil.NewStore()
	ix := New(store)
	chain := testChain(t)

	if _, err := ix.Get(chain, "epoch", 99); err != storage.ErrNotFound {
		t.Fatalf("expected storage.ErrNotFound, got %v", err)
	}
}
