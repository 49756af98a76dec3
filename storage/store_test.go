package storage

import (
	"testing"

	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
	"github.com/tolelom/multichain/internal/testutil"
)

func testChain(t *testing.T) chainid.ID {
	t.Helper()
	id, err := chainid.IDFromHex(chainid.Hash([]byte("store-test-chain")))
	if err != nil {
		t.Fatalf("derive chain id: %v", err)
	}
	return id
}

func minimalCert() block.Certificate {
	blk := block.Block{}
	return block.Certificate{Kind: block.CertConfirmed, Confirmed: &blk}
}

func TestWriteCommitteeThenCommitteesFor(t *testing.T) {
	store := testutil.NewStore()
	comm0 := committee.New(0, nil, committee.DefaultPolicy())
	comm1 := committee.New(1, nil, committee.DefaultPolicy())
	if err := store.WriteCommittee(comm0); err != nil {
		t.Fatalf("WriteCommittee(0): %v", err)
	}
	if err := store.WriteCommittee(comm1); err != nil {
		t.Fatalf("WriteCommittee(1): %v", err)
	}

	got, err := store.CommitteesFor(0, 1)
	if err != nil {
		t.Fatalf("CommitteesFor: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both committees in range, got %d", len(got))
	}
	if _, ok := got[0]; !ok {
		t.Fatalf("expected epoch 0 committee")
	}
	if _, ok := got[1]; !ok {
		t.Fatalf("expected epoch 1 committee")
	}
}

func TestReadNetworkDescriptionNotFound(t *testing.T) {
	store := testutil.NewStore()
	if _, err := store.ReadNetworkDescription(); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound before any bootstrap, got %v", err)
	}
}

func TestWriteThenReadNetworkDescription(t *testing.T) {
	store := testutil.NewStore()
	chain := testChain(t)
	if err := store.WriteNetworkDescription(NetworkDescription{AdminChainID: chain}); err != nil {
		t.Fatalf("WriteNetworkDescription: %v", err)
	}
	nd, err := store.ReadNetworkDescription()
	if err != nil {
		t.Fatalf("ReadNetworkDescription: %v", err)
	}
	if nd.AdminChainID != chain {
		t.Fatalf("admin chain id mismatch: got %v, want %v", nd.AdminChainID, chain)
	}
}

func TestWriteBlobsAndCertificateThenGetBlob(t *testing.T) {
	store := testutil.NewStore()
	b := blob.New([]byte("payload"))
	if err := store.WriteBlobsAndCertificate([]blob.Blob{b}, minimalCert()); err != nil {
		t.Fatalf("WriteBlobsAndCertificate: %v", err)
	}
	got, err := store.GetBlob(b.ID)
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if string(got.Content) != "payload" {
		t.Fatalf("blob content mismatch: got %s", got.Content)
	}
}

func TestGetBlobNotFound(t *testing.T) {
	store := testutil.NewStore()
	if _, err := store.GetBlob(chainid.HashBlobID([]byte("absent"))); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for an unwritten blob, got %v", err)
	}
}

func TestMaybeWriteBlobStatesThenGetBlobState(t *testing.T) {
	store := testutil.NewStore()
	id := chainid.HashBlobID([]byte("tracked"))
	if err := store.MaybeWriteBlobStates([]chainid.BlobID{id}, BlobState{CertificateHash: "cert-hash"}); err != nil {
		t.Fatalf("MaybeWriteBlobStates: %v", err)
	}
	st, err := store.GetBlobState(id)
	if err != nil {
		t.Fatalf("GetBlobState: %v", err)
	}
	if st.CertificateHash != "cert-hash" {
		t.Fatalf("certificate hash mismatch: got %s", st.CertificateHash)
	}
}

func TestWriteEventsThenFindEventsReturnsIndexOrder(t *testing.T) {
	store := testutil.NewStore()
	chain := testChain(t)
	events := []StoredEvent{
		{ChainID: chain, StreamID: "s1", Index: 2, Payload: []byte("c")},
		{ChainID: chain, StreamID: "s1", Index: 0, Payload: []byte("a")},
		{ChainID: chain, StreamID: "s1", Index: 1, Payload: []byte("b")},
	}
	if err := store.WriteEvents(events); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	found, err := store.FindEvents(chain, "s1")
	if err != nil {
		t.Fatalf("FindEvents: %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected 3 events, got %d", len(found))
	}
	for i, e := range found {
		if e.Index != uint64(i) {
			t.Fatalf("expected events in index order, got index %d at position %d", e.Index, i)
		}
	}
}

func TestGetEventByIndex(t *testing.T) {
	store := testutil.NewStore()
	chain := testChain(t)
	if err := store.WriteEvents([]StoredEvent{{ChainID: chain, StreamID: "s1", Index: 5, Payload: []byte("x")}}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	e, err := store.GetEvent(chain, "s1", 5)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if string(e.Payload) != "x" {
		t.Fatalf("payload mismatch: got %s", e.Payload)
	}
}

func TestChainPrefixIsStableAndDistinctPerChain(t *testing.T) {
	a := testChain(t)
	b, err := chainid.IDFromHex(chainid.Hash([]byte("a-different-chain")))
	if err != nil {
		t.Fatalf("derive chain id: %v", err)
	}
	if string(ChainPrefix(a)) == string(ChainPrefix(b)) {
		t.Fatalf("expected distinct chains to have distinct prefixes")
	}
	if string(ChainPrefix(a)) != string(ChainPrefix(a)) {
		t.Fatalf("expected ChainPrefix to be stable for the same chain id")
	}
}
