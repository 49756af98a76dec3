package chainstate

import (
	"testing"

	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
	"github.com/tolelom/multichain/internal/testutil"
	"github.com/tolelom/multichain/storage"
)

func testChain(t *testing.T) chainid.ID {
	t.Helper()
	id, err := chainid.IDFromHex(chainid.Hash([]byte("chainstate-test-chain")))
	if err != nil {
		t.Fatalf("derive chain id: %v", err)
	}
	return id
}

func TestLoadOnFreshChainReturnsInactiveView(t *testing.T) {
	view := testutil.NewViewStore()
	chain := testChain(t)

	state, err := Load(chain, view)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if state.Active {
		t.Fatalf("expected a never-saved chain to be inactive")
	}
	if state.Tip.NextBlockHeight != 0 {
		t.Fatalf("expected a fresh tip at height 0, got %d", state.Tip.NextBlockHeight)
	}
}

func TestSaveThenLoadRoundTripsState(t *testing.T) {
	db := testutil.NewMemDB()
	view := storage.NewViewStore(db)
	chain := testChain(t)

	state := New(chain, view)
	state.Active = true
	state.Epoch = 2
	state.Committees[0] = committee.New(0, nil, committee.DefaultPolicy())
	state.Tip = Tip{NextBlockHeight: 5, BlockHash: "abc"}
	state.Manager.Round = 3
	if err := state.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(chain, view)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.Active || loaded.Epoch != 2 || loaded.Tip.NextBlockHeight != 5 || loaded.Tip.BlockHash != "abc" {
		t.Fatalf("state did not round trip: %+v", loaded)
	}
	if _, ok := loaded.Committees[0]; !ok {
		t.Fatalf("expected committee at epoch 0 to survive the round trip")
	}
	if loaded.Manager.Round != 3 {
		t.Fatalf("expected manager round 3, got %d", loaded.Manager.Round)
	}
}

func TestReceiveMessageBundleAdvancesNextHeightToReceive(t *testing.T) {
	view := testutil.NewViewStore()
	chain := testChain(t)
	origin := testChain(t)
	state := New(chain, view)

	state.ReceiveMessageBundle(origin, 3)
	if got := state.NextHeightToReceive(origin); got != 4 {
		t.Fatalf("expected next height to receive 4, got %d", got)
	}
	// Replaying an older or equal height must not move the cursor backwards.
	state.ReceiveMessageBundle(origin, 1)
	if got := state.NextHeightToReceive(origin); got != 4 {
		t.Fatalf("expected next height to receive to stay at 4, got %d", got)
	}
}

func TestOutgoingDeliveryTracking(t *testing.T) {
	view := testutil.NewViewStore()
	chain := testChain(t)
	recipient := testChain(t)
	state := New(chain, view)

	state.RecordOutgoing(recipient, 5)
	if !state.HasOutgoingRequestAtOrBelow(5) {
		t.Fatalf("expected an outstanding request at height 5")
	}
	if state.AllMessagesDeliveredUpTo(5) {
		t.Fatalf("expected delivery to be incomplete before any ack")
	}

	allDelivered := state.MarkMessagesAsReceived(recipient, 5)
	if !allDelivered {
		t.Fatalf("expected delivery through height 5 to catch up the recipient entirely")
	}
	if !state.AllMessagesDeliveredUpTo(5) {
		t.Fatalf("expected all messages delivered up to height 5 after the ack")
	}
	if state.HasOutgoingRequestAtOrBelow(5) {
		t.Fatalf("expected no outstanding request once delivery has been acked")
	}
}

func TestAlreadyValidatedBlock(t *testing.T) {
	view := testutil.NewViewStore()
	chain := testChain(t)
	state := New(chain, view)
	state.Tip.NextBlockHeight = 10

	if !state.AlreadyValidatedBlock(5) {
		t.Fatalf("expected height 5 to already be validated when tip is at 10")
	}
	if state.AlreadyValidatedBlock(10) {
		t.Fatalf("expected height 10 to not yet be validated when tip is at 10")
	}
}
