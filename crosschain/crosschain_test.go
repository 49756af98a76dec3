package crosschain

import (
	"testing"

	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
)

func testChains(t *testing.T) (origin, recipient chainid.ID) {
	t.Helper()
	o, err := chainid.IDFromHex(chainid.Hash([]byte("crosschain-origin")))
	if err != nil {
		t.Fatalf("derive origin: %v", err)
	}
	r, err := chainid.IDFromHex(chainid.Hash([]byte("crosschain-recipient")))
	if err != nil {
		t.Fatalf("derive recipient: %v", err)
	}
	return o, r
}

func bundleAt(origin chainid.ID, epoch chainid.Epoch, height chainid.Height) EpochBundle {
	return EpochBundle{Epoch: epoch, Bundle: block.MessageBundle{Origin: origin, Height: height}}
}

func TestSelectBundlesSkipsAlreadyReceivedHeights(t *testing.T) {
	origin, recipient := testChains(t)
	sel := &Selector{CurrentEpoch: 0}
	bundles := []EpochBundle{bundleAt(origin, 0, 0), bundleAt(origin, 0, 1), bundleAt(origin, 0, 2)}

	accepted, err := sel.SelectBundles(origin, recipient, 2, nil, bundles)
	if err != nil {
		t.Fatalf("SelectBundles: %v", err)
	}
	if len(accepted) != 1 || accepted[0].Height != 2 {
		t.Fatalf("expected only height 2 to survive the skip filter, got %+v", accepted)
	}
}

func TestSelectBundlesTrustsCurrentOrNewerEpoch(t *testing.T) {
	origin, recipient := testChains(t)
	sel := &Selector{CurrentEpoch: 2}
	bundles := []EpochBundle{bundleAt(origin, 2, 0)}

	accepted, err := sel.SelectBundles(origin, recipient, 0, nil, bundles)
	if err != nil {
		t.Fatalf("SelectBundles: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected a current-epoch bundle to be trusted, got %+v", accepted)
	}
}

func TestSelectBundlesRejectsDeprecatedEpochWithoutKnownCommittee(t *testing.T) {
	origin, recipient := testChains(t)
	sel := &Selector{CurrentEpoch: 3, Committees: map[chainid.Epoch]committee.Committee{}}
	bundles := []EpochBundle{bundleAt(origin, 0, 0)}

	accepted, err := sel.SelectBundles(origin, recipient, 0, nil, bundles)
	if err != nil {
		t.Fatalf("SelectBundles: %v", err)
	}
	if len(accepted) != 0 {
		t.Fatalf("expected a deprecated-epoch bundle with no known committee to be untrusted, got %+v", accepted)
	}
}

func TestSelectBundlesTrustsDeprecatedEpochWithKnownCommittee(t *testing.T) {
	origin, recipient := testChains(t)
	comm := committee.New(0, nil, committee.DefaultPolicy())
	sel := &Selector{CurrentEpoch: 3, Committees: map[chainid.Epoch]committee.Committee{0: comm}}
	bundles := []EpochBundle{bundleAt(origin, 0, 0)}

	accepted, err := sel.SelectBundles(origin, recipient, 0, nil, bundles)
	if err != nil {
		t.Fatalf("SelectBundles: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected a deprecated-epoch bundle with a known committee to be trusted, got %+v", accepted)
	}
}

func TestSelectBundlesAllowMessagesFromDeprecatedEpochsBypassesFilter(t *testing.T) {
	origin, recipient := testChains(t)
	sel := &Selector{CurrentEpoch: 9, AllowMessagesFromDeprecatedEpochs: true}
	bundles := []EpochBundle{bundleAt(origin, 0, 0)}

	accepted, err := sel.SelectBundles(origin, recipient, 0, nil, bundles)
	if err != nil {
		t.Fatalf("SelectBundles: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected AllowMessagesFromDeprecatedEpochs to accept everything, got %+v", accepted)
	}
}

func TestSelectBundlesAnticipatedHeightIsTrusted(t *testing.T) {
	origin, recipient := testChains(t)
	anticipated := chainid.Height(5)
	sel := &Selector{CurrentEpoch: 9}
	bundles := []EpochBundle{bundleAt(origin, 0, 5)}

	accepted, err := sel.SelectBundles(origin, recipient, 0, &anticipated, bundles)
	if err != nil {
		t.Fatalf("SelectBundles: %v", err)
	}
	if len(accepted) != 1 {
		t.Fatalf("expected an anticipated height to be trusted regardless of epoch, got %+v", accepted)
	}
}

func TestSelectBundlesRejectsDecreasingHeights(t *testing.T) {
	origin, recipient := testChains(t)
	sel := &Selector{CurrentEpoch: 0}
	bundles := []EpochBundle{bundleAt(origin, 0, 5), bundleAt(origin, 0, 3)}

	if _, err := sel.SelectBundles(origin, recipient, 0, nil, bundles); err == nil {
		t.Fatalf("expected an error for a non-increasing height sequence")
	}
}

func TestSelectBundlesEmptyWindowReturnsNothing(t *testing.T) {
	origin, recipient := testChains(t)
	sel := &Selector{CurrentEpoch: 9}
	bundles := []EpochBundle{bundleAt(origin, 0, 0)}

	accepted, err := sel.SelectBundles(origin, recipient, 1, nil, bundles)
	if err != nil {
		t.Fatalf("SelectBundles: %v", err)
	}
	if len(accepted) != 0 {
		t.Fatalf("expected nothing accepted when the bundle is both skipped and untrusted, got %+v", accepted)
	}
}
