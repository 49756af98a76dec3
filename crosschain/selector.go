// Package crosschain implements the trust and ordering rules applied to an
// inbound stream of cross-chain message bundles before they are staged into
// a chain's inboxes — a near-direct port of the original's
// CrossChainUpdateHelper::select_message_bundles
// (_examples/original_source/linera-core/src/chain_worker/state/attempted_changes.rs).
package crosschain

import (
	"fmt"

	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
)

// EpochBundle pairs an inbound message bundle with the epoch it was
// produced under, as reported by the sending chain.
type EpochBundle struct {
	Epoch  chainid.Epoch
	Bundle block.MessageBundle
}

// Selector applies ordering and epoch-trust filtering to an inbound bundle
// stream (spec.md §4.6).
type Selector struct {
	// AllowMessagesFromDeprecatedEpochs disables epoch-trust filtering
	// entirely when true, accepting every non-skipped bundle.
	AllowMessagesFromDeprecatedEpochs bool
	CurrentEpoch                      chainid.Epoch
	Committees                        map[chainid.Epoch]committee.Committee
}

// SelectBundles splits bundles into skipped / accepted / untrusted
// following spec.md I2 and §4.6, returning only the accepted subset in
// original order.
//
// A bundle is skipped if its height is already below nextHeightToReceive.
// A bundle is trusted if messages from deprecated epochs are allowed
// globally, or its height was already anticipated via a certified block
// (<= lastAnticipatedHeight), or its epoch is current or newer, or the
// chain still has a committee on file for that epoch. The accepted window
// is [firstNonSkipped, lastTrusted]; anything in between stays "trusted
// but unreachable" only if the window is contiguous from the first
// non-skipped bundle — if the window is empty, nothing is accepted.
func (s *Selector) SelectBundles(origin, recipient chainid.ID, nextHeightToReceive chainid.Height, lastAnticipatedHeight *chainid.Height, bundles []EpochBundle) ([]block.MessageBundle, error) {
	var latestHeight *chainid.Height
	skippedLen := 0
	trustedLen := 0

	for i, eb := range bundles {
		h := eb.Bundle.Height
		if latestHeight != nil && h < *latestHeight {
			return nil, fmt.Errorf("crosschain: non-decreasing height invariant violated at bundle %d", i)
		}
		hh := h
		latestHeight = &hh

		if h < nextHeightToReceive {
			skippedLen = i + 1
		}

		trusted := s.AllowMessagesFromDeprecatedEpochs ||
			(lastAnticipatedHeight != nil && h <= *lastAnticipatedHeight) ||
			eb.Epoch >= s.CurrentEpoch
		if !trusted {
			if _, ok := s.Committees[eb.Epoch]; ok {
				trusted = true
			}
		}
		if trusted {
			trustedLen = i + 1
		}
	}

	if skippedLen >= trustedLen {
		return nil, nil
	}
	out := make([]block.MessageBundle, 0, trustedLen-skippedLen)
	for _, eb := range bundles[skippedLen:trustedLen] {
		out = append(out, eb.Bundle)
	}
	return out, nil
}
