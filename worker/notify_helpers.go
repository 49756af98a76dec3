package worker

import (
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/chainstate"
	"github.com/tolelom/multichain/notifier"
)

// buildCrossChainActions derives the outbound CrossChainRequests implied
// by state's current outboxes: one request per recipient chain that still
// has undelivered messages, so the caller can push them over the network.
func buildCrossChainActions(state *chainstate.ChainStateView) NetworkActions {
	var actions NetworkActions
	for recipient, entry := range state.Outboxes {
		if entry.DeliveredUpTo >= entry.HighestSent {
			continue
		}
		actions.CrossChainRequests = append(actions.CrossChainRequests, CrossChainRequest{
			Recipient:     recipient,
			Origin:        state.ChainID,
			HighestHeight: entry.HighestSent,
		})
	}
	return actions
}

// registerDelivery implements the DeliveryNotifier registration fast path
// (spec.md §4.9): if ch is nil the caller did not ask to wait. Otherwise,
// if nothing is outstanding at or below height, fire immediately; else
// register for a future Notify call.
func (w *Worker) registerDelivery(state *chainstate.ChainStateView, height chainid.Height, ch chan struct{}) {
	if ch == nil {
		return
	}
	if !state.HasOutgoingRequestAtOrBelow(height) {
		notifier.NotifyImmediately(ch)
		return
	}
	w.notify.Register(height, ch)
}
