package worker

import (
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/crosschain"
)

// HandleCrossChainUpdate ingests an ordered batch of message bundles from
// origin into chain's inbox (spec.md §4.6), ported from the original's
// process_cross_chain_update. Returns the highest accepted height, or 0 if
// nothing was accepted.
func (w *Worker) HandleCrossChainUpdate(chain, origin chainid.ID, bundles []crosschain.EpochBundle) (ChainInfo, NetworkActions, chainid.Height, error) {
	var info ChainInfo
	var actions NetworkActions
	var highest chainid.Height

	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		sel := &crosschain.Selector{
			AllowMessagesFromDeprecatedEpochs: w.cfg.AllowMessagesFromDeprecatedEpochs,
			CurrentEpoch:                      sc.state.Epoch,
			Committees:                        sc.state.Committees,
		}
		accepted, err := sel.SelectBundles(
			origin, chain,
			sc.state.NextHeightToReceive(origin),
			sc.state.LastAnticipatedBlockHeight(origin),
			bundles,
		)
		if err != nil {
			return &Error{Kind: InvalidCrossChainRequest, Detail: err.Error()}
		}
		if len(accepted) == 0 {
			info = chainInfoFrom(sc.state)
			return nil
		}

		for _, bundle := range accepted {
			sc.state.ReceiveMessageBundle(origin, bundle.Height)
			if bundle.Height > highest {
				highest = bundle.Height
			}
		}
		actions.Notifications = append(actions.Notifications, Notification{
			ChainID: chain,
			Reason:  ReasonNewIncomingBundle,
			Height:  highest,
		})

		if !sc.state.IsActive() && !w.cfg.AllowInactiveChains {
			// Inactive chain, writes forbidden: do not save, do not confirm
			// delivery — the sender will retry (spec.md §4.6).
			highest = 0
			actions = NetworkActions{}
			info = chainInfoFrom(sc.state)
			return nil
		}

		info = chainInfoFrom(sc.state)
		return sc.save()
	})
	return info, actions, highest, err
}

// ConfirmUpdatedRecipient records that recipient has delivered messages up
// to latestHeight, firing the delivery notifier once every tracked
// recipient is caught up (spec.md §4.7).
func (w *Worker) ConfirmUpdatedRecipient(chain, recipient chainid.ID, latestHeight chainid.Height) (ChainInfo, error) {
	var info ChainInfo
	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		allDelivered := sc.state.MarkMessagesAsReceived(recipient, latestHeight)
		info = chainInfoFrom(sc.state)
		if err := sc.save(); err != nil {
			return err
		}
		if allDelivered && sc.state.AllMessagesDeliveredUpTo(latestHeight) {
			w.notify.Notify(latestHeight)
		}
		return nil
	})
	return info, err
}

// UpdateReceivedTrackers records, per validator, the highest certificate
// index it has acknowledged receiving for chain — used to avoid
// re-broadcasting cross-chain requests a validator has already processed.
func (w *Worker) UpdateReceivedTrackers(chain chainid.ID, validatorKeyHex string, index uint64) (ChainInfo, error) {
	var info ChainInfo
	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		if index > sc.state.ReceivedCertificateTrackers[validatorKeyHex] {
			sc.state.ReceivedCertificateTrackers[validatorKeyHex] = index
		}
		info = chainInfoFrom(sc.state)
		return sc.save()
	})
	return info, err
}
