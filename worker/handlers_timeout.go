package worker

import (
	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/chainid"
)

// HandleTimeout processes a leader-timeout certificate for chain (spec.md
// §4.2), ported from the original's process_timeout.
func (w *Worker) HandleTimeout(chain chainid.ID, cert block.Certificate, localTime int64) (ChainInfo, NetworkActions, error) {
	var info ChainInfo
	var actions NetworkActions
	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		if !sc.state.IsActive() {
			return newErr(InactiveChain, "chain is not yet initialized")
		}
		epoch, committee, ok := sc.state.CurrentCommittee()
		if !ok {
			return newErr(InvalidEpoch, "chain has no active committee")
		}
		if cert.Epoch() != epoch {
			return newErr(InvalidEpoch, "certificate epoch does not match chain epoch")
		}
		if err := cert.Check(committee); err != nil {
			return &Error{Kind: InvalidSignature, Detail: err.Error()}
		}

		if sc.state.AlreadyValidatedBlock(cert.Height()) {
			info = chainInfoFrom(sc.state)
			return nil
		}

		oldRound := sc.state.Manager.CurrentRound()
		sc.state.Manager.HandleTimeoutCertificate(cert, localTime)
		round := sc.state.Manager.CurrentRound()
		if round > oldRound {
			actions.Notifications = append(actions.Notifications, Notification{
				ChainID: chain,
				Reason:  ReasonNewRound,
				Height:  cert.Height(),
				Round:   round,
			})
		}
		info = chainInfoFrom(sc.state)
		return sc.save()
	})
	return info, actions, err
}
