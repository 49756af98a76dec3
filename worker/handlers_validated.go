package worker

import (
	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/blobresolver"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
	"github.com/tolelom/multichain/consensus"
)

// ValidatedVote is this validator's signed vote over an already-validated
// block, ready to be gathered into a ConfirmedBlockCertificate.
type ValidatedVote struct {
	ChainID chainid.ID
	Height  chainid.Height
	Sig     committee.Signature
}

// HandleValidatedCertificate processes a ValidatedBlockCertificate gathered
// by the proposer and casts this validator's confirming vote (spec.md
// §4.4), ported from the original's process_validated_block.
func (w *Worker) HandleValidatedCertificate(chain chainid.ID, cert block.Certificate) (ChainInfo, NetworkActions, *ValidatedVote, error) {
	var info ChainInfo
	var actions NetworkActions
	var vote *ValidatedVote

	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		if !sc.state.IsActive() {
			return newErr(InactiveChain, "chain is not yet initialized")
		}
		epoch, comm, ok := sc.state.CurrentCommittee()
		if !ok {
			return newErr(InvalidEpoch, "chain has no active committee")
		}
		if cert.Epoch() != epoch {
			return newErr(InvalidEpoch, "certificate epoch does not match chain epoch")
		}
		if err := cert.Check(comm); err != nil {
			return &Error{Kind: InvalidSignature, Detail: err.Error()}
		}

		if sc.state.Manager.CheckValidatedBlock(cert) == consensus.OutcomeSkip {
			info = chainInfoFrom(sc.state)
			return nil
		}

		required := cert.Validated.RequiredBlobIDs()
		maybeBlobs, err := w.resolver.MaybeGetRequired(required, nil)
		if err != nil {
			return wrapStorage(err)
		}
		missing := blobresolver.Missing(required, maybeBlobs)
		if len(missing) > 0 {
			sc.state.PendingValidatedBlobs.Update(cert.Round, true, maybeBlobs)
			info = chainInfoFrom(sc.state)
			if saveErr := sc.save(); saveErr != nil {
				return saveErr
			}
			return blobsNotFound(missing)
		}

		payload := []byte(cert.Validated.Header.ComputeHash() + cert.Outcome.StateHash)
		priv := w.privateKey()
		oldRound := sc.state.Manager.CurrentRound()
		sig, err := sc.state.Manager.CreateFinalVote(cert, &priv, payload)
		if err != nil {
			return &Error{Kind: InvalidBlockChaining, Detail: err.Error()}
		}
		if round := sc.state.Manager.CurrentRound(); round > oldRound {
			actions.Notifications = append(actions.Notifications, Notification{
				ChainID: chain,
				Reason:  ReasonNewRound,
				Height:  cert.Height(),
				Round:   round,
			})
		}

		votedBlock := cert.Validated.WithOutcome(cert.Outcome)
		w.values.Insert(payload2key(payload), votedBlock)

		vote = &ValidatedVote{ChainID: chain, Height: cert.Height(), Sig: sig}
		info = chainInfoFrom(sc.state)
		return sc.save()
	})
	return info, actions, vote, err
}

func payload2key(payload []byte) string {
	return string(payload)
}
