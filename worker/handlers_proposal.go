package worker

import (
	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/blobresolver"
	"github.com/tolelom/multichain/chainid"
)

// HandleProposal validates a client's block proposal, executes it against
// the chain's current state, and casts this validator's vote (spec.md
// §4.3), combining the original's load_proposal_blobs and
// vote_for_block_proposal steps.
func (w *Worker) HandleProposal(chain chainid.ID, proposal Proposal, localTime int64) (ChainInfo, NetworkActions, *ProposalVote, error) {
	var info ChainInfo
	var actions NetworkActions
	var vote *ProposalVote

	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		height := proposal.Block.Header.Height
		if height > 0 && !sc.state.IsActive() {
			return newErr(InactiveChain, "chain is not yet initialized")
		}

		epoch := proposal.Block.Header.Epoch
		comm, ok := sc.state.Committees[epoch]
		if !ok {
			return newErr(InvalidEpoch, "no known committee for proposal's epoch")
		}

		if err := w.loadProposalBlobs(sc, &proposal); err != nil {
			info = chainInfoFrom(sc.state)
			if saveErr := sc.save(); saveErr != nil {
				return saveErr
			}
			return err
		}

		policy := comm.Policy()
		if len(proposal.Block.RequiredBlobIDs()) > policy.MaxBlobsPerBlock {
			return &Error{Kind: TooManyPublishedBlobs, Limit: policy.MaxBlobsPerBlock}
		}
		if len(proposal.CreatedBlobs) > policy.MaximumPublishedBlobs {
			return &Error{Kind: TooManyPublishedBlobs, Limit: policy.MaximumPublishedBlobs}
		}
		for _, b := range proposal.CreatedBlobs {
			if err := policy.CheckBlobSize(b.Content); err != nil {
				return &Error{Kind: BlobTooLarge, Detail: err.Error()}
			}
		}

		state := newExecState(chain, w.view)
		publishedIDs := make([]string, 0, len(proposal.CreatedBlobs))
		for id := range proposal.CreatedBlobs {
			publishedIDs = append(publishedIDs, string(id))
		}
		outcome, err := w.executor.ExecuteBlock(proposal.Block, localTime, publishedIDs, proposal.Block.Body.OracleResponses, state)
		if err != nil {
			return &Error{Kind: IncorrectOutcome, Detail: err.Error()}
		}
		root, err := w.view.ComputeRoot([][]byte{execPrefix(chain)})
		if err != nil {
			return wrapStorage(err)
		}
		outcome.StateHash = root

		payload := []byte(proposal.Block.Header.ComputeHash() + outcome.StateHash)
		priv := w.privateKey()
		sig, ok := sc.state.Manager.CreateVote(proposal.Round, &priv, payload)
		if !ok {
			// Already voted for this height/round (I3): return the current
			// state with no new vote, rather than failing the request.
			info = chainInfoFrom(sc.state)
			return nil
		}

		votedBlock := proposal.Block.WithOutcome(outcome)
		w.values.Insert(proposal.Block.Header.ComputeHash()+outcome.StateHash, votedBlock)

		vote = &ProposalVote{
			ChainID: chain,
			Height:  height,
			Round:   proposal.Round,
			Outcome: outcome,
			Sig:     sig,
		}
		info = chainInfoFrom(sc.state)
		return sc.save()
	})
	return info, actions, vote, err
}

// loadProposalBlobs resolves proposal's required blobs against its
// CreatedBlobs and durable storage, recording any still-missing ids in
// sc.state's per-owner pending set and returning BlobsNotFound if any
// remain unresolved — ported from the original's load_proposal_blobs.
func (w *Worker) loadProposalBlobs(sc *scope, proposal *Proposal) error {
	required := proposal.Block.RequiredBlobIDs()
	maybeBlobs, err := w.resolver.MaybeGetRequired(required, proposal.CreatedBlobs)
	if err != nil {
		return wrapStorage(err)
	}
	missing := blobresolver.Missing(required, maybeBlobs)
	if len(missing) == 0 {
		delete(sc.state.PendingProposedBlobs, proposal.Owner)
		return nil
	}
	ps, ok := sc.state.PendingProposedBlobs[proposal.Owner]
	if !ok {
		ps = blob.NewPendingSet(proposal.Round, false)
		sc.state.PendingProposedBlobs[proposal.Owner] = ps
	}
	ps.Update(proposal.Round, false, maybeBlobs)
	return blobsNotFound(missing)
}
