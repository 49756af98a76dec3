package worker

import (
	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
	"github.com/tolelom/multichain/crypto"
)

// HandlePendingBlob matches an uploaded blob against the chain's
// outstanding pending sets — first the validated-block vote, then each
// in-flight proposal — enforcing the active committee's resource policy
// for proposal pending sets (spec.md §4.8).
func (w *Worker) HandlePendingBlob(chain chainid.ID, b blob.Blob) (ChainInfo, error) {
	var info ChainInfo
	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		accepted := sc.state.PendingValidatedBlobs.MaybeInsert(b)
		if !accepted {
			var policy *committee.Policy
			if _, comm, ok := sc.state.CurrentCommittee(); ok {
				p := comm.Policy()
				policy = &p
			}
			for _, ps := range sc.state.PendingProposedBlobs {
				if policy != nil {
					if err := policy.CheckBlobSize(b.Content); err != nil {
						return &Error{Kind: BlobTooLarge, Detail: err.Error()}
					}
					if ps.Count()+1 > policy.MaximumPublishedBlobs {
						return &Error{Kind: TooManyPublishedBlobs, Limit: policy.MaximumPublishedBlobs}
					}
				}
				if ps.MaybeInsert(b) {
					accepted = true
					break
				}
			}
		}
		if !accepted {
			return newErr(UnexpectedBlob, "no pending proposal or validated block is waiting on this blob")
		}
		info = chainInfoFrom(sc.state)
		return sc.save()
	})
	return info, err
}

// LeaderTimeoutVote is this validator's own signed claim that round has
// timed out, to be gathered into a TimeoutCertificate once quorum weight
// is reached.
type LeaderTimeoutVote struct {
	Value block.TimeoutValue
	Sig   committee.Signature
}

// VoteForLeaderTimeout signs a TimeoutValue for chain's current height and
// the given round, the vote a validator casts proactively when it
// suspects the elected proposer is unresponsive.
func (w *Worker) VoteForLeaderTimeout(chain chainid.ID, round uint64) (ChainInfo, *LeaderTimeoutVote, error) {
	var info ChainInfo
	var vote *LeaderTimeoutVote
	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		if !sc.state.IsActive() {
			return newErr(InactiveChain, "chain is not yet initialized")
		}
		value := block.TimeoutValue{
			ChainID: chain,
			Height:  sc.state.Tip.NextBlockHeight,
			Epoch:   sc.state.Epoch,
			Round:   round,
		}
		priv := w.privateKey()
		sig := crypto.Sign(priv, []byte(value.Hash()))
		vote = &LeaderTimeoutVote{
			Value: value,
			Sig:   committee.Signature{PublicKey: priv.Public(), Sig: sig},
		}
		info = chainInfoFrom(sc.state)
		return nil
	})
	return info, vote, err
}

// VoteForFallback is the same timeout vote cast for the chain's current
// round, used on chains without a distinguished leader where any
// validator may trigger a fallback round once it stalls.
func (w *Worker) VoteForFallback(chain chainid.ID) (ChainInfo, *LeaderTimeoutVote, error) {
	state, err := chainInfoAndRound(w, chain)
	if err != nil {
		return ChainInfo{}, nil, err
	}
	return w.VoteForLeaderTimeout(chain, state)
}

func chainInfoAndRound(w *Worker, chain chainid.ID) (uint64, error) {
	info, err := w.GetChainInfo(chain)
	if err != nil {
		return 0, err
	}
	return info.ManagerRound, nil
}
