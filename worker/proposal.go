package worker

import (
	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
)

// Proposal is a client's request that this validator vote for a block at
// the chain's current height/round (spec.md §4.3), together with any
// blobs the client is publishing alongside it.
type Proposal struct {
	Owner        string // proposer's public key, hex-encoded
	Block        block.Block
	Round        uint64
	CreatedBlobs map[chainid.BlobID]blob.Blob
}

// ProposalVote is this validator's signed vote over a proposal it has
// accepted, ready to be gathered into a ValidatedBlockCertificate once
// quorum weight is reached.
type ProposalVote struct {
	ChainID chainid.ID
	Height  chainid.Height
	Round   uint64
	Outcome block.ExecutionOutcome
	Sig     committee.Signature
}
