package worker

import "github.com/tolelom/multichain/chainid"

// Reason labels why a Notification was raised.
type Reason int

const (
	ReasonNewBlock Reason = iota
	ReasonNewRound
	ReasonNewIncomingBundle
)

// Notification tells subscribers that something changed on a chain,
// without carrying the changed data itself — the recipient is expected to
// call GetChainInfo if it needs details.
type Notification struct {
	ChainID chainid.ID
	Reason  Reason
	Height  chainid.Height
	Round   uint64
	Hash    string
}

// CrossChainRequest is an outbound request to deliver message bundles to
// another chain's worker.
type CrossChainRequest struct {
	Recipient     chainid.ID
	Origin        chainid.ID
	HighestHeight chainid.Height
}

// HasMessagesLowerOrEqualThan reports whether every message this request
// carries is at or below height, i.e. whether its highest height is.
func (r CrossChainRequest) HasMessagesLowerOrEqualThan(height chainid.Height) bool {
	return r.HighestHeight <= height
}

// NetworkActions carries the side effects a request handler produced that
// must be broadcast to the rest of the network: outbound cross-chain
// requests and notifications.
type NetworkActions struct {
	CrossChainRequests []CrossChainRequest
	Notifications      []Notification
}

// ChainInfo is the read-only snapshot of a chain's state returned to
// callers alongside NetworkActions.
type ChainInfo struct {
	ChainID         chainid.ID
	NextBlockHeight chainid.Height
	BlockHash       string
	Epoch           chainid.Epoch
	ManagerRound    uint64
}
