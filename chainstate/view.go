// Package chainstate defines ChainStateView, the persistent per-chain
// state a ChainWorker mutates and saves: tip, inboxes/outboxes, known
// committees, the consensus manager's round state, and the pending-blob
// sets for in-flight proposals and validations. Adapted from the teacher's
// Blockchain type (tolelom-tolchain/core/blockchain.go): same
// load-from-store/mutate-in-memory/commit-to-store shape, generalized from
// a single global chain of blocks to one sub-view per logical piece of a
// single chain's state.
package chainstate

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
	"github.com/tolelom/multichain/consensus"
	"github.com/tolelom/multichain/storage"
)

// Tip is the chain's current write position.
type Tip struct {
	NextBlockHeight chainid.Height `json:"next_block_height"`
	BlockHash       string         `json:"block_hash"`
}

// InboxEntry tracks what a chain has received from one origin chain.
type InboxEntry struct {
	NextHeightToReceive    chainid.Height  `json:"next_height_to_receive"`
	LastAnticipatedHeight  *chainid.Height `json:"last_anticipated_height,omitempty"`
}

// OutboxEntry tracks delivery progress of messages sent to one recipient
// chain.
type OutboxEntry struct {
	DeliveredUpTo chainid.Height `json:"delivered_up_to"`
	HighestSent   chainid.Height `json:"highest_sent"`
}

// ChainStateView is the full, loadable/saveable state of one chain.
type ChainStateView struct {
	ChainID chainid.ID

	Tip    Tip
	Active bool

	Epoch      chainid.Epoch
	Committees map[chainid.Epoch]committee.Committee

	Manager *consensus.Manager

	PendingValidatedBlobs *blob.PendingSet
	PendingProposedBlobs  map[string]*blob.PendingSet // owner -> pending set

	Inboxes  map[chainid.ID]*InboxEntry
	Outboxes map[chainid.ID]*OutboxEntry

	ReceivedCertificateTrackers map[string]uint64 // validator pubkey hex -> tracker

	view *storage.ViewStore
}

// persisted is the JSON-serializable snapshot of ChainStateView, stored as
// a single value under the chain's prefix — simple and sufficient at the
// scale a single chain's state reaches, the same call the teacher makes by
// storing each core.Block as one JSON blob rather than field-by-field.
type persisted struct {
	Tip                         Tip                                   `json:"tip"`
	Active                      bool                                  `json:"active"`
	Epoch                       chainid.Epoch                         `json:"epoch"`
	Committees                  map[chainid.Epoch]committee.Committee `json:"committees"`
	ManagerRound                uint64                                `json:"manager_round"`
	ManagerPhase                consensus.Phase                       `json:"manager_phase"`
	Inboxes                     map[chainid.ID]*InboxEntry             `json:"inboxes"`
	Outboxes                    map[chainid.ID]*OutboxEntry            `json:"outboxes"`
	ReceivedCertificateTrackers map[string]uint64                      `json:"received_certificate_trackers"`
}

func stateKey(chain chainid.ID) []byte {
	return append(storage.ChainPrefix(chain), []byte("state")...)
}

// New creates a fresh, inactive ChainStateView for chain, backed by view.
func New(chain chainid.ID, view *storage.ViewStore) *ChainStateView {
	return &ChainStateView{
		ChainID:               chain,
		Manager:               consensus.New(0),
		PendingValidatedBlobs: blob.NewPendingSet(0, true),
		PendingProposedBlobs:  make(map[string]*blob.PendingSet),
		Committees:            make(map[chainid.Epoch]committee.Committee),
		Inboxes:               make(map[chainid.ID]*InboxEntry),
		Outboxes:              make(map[chainid.ID]*OutboxEntry),
		ReceivedCertificateTrackers: make(map[string]uint64),
		view: view,
	}
}

// Load populates a ChainStateView for chain from view, returning a fresh,
// inactive view if nothing has been persisted yet (spec.md "Lifecycles:
// ChainState is created when the chain's first block... is processed").
func Load(chain chainid.ID, view *storage.ViewStore) (*ChainStateView, error) {
	data, err := view.Get(stateKey(chain))
	if err == storage.ErrNotFound {
		return New(chain, view), nil
	}
	if err != nil {
		return nil, fmt.Errorf("chainstate: load %s: %w", chain, err)
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("chainstate: decode %s: %w", chain, err)
	}
	v := New(chain, view)
	v.Tip = p.Tip
	v.Active = p.Active
	v.Epoch = p.Epoch
	if p.Committees != nil {
		v.Committees = p.Committees
	}
	v.Manager.Round = p.ManagerRound
	v.Manager.Phase = p.ManagerPhase
	v.Manager.Height = p.Tip.NextBlockHeight
	if p.Inboxes != nil {
		v.Inboxes = p.Inboxes
	}
	if p.Outboxes != nil {
		v.Outboxes = p.Outboxes
	}
	if p.ReceivedCertificateTrackers != nil {
		v.ReceivedCertificateTrackers = p.ReceivedCertificateTrackers
	}
	return v, nil
}

// Save stages the view's current contents into the underlying ViewStore's
// write buffer. It does not flush to durable storage — that is the
// transactional scope's job (package worker), matching I5.
func (v *ChainStateView) Save() error {
	p := persisted{
		Tip:                         v.Tip,
		Active:                      v.Active,
		Epoch:                       v.Epoch,
		Committees:                  v.Committees,
		ManagerRound:                v.Manager.Round,
		ManagerPhase:                v.Manager.Phase,
		Inboxes:                     v.Inboxes,
		Outboxes:                    v.Outboxes,
		ReceivedCertificateTrackers: v.ReceivedCertificateTrackers,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("chainstate: encode %s: %w", v.ChainID, err)
	}
	v.view.Put(stateKey(v.ChainID), data)
	return nil
}

// IsActive reports whether the chain has been initialized (I1's "created
// when the chain's first block is processed").
func (v *ChainStateView) IsActive() bool { return v.Active }

// CurrentCommittee returns the committee active for the chain's current
// epoch.
func (v *ChainStateView) CurrentCommittee() (chainid.Epoch, committee.Committee, bool) {
	c, ok := v.Committees[v.Epoch]
	return v.Epoch, c, ok
}

// AlreadyValidatedBlock reports whether the chain has already advanced
// past height (spec.md §4.2 step 4).
func (v *ChainStateView) AlreadyValidatedBlock(height chainid.Height) bool {
	return v.Tip.NextBlockHeight > height
}

// NextHeightToReceive returns the next height this chain expects to
// receive from origin.
func (v *ChainStateView) NextHeightToReceive(origin chainid.ID) chainid.Height {
	if e, ok := v.Inboxes[origin]; ok {
		return e.NextHeightToReceive
	}
	return 0
}

// LastAnticipatedBlockHeight returns the highest height from origin this
// chain has already executed by anticipation, if any.
func (v *ChainStateView) LastAnticipatedBlockHeight(origin chainid.ID) *chainid.Height {
	if e, ok := v.Inboxes[origin]; ok {
		return e.LastAnticipatedHeight
	}
	return nil
}

// ReceiveMessageBundle advances origin's inbox receive cursor past height.
// Only the cursor is recorded; the bundle's messages are not stored.
func (v *ChainStateView) ReceiveMessageBundle(origin chainid.ID, height chainid.Height) {
	e, ok := v.Inboxes[origin]
	if !ok {
		e = &InboxEntry{}
		v.Inboxes[origin] = e
	}
	if height >= e.NextHeightToReceive {
		e.NextHeightToReceive = height + 1
	}
}

// MarkMessagesAsReceived marks recipient's outbox as delivered through
// latestHeight, returning whether every message sent to recipient so far
// is now delivered.
func (v *ChainStateView) MarkMessagesAsReceived(recipient chainid.ID, latestHeight chainid.Height) bool {
	e, ok := v.Outboxes[recipient]
	if !ok {
		e = &OutboxEntry{}
		v.Outboxes[recipient] = e
	}
	if latestHeight > e.DeliveredUpTo {
		e.DeliveredUpTo = latestHeight
	}
	return e.DeliveredUpTo >= e.HighestSent
}

// AllMessagesDeliveredUpTo reports whether every tracked recipient chain
// has received all messages sent to it through height.
func (v *ChainStateView) AllMessagesDeliveredUpTo(height chainid.Height) bool {
	for _, e := range v.Outboxes {
		if e.HighestSent <= height && e.DeliveredUpTo < e.HighestSent {
			return false
		}
	}
	return true
}

// RecordOutgoing notes that a message batch destined for recipient at
// height has been produced, so delivery tracking has something to track.
func (v *ChainStateView) RecordOutgoing(recipient chainid.ID, height chainid.Height) {
	e, ok := v.Outboxes[recipient]
	if !ok {
		e = &OutboxEntry{}
		v.Outboxes[recipient] = e
	}
	if height > e.HighestSent {
		e.HighestSent = height
	}
}

// HasOutgoingRequestAtOrBelow reports whether any recipient has an
// undelivered outgoing message at height <= h — used by the delivery
// notifier registration fast path (spec.md §4.9).
func (v *ChainStateView) HasOutgoingRequestAtOrBelow(h chainid.Height) bool {
	for _, e := range v.Outboxes {
		if e.HighestSent <= h && e.DeliveredUpTo < e.HighestSent {
			return true
		}
	}
	return false
}
