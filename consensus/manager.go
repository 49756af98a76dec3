// Package consensus implements the per-chain round-based voting state
// machine, adapted from the teacher's Proof-of-Authority engine
// (tolelom-tolchain/consensus/poa.go): round-robin proposer selection and
// signed-block production there becomes round/phase tracking and BFT vote
// creation here, but the shape — a small struct holding the validator's
// key pair plus chain-local round state, methods that mutate it and return
// what to persist — carries over directly.
package consensus

import (
	"fmt"

	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
	"github.com/tolelom/multichain/crypto"
)

// Phase is one state in the per-(height) voting state machine (spec.md
// §4.10).
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseProposed
	PhaseValidated
	PhaseCommitted
)

// Outcome reports what CheckValidatedBlock decided to do with a certificate
// that arrived for a height/round the manager has already seen.
type Outcome int

const (
	OutcomeProcess Outcome = iota
	OutcomeSkip
)

// Vote is a single signature over a certificate-in-progress, to be
// gathered into a Certificate once quorum weight is reached.
type Vote struct {
	Kind      block.CertKind
	Round     uint64
	PublicKey crypto.PublicKey
	Sig       committee.Signature
}

// Manager tracks one chain's current round and phase and produces this
// validator's votes, pure in-memory state whose effects the worker
// persists (spec.md §2 "ConsensusManager").
type Manager struct {
	Round           uint64
	Phase           Phase
	Height          chainid.Height
	lastVotedRound  uint64
	hasVotedInRound bool
}

// New creates a Manager starting at round 0, Open phase, for height.
func New(height chainid.Height) *Manager {
	return &Manager{Height: height, Phase: PhaseOpen}
}

// HandleTimeoutCertificate advances the round if cert's round is >= the
// current round, the "newer round always wins" tie-break (spec.md §4.10).
// localTime is accepted for parity with the original signature even though
// this round-advance does not itself consult the clock.
func (m *Manager) HandleTimeoutCertificate(cert block.Certificate, localTime int64) {
	if cert.Round >= m.Round {
		m.Round = cert.Round + 1
		m.Phase = PhaseOpen
		m.hasVotedInRound = false
	}
}

// CreateVote produces this validator's vote for a block proposal at the
// manager's current round, transitioning Open(r) -> Proposed(r). Returns
// false if a vote for this (height, round) was already cast (I3).
func (m *Manager) CreateVote(round uint64, keys *crypto.PrivateKey, payload []byte) (committee.Signature, bool) {
	if m.Phase != PhaseOpen || round != m.Round || (m.hasVotedInRound && round == m.lastVotedRound) {
		return committee.Signature{}, false
	}
	sig := crypto.Sign(*keys, payload)
	m.Phase = PhaseProposed
	m.lastVotedRound = round
	m.hasVotedInRound = true
	return committee.Signature{PublicKey: keys.Public(), Sig: sig}, true
}

// CheckValidatedBlock reports whether a ValidatedBlockCertificate for
// cert's round should be processed or skipped because the manager has
// already moved past it (spec.md §4.10 "Skip when the state's already past
// that certificate").
func (m *Manager) CheckValidatedBlock(cert block.Certificate) Outcome {
	if m.Phase == PhaseCommitted || m.Phase == PhaseValidated {
		return OutcomeSkip
	}
	if cert.Round < m.Round {
		return OutcomeSkip
	}
	return OutcomeProcess
}

// CreateFinalVote produces this validator's vote for a confirmed-block
// certificate, transitioning Proposed(r) -> Validated(r).
func (m *Manager) CreateFinalVote(cert block.Certificate, keys *crypto.PrivateKey, payload []byte) (committee.Signature, error) {
	if cert.Round < m.Round {
		return committee.Signature{}, fmt.Errorf("consensus: stale round %d, current round is %d", cert.Round, m.Round)
	}
	m.Round = cert.Round
	m.Phase = PhaseValidated
	sig := crypto.Sign(*keys, payload)
	return committee.Signature{PublicKey: keys.Public(), Sig: sig}, nil
}

// Commit completes height and resets to Open(0) for the next height, per
// spec.md §4.10's "height advances; reset to Open(0) at next height".
func (m *Manager) Commit(height chainid.Height) {
	m.Phase = PhaseOpen
	m.Height = height + 1
	m.Round = 0
	m.hasVotedInRound = false
}

// CurrentRound returns the manager's current round.
func (m *Manager) CurrentRound() uint64 { return m.Round }
