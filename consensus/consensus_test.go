package consensus

import (
	"testing"

	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/crypto"
)

func TestCreateVoteTransitionsOpenToProposed(t *testing.T) {
	m := New(0)
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sig, ok := m.CreateVote(0, &priv, []byte("payload"))
	if !ok {
		t.Fatalf("expected first vote at round 0 to succeed")
	}
	if sig.PublicKey.Hex() != pub.Hex() {
		t.Fatalf("vote signed with wrong key")
	}
	if m.Phase != PhaseProposed {
		t.Fatalf("expected phase Proposed, got %v", m.Phase)
	}
}

func TestCreateVoteRejectsDoubleVoteSameRound(t *testing.T) {
	m := New(0)
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	if _, ok := m.CreateVote(0, &priv, []byte("payload")); !ok {
		t.Fatalf("expected first vote to succeed")
	}
	// Manually reopen the phase the way HandleTimeoutCertificate resets it,
	// but keep the same round — the manager must still refuse a repeat
	// vote for a round it already voted in (I3).
	m.Phase = PhaseOpen
	if _, ok := m.CreateVote(0, &priv, []byte("payload")); ok {
		t.Fatalf("expected a second vote in the same round to be rejected")
	}
}

func TestHandleTimeoutCertificateAdvancesRound(t *testing.T) {
	m := New(0)
	cert := block.Certificate{Kind: block.CertTimeout, Round: 3, Timeout: &block.TimeoutValue{Round: 3}}
	m.HandleTimeoutCertificate(cert, 0)
	if m.Round != 4 {
		t.Fatalf("expected round to advance to 4, got %d", m.Round)
	}
	if m.Phase != PhaseOpen {
		t.Fatalf("expected phase to reset to Open, got %v", m.Phase)
	}
}

func TestHandleTimeoutCertificateIgnoresStaleRound(t *testing.T) {
	m := New(0)
	m.Round = 5
	m.Phase = PhaseProposed
	cert := block.Certificate{Kind: block.CertTimeout, Round: 1, Timeout: &block.TimeoutValue{Round: 1}}
	m.HandleTimeoutCertificate(cert, 0)
	if m.Round != 5 || m.Phase != PhaseProposed {
		t.Fatalf("expected a stale-round timeout certificate to be ignored, got round=%d phase=%v", m.Round, m.Phase)
	}
}

func TestCheckValidatedBlockSkipsPastRounds(t *testing.T) {
	m := New(0)
	m.Round = 5
	cert := block.Certificate{Round: 2}
	if m.CheckValidatedBlock(cert) != OutcomeSkip {
		t.Fatalf("expected a certificate from an earlier round to be skipped")
	}
}

func TestCheckValidatedBlockSkipsAlreadyCommitted(t *testing.T) {
	m := New(0)
	m.Phase = PhaseCommitted
	cert := block.Certificate{Round: 0}
	if m.CheckValidatedBlock(cert) != OutcomeSkip {
		t.Fatalf("expected a committed manager to skip any validated certificate")
	}
}

func TestCheckValidatedBlockProcessesCurrentRound(t *testing.T) {
	m := New(0)
	cert := block.Certificate{Round: 0}
	if m.CheckValidatedBlock(cert) != OutcomeProcess {
		t.Fatalf("expected a current-round certificate to be processed")
	}
}

func TestCreateFinalVoteRejectsStaleRound(t *testing.T) {
	m := New(0)
	m.Round = 5
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	cert := block.Certificate{Round: 1}
	if _, err := m.CreateFinalVote(cert, &priv, []byte("payload")); err == nil {
		t.Fatalf("expected a stale-round final vote to fail")
	}
}

func TestCommitResetsForNextHeight(t *testing.T) {
	m := New(0)
	m.Round = 3
	m.Phase = PhaseValidated
	m.Commit(10)
	if m.Phase != PhaseOpen {
		t.Fatalf("expected phase to reset to Open for the next height, got %v", m.Phase)
	}
	if m.Height != 11 {
		t.Fatalf("expected height to advance to 11, got %d", m.Height)
	}
	if m.Round != 0 {
		t.Fatalf("expected round to reset to 0, got %d", m.Round)
	}
}
