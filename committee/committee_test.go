package committee

import (
	"encoding/json"
	"testing"

	"github.com/tolelom/multichain/crypto"
)

func twoValidators(t *testing.T) ([]Validator, []crypto.PrivateKey) {
	t.Helper()
	var vs []Validator
	var privs []crypto.PrivateKey
	for i := 0; i < 2; i++ {
		priv, pub, err := crypto.GenerateKeyPair()
		if err != nil {
			t.Fatalf("GenerateKeyPair: %v", err)
		}
		vs = append(vs, Validator{PublicKey: pub, Weight: 1})
		privs = append(privs, priv)
	}
	return vs, privs
}

func TestVerifyQuorumRequiresSuperMajorityWeight(t *testing.T) {
	validators, privs := twoValidators(t)
	c := New(0, validators, DefaultPolicy())
	payload := []byte("block-payload")

	sig := crypto.Sign(privs[0], payload)
	err := c.VerifyQuorum(payload, []Signature{{PublicKey: validators[0].PublicKey, Sig: sig}})
	if err == nil {
		t.Fatalf("expected insufficient quorum with only 1/2 weight")
	}

	sig2 := crypto.Sign(privs[1], payload)
	err = c.VerifyQuorum(payload, []Signature{
		{PublicKey: validators[0].PublicKey, Sig: sig},
		{PublicKey: validators[1].PublicKey, Sig: sig2},
	})
	if err != nil {
		t.Fatalf("expected quorum with 2/2 weight, got %v", err)
	}
}

func TestVerifyQuorumRejectsNonMember(t *testing.T) {
	validators, _ := twoValidators(t)
	c := New(0, validators, DefaultPolicy())
	outsiderPriv, outsiderPub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	payload := []byte("block-payload")
	sig := crypto.Sign(outsiderPriv, payload)
	if err := c.VerifyQuorum(payload, []Signature{{PublicKey: outsiderPub, Sig: sig}}); err == nil {
		t.Fatalf("expected error for a non-member signer")
	}
}

func TestVerifyQuorumRejectsInvalidSignature(t *testing.T) {
	validators, _ := twoValidators(t)
	c := New(0, validators, DefaultPolicy())
	if err := c.VerifyQuorum([]byte("payload"), []Signature{{PublicKey: validators[0].PublicKey, Sig: "not-a-real-signature"}}); err == nil {
		t.Fatalf("expected error for an invalid signature")
	}
}

func TestVerifyQuorumDoesNotDoubleCountDuplicateSigners(t *testing.T) {
	validators, privs := twoValidators(t)
	c := New(0, validators, DefaultPolicy())
	payload := []byte("payload")
	sig := crypto.Sign(privs[0], payload)
	err := c.VerifyQuorum(payload, []Signature{
		{PublicKey: validators[0].PublicKey, Sig: sig},
		{PublicKey: validators[0].PublicKey, Sig: sig},
	})
	if err == nil {
		t.Fatalf("expected insufficient quorum: duplicate signer should count once")
	}
}

func TestCommitteeJSONRoundTripPreservesPolicy(t *testing.T) {
	validators, _ := twoValidators(t)
	policy := Policy{MaxBlobSize: 123, MaxBlobsPerBlock: 4, MaximumPublishedBlobs: 5}
	c := New(7, validators, policy)

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back Committee
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Epoch != c.Epoch {
		t.Fatalf("epoch mismatch: %d != %d", back.Epoch, c.Epoch)
	}
	if back.Policy() != policy {
		t.Fatalf("policy dropped across JSON round trip: got %+v, want %+v", back.Policy(), policy)
	}
	if len(back.Validators) != len(validators) {
		t.Fatalf("validators dropped across JSON round trip: got %d, want %d", len(back.Validators), len(validators))
	}
}

func TestCheckBlobSize(t *testing.T) {
	p := Policy{MaxBlobSize: 4}
	if err := p.CheckBlobSize([]byte("ab")); err != nil {
		t.Fatalf("expected small blob to pass, got %v", err)
	}
	if err := p.CheckBlobSize([]byte("abcdef")); err == nil {
		t.Fatalf("expected oversized blob to fail")
	}
}
