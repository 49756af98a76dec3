package keyring

import (
	"path/filepath"
	"testing"

	"github.com/tolelom/multichain/crypto"
)

func TestSaveThenLoadRoundTrip(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	path := filepath.Join(t.TempDir(), "validator.key")
	if err := Save(path, "correct horse battery staple", priv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	ks, err := Load(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ks.PublicKey().Hex() != pub.Hex() {
		t.Fatalf("public key mismatch after round trip")
	}
	if ks.PrivateKey().Hex() != priv.Hex() {
		t.Fatalf("private key mismatch after round trip")
	}
}

func TestLoadRejectsWrongPassword(t *testing.T) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	path := filepath.Join(t.TempDir(), "validator.key")
	if err := Save(path, "correct-password", priv); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := Load(path, "wrong-password"); err == nil {
		t.Fatalf("expected an error loading with the wrong password")
	}
}

func TestSignProducesVerifiableSignature(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	path := filepath.Join(t.TempDir(), "validator.key")
	if err := Save(path, "pw", priv); err != nil {
		t.Fatalf("Save: %v", err)
	}
	ks, err := Load(path, "pw")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	payload := []byte("vote payload")
	sig := ks.Sign(payload)
	if err := crypto.Verify(pub, payload, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}
