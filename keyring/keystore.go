// Package keyring provides encrypted storage for a validator's signing
// key, adapted from the teacher's wallet package
// (tolelom-tolchain/wallet/keystore.go): same AES-GCM-over-PBKDF2 envelope,
// generalized from a user wallet file to a validator's identity keystore.
package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"os"

	"golang.org/x/crypto/pbkdf2"

	"github.com/tolelom/multichain/crypto"
)

type keystoreFile struct {
	PubKey     string `json:"pub_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// pbkdf2Iterations follows the teacher's choice, high enough to resist
// offline brute force without making validator startup noticeably slow.
const pbkdf2Iterations = 210_000

// Keystore holds a validator's decrypted signing key in memory once
// unlocked.
type Keystore struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// Save encrypts priv with password and writes it to path.
func Save(path, password string, priv crypto.PrivateKey) error {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return err
	}
	key := deriveKey(password, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return err
	}
	cipherText := gcm.Seal(nil, nonce, priv, nil)

	ks := keystoreFile{
		PubKey:     priv.Public().Hex(),
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// Load decrypts the keystore at path using password and returns it ready
// for signing.
func Load(path, password string) (*Keystore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, err
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return nil, err
	}

	key := deriveKey(password, salt)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	privBytes, err := gcm.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return nil, errors.New("keyring: wrong password or corrupted keystore")
	}
	priv := crypto.PrivateKey(privBytes)
	return &Keystore{priv: priv, pub: priv.Public()}, nil
}

// PublicKey returns the validator's public key.
func (k *Keystore) PublicKey() crypto.PublicKey { return k.pub }

// PrivateKey returns the raw decrypted signing key (handle with care).
func (k *Keystore) PrivateKey() crypto.PrivateKey { return k.priv }

// Sign signs payload with the validator's private key.
func (k *Keystore) Sign(payload []byte) string {
	return crypto.Sign(k.priv, payload)
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, 32, sha256.New)
}
