// Package committee models the validator set that signs certificates for a
// given epoch, and the resource policy it enforces on blocks and blobs.
package committee

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/crypto"
)

// Policy bounds the resources a block or blob may consume, enforced by the
// committee that signs the certificates for its epoch.
type Policy struct {
	MaxBlobSize           int `json:"max_blob_size"`
	MaxBlobsPerBlock      int `json:"max_blobs_per_block"`
	MaximumPublishedBlobs int `json:"maximum_published_blobs"`
}

// DefaultPolicy returns conservative limits suitable for tests and local
// development chains.
func DefaultPolicy() Policy {
	return Policy{
		MaxBlobSize:           2 << 20, // 2 MiB
		MaxBlobsPerBlock:      64,
		MaximumPublishedBlobs: 64,
	}
}

// CheckBlobSize returns an error if content exceeds the policy's blob size
// limit.
func (p Policy) CheckBlobSize(content []byte) error {
	if p.MaxBlobSize > 0 && len(content) > p.MaxBlobSize {
		return fmt.Errorf("blob too large: %d bytes exceeds policy limit %d", len(content), p.MaxBlobSize)
	}
	return nil
}

// Validator is one committee member: its public key and voting weight.
type Validator struct {
	PublicKey crypto.PublicKey `json:"public_key"`
	Weight    uint64           `json:"weight"`
}

// Committee is the set of validators (with weights) authorized to sign
// certificates for one epoch, plus the resource policy they enforce.
type Committee struct {
	Epoch      chainid.Epoch `json:"epoch"`
	Validators []Validator   `json:"validators"`
	policy     Policy
}

// New creates a Committee for epoch with the given validators and policy.
func New(epoch chainid.Epoch, validators []Validator, policy Policy) Committee {
	return Committee{Epoch: epoch, Validators: validators, policy: policy}
}

// Policy returns the committee's resource policy.
func (c Committee) Policy() Policy { return c.policy }

// committeeWire is Committee's wire/storage shape: policy is otherwise
// unexported (deliberately — it is set once via New, not mutated field by
// field), so MarshalJSON/UnmarshalJSON round-trip it explicitly instead of
// silently dropping it the way the default json.Marshal would.
type committeeWire struct {
	Epoch      chainid.Epoch `json:"epoch"`
	Validators []Validator   `json:"validators"`
	Policy     Policy        `json:"policy"`
}

func (c Committee) MarshalJSON() ([]byte, error) {
	return json.Marshal(committeeWire{Epoch: c.Epoch, Validators: c.Validators, Policy: c.policy})
}

func (c *Committee) UnmarshalJSON(data []byte) error {
	var w committeeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Epoch = w.Epoch
	c.Validators = w.Validators
	c.policy = w.Policy
	return nil
}

// TotalWeight returns the sum of all validator weights.
func (c Committee) TotalWeight() uint64 {
	var total uint64
	for _, v := range c.Validators {
		total += v.Weight
	}
	return total
}

// weightOf returns the voting weight of pub, or 0 if pub is not a member.
func (c Committee) weightOf(pub crypto.PublicKey) uint64 {
	for _, v := range c.Validators {
		if string(v.PublicKey) == string(pub) {
			return v.Weight
		}
	}
	return 0
}

// Signature pairs a committee member's public key with its signature over
// some signed payload.
type Signature struct {
	PublicKey crypto.PublicKey
	Sig       string // hex-encoded, see crypto.Sign/Verify
}

// VerifyQuorum checks that sigs are valid signatures over payload from
// distinct committee members whose combined weight strictly exceeds two
// thirds of the committee's total weight — the standard BFT quorum bound
// tolerating up to f Byzantine validators out of 3f+1.
func (c Committee) VerifyQuorum(payload []byte, sigs []Signature) error {
	seen := make(map[string]bool, len(sigs))
	var weight uint64
	for _, sig := range sigs {
		key := string(sig.PublicKey)
		if seen[key] {
			continue // duplicate signer, do not double count
		}
		w := c.weightOf(sig.PublicKey)
		if w == 0 {
			return fmt.Errorf("invalid committee: signer %x is not a member of epoch %d", sig.PublicKey, c.Epoch)
		}
		if err := crypto.Verify(sig.PublicKey, payload, sig.Sig); err != nil {
			return fmt.Errorf("invalid signature from %x: %w", sig.PublicKey, err)
		}
		seen[key] = true
		weight += w
	}
	total := c.TotalWeight()
	if total == 0 || 3*weight <= 2*total {
		return fmt.Errorf("insufficient quorum: %d/%d weight signed", weight, total)
	}
	return nil
}
