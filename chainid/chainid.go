// Package chainid defines the opaque identifiers shared by every other
// package in the module: chain identity, block height, committee epoch and
// blob content hash.
package chainid

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ID is an opaque 32-byte chain identifier, hex-encoded for storage keys
// and wire messages.
type ID [32]byte

// IDFromHex decodes a 64-char hex string into an ID.
func IDFromHex(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid chain id hex: %w", err)
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("chain id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

// Hex returns the lowercase hex encoding of id.
func (id ID) Hex() string { return hex.EncodeToString(id[:]) }

// String implements fmt.Stringer, truncated the way the teacher logs
// chain/block hashes (first 8 hex chars) to keep log lines short.
func (id ID) String() string {
	h := id.Hex()
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

// MarshalJSON encodes id as its hex string, so it reads naturally in wire
// messages and storage records instead of as a raw byte array.
func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Hex())
}

// UnmarshalJSON decodes id from a hex string.
func (id *ID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := IDFromHex(s)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// MarshalText implements encoding.TextMarshaler so ID can be used as a
// JSON object key (e.g. map[chainid.ID]...).
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	v, err := IDFromHex(string(text))
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Height is a monotone, non-negative block height local to one chain.
type Height uint64

// Epoch is a monotone, non-negative committee generation number.
type Epoch uint64

// BlobID is the content hash of an immutable blob payload.
type BlobID string

// HashBlobID returns the content-addressed ID for the given blob bytes.
func HashBlobID(content []byte) BlobID {
	h := sha256.Sum256(content)
	return BlobID(hex.EncodeToString(h[:]))
}

// Hash returns the lowercase hex SHA-256 of data, the generic content hash
// used for block and certificate identity throughout the module.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
