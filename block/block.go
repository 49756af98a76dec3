// Package block defines the block, message-bundle and certificate types
// that flow through the chain worker, and their hashing/signing rules.
package block

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
)

// Header is the hashed, signed metadata of a block.
type Header struct {
	ChainID      chainid.ID     `json:"chain_id"`
	Epoch        chainid.Epoch  `json:"epoch"`
	Height       chainid.Height `json:"height"`
	Timestamp    int64          `json:"timestamp"` // unix nanos
	PreviousHash string         `json:"previous_hash"`
}

// Operation is an opaque unit of work inside a block body, dispatched by
// Kind to the execution runtime (see package runtime).
type Operation struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Event is a value published to a named stream during block execution.
type Event struct {
	StreamID string          `json:"stream_id"`
	Payload  json.RawMessage `json:"payload"`
}

// OracleResponse is the recorded result of a non-deterministic query made
// during block execution (e.g. a service call), replayed verbatim on
// re-execution so outcomes stay deterministic.
type OracleResponse struct {
	Query    string          `json:"query"`
	Response json.RawMessage `json:"response"`
}

// OutgoingMessage is a cross-chain message produced by executing this
// block, destined for another chain's inbox.
type OutgoingMessage struct {
	Destination chainid.ID      `json:"destination"`
	Payload     json.RawMessage `json:"payload"`
}

// Body holds everything a block carries besides its header.
type Body struct {
	IncomingBundles []MessageBundle   `json:"incoming_bundles"`
	Operations      []Operation       `json:"operations"`
	OracleResponses []OracleResponse  `json:"oracle_responses"`
	OutgoingMessages []OutgoingMessage `json:"outgoing_messages"`
	Events          []Event           `json:"events"`
	StateHash       string            `json:"state_hash"`
}

// Block is a proposed or confirmed unit of chain history.
type Block struct {
	Header Header `json:"header"`
	Body   Body   `json:"body"`
}

// RequiredBlobIDs returns the blob ids this block's body references: one
// for each operation whose payload is a JSON object with a non-empty
// "blob_id" field.
func (b *Block) RequiredBlobIDs() []chainid.BlobID {
	var ids []chainid.BlobID
	for _, op := range b.Body.Operations {
		var ref struct {
			BlobID chainid.BlobID `json:"blob_id,omitempty"`
		}
		if err := json.Unmarshal(op.Payload, &ref); err == nil && ref.BlobID != "" {
			ids = append(ids, ref.BlobID)
		}
	}
	return ids
}

// ComputeHash returns a deterministic hash of the block header.
func (h Header) ComputeHash() string {
	data, err := json.Marshal(h)
	if err != nil {
		return ""
	}
	return chainid.Hash(data)
}

// ComputeBodyRoot hashes the body's operations in a length-prefixed,
// order-dependent encoding, generalizing the teacher's tx-root
// construction (tolelom-tolchain/core/block.go ComputeTxRoot) from a flat
// transaction list to the richer block body this spec requires.
func ComputeBodyRoot(body Body) string {
	var buf bytes.Buffer
	var lenBuf [4]byte
	write := func(b []byte) {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
		buf.Write(lenBuf[:])
		buf.Write(b)
	}
	for _, op := range body.Operations {
		write([]byte(op.Kind))
		write(op.Payload)
	}
	for _, m := range body.OutgoingMessages {
		write(m.Destination[:])
		write(m.Payload)
	}
	for _, e := range body.Events {
		write([]byte(e.StreamID))
		write(e.Payload)
	}
	return chainid.Hash(buf.Bytes())
}

// ExecutionOutcome is the result of executing a proposed block: the
// messages/events it produced plus the resulting state hash. Two
// ExecutionOutcome values are compared for equality (I4) to catch
// non-determinism or Byzantine re-execution mismatches.
type ExecutionOutcome struct {
	OutgoingMessages []OutgoingMessage `json:"outgoing_messages"`
	Events           []Event          `json:"events"`
	StateHash        string           `json:"state_hash"`
}

// Equal reports whether two outcomes are identical.
func (o ExecutionOutcome) Equal(other ExecutionOutcome) bool {
	a, errA := json.Marshal(o)
	b, errB := json.Marshal(other)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// WithOutcome returns a copy of the proposed block with its body's outgoing
// fields set from outcome — the step the original calls `outcome.with(block)`.
func (b Block) WithOutcome(outcome ExecutionOutcome) Block {
	b.Body.OutgoingMessages = outcome.OutgoingMessages
	b.Body.Events = outcome.Events
	b.Body.StateHash = outcome.StateHash
	return b
}

// MessageBundle is a height-tagged group of cross-chain messages
// originating from one chain, destined for another chain's inbox.
type MessageBundle struct {
	Origin   chainid.ID        `json:"origin"`
	Height   chainid.Height    `json:"height"`
	Messages []OutgoingMessage `json:"messages"`
}

// CertKind distinguishes the three certificate variants signed by a
// committee.
type CertKind int

const (
	CertTimeout CertKind = iota
	CertValidated
	CertConfirmed
)

// TimeoutValue is the signed payload of a Timeout certificate.
type TimeoutValue struct {
	ChainID chainid.ID     `json:"chain_id"`
	Height  chainid.Height `json:"height"`
	Epoch   chainid.Epoch  `json:"epoch"`
	Round   uint64         `json:"round"`
}

// Hash returns the deterministic signing payload for v.
func (v TimeoutValue) Hash() string {
	data, _ := json.Marshal(v)
	return chainid.Hash(data)
}

// Certificate is a value signed by a committee majority. Exactly one of
// Timeout/Validated/Confirmed is populated, selected by Kind.
type Certificate struct {
	Kind      CertKind
	Round     uint64 // round the certificate was produced in (Timeout, Validated)
	Timeout   *TimeoutValue
	Validated *Block
	Confirmed *Block
	Outcome   ExecutionOutcome // populated for Validated/Confirmed
	Sigs      []committee.Signature
}

// SigningPayload returns the bytes the committee signatures cover.
func (c Certificate) SigningPayload() []byte {
	switch c.Kind {
	case CertTimeout:
		return []byte(c.Timeout.Hash())
	case CertValidated:
		return []byte(c.Validated.Header.ComputeHash() + c.Outcome.StateHash)
	case CertConfirmed:
		return []byte(c.Confirmed.Header.ComputeHash() + c.Outcome.StateHash)
	default:
		return nil
	}
}

// Check verifies the certificate's signatures against comm, the committee
// for its declared epoch (I2).
func (c Certificate) Check(comm committee.Committee) error {
	return comm.VerifyQuorum(c.SigningPayload(), c.Sigs)
}

// Hash returns the certificate's content hash, used as its storage key and
// as the certificate reference in blob-state records.
func (c Certificate) Hash() string {
	return chainid.Hash(append([]byte(fmt.Sprintf("%d:%d:", c.Kind, c.Round)), c.SigningPayload()...))
}

// ChainID returns the chain the certificate concerns, regardless of kind.
func (c Certificate) ChainID() chainid.ID {
	switch c.Kind {
	case CertTimeout:
		return c.Timeout.ChainID
	case CertValidated:
		return c.Validated.Header.ChainID
	case CertConfirmed:
		return c.Confirmed.Header.ChainID
	default:
		return chainid.ID{}
	}
}

// Height returns the block height the certificate concerns.
func (c Certificate) Height() chainid.Height {
	switch c.Kind {
	case CertTimeout:
		return c.Timeout.Height
	case CertValidated:
		return c.Validated.Header.Height
	case CertConfirmed:
		return c.Confirmed.Header.Height
	default:
		return 0
	}
}

// Epoch returns the epoch the certificate was signed under.
func (c Certificate) Epoch() chainid.Epoch {
	switch c.Kind {
	case CertTimeout:
		return c.Timeout.Epoch
	case CertValidated:
		return c.Validated.Header.Epoch
	case CertConfirmed:
		return c.Confirmed.Header.Epoch
	default:
		return 0
	}
}
