package worker

import (
	"fmt"

	"github.com/tolelom/multichain/chainid"
)

// ErrorKind classifies a worker-level failure (spec.md §7).
type ErrorKind int

const (
	InvalidEpoch ErrorKind = iota
	InvalidSignature
	InvalidCommittee
	InvalidBlockChaining
	IncorrectOutcome
	BlobsNotFound
	EventsNotFound
	UnexpectedBlob
	TooManyPublishedBlobs
	BlobTooLarge
	InvalidCrossChainRequest
	InactiveChain
	MissingNetworkDescription
	StorageError
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidEpoch:
		return "InvalidEpoch"
	case InvalidSignature:
		return "InvalidSignature"
	case InvalidCommittee:
		return "InvalidCommittee"
	case InvalidBlockChaining:
		return "InvalidBlockChaining"
	case IncorrectOutcome:
		return "IncorrectOutcome"
	case BlobsNotFound:
		return "BlobsNotFound"
	case EventsNotFound:
		return "EventsNotFound"
	case UnexpectedBlob:
		return "UnexpectedBlob"
	case TooManyPublishedBlobs:
		return "TooManyPublishedBlobs"
	case BlobTooLarge:
		return "BlobTooLarge"
	case InvalidCrossChainRequest:
		return "InvalidCrossChainRequest"
	case InactiveChain:
		return "InactiveChain"
	case MissingNetworkDescription:
		return "MissingNetworkDescription"
	case StorageError:
		return "StorageError"
	default:
		return "Unknown"
	}
}

// EventRef identifies the event a caller must fetch to resolve an
// EventsNotFound error — typically the admin chain's epoch-stream entry
// that would define a still-unknown committee.
type EventRef struct {
	ChainID  chainid.ID
	StreamID string
	Index    uint64
}

// Error is the domain error type every worker request handler returns
// instead of a bare error, carrying enough structure for a caller to
// decide whether the failure is recoverable (spec.md §7).
type Error struct {
	Kind       ErrorKind
	BlobIDs    []chainid.BlobID // populated for BlobsNotFound
	Events     []EventRef       // populated for EventsNotFound
	Limit      int              // populated for TooManyPublishedBlobs
	Underlying error            // populated for StorageError and wrapped causes
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("worker: %s: %s", e.Kind, e.Detail)
	}
	if e.Underlying != nil {
		return fmt.Sprintf("worker: %s: %v", e.Kind, e.Underlying)
	}
	return fmt.Sprintf("worker: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Underlying }

func newErr(kind ErrorKind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func wrapStorage(err error) *Error {
	return &Error{Kind: StorageError, Underlying: err}
}

func blobsNotFound(ids []chainid.BlobID) *Error {
	return &Error{Kind: BlobsNotFound, BlobIDs: ids}
}

func eventsNotFound(events []EventRef) *Error {
	return &Error{Kind: EventsNotFound, Events: events}
}
