package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/committee"
)

// Key prefixes for the persisted state layout (spec.md §6). Per-chain
// sub-views live under chain/{chain_id}/..., keyed the way the teacher
// keys its block-by-height and tip records in storage/leveldb.go, just
// widened from a flat "chain:"/"block:" namespace to one prefix per chain.
const (
	prefixCommittee = "committee/"
	prefixNetwork   = "network_description"
	prefixBlob      = "blob/"
	prefixBlobState = "blob_state/"
	prefixCert      = "cert/"
	prefixEvent     = "event/"
)

// BlobState records which certificate a blob's state was written against,
// so a late-uploaded blob can be tied back to the certificate that
// required it (I6).
type BlobState struct {
	CertificateHash string `json:"certificate_hash"`
}

// NetworkDescription is the bootstrap record every validator reads on
// startup to learn which chain administers committee membership.
type NetworkDescription struct {
	AdminChainID chainid.ID `json:"admin_chain_id"`
}

// Clock is a monotone timestamp source, injected so tests can control
// time deterministically — no pack example exercises a literal "wall
// clock" interface, so this is a new, narrow seam rather than a dependency
// pulled in from elsewhere (see DESIGN.md).
type Clock interface {
	CurrentTime() int64 // unix nanos
}

// Store wraps a DB with the higher-level, domain-specific operations
// spec.md §6 lists beyond plain key-value access: committee lookups,
// the network bootstrap record, atomic blob+certificate writes, blob-state
// upserts and event writes.
type Store struct {
	DB
	Clock Clock
}

// NewStore wraps db with clock as the store's time source.
func NewStore(db DB, clock Clock) *Store {
	return &Store{DB: db, Clock: clock}
}

// CommitteesFor returns the committees known to storage whose epoch falls
// in [from, to], for the "consult storage for recent epochs not yet
// reflected locally" fallback in certificate verification (spec.md §4B).
func (s *Store) CommitteesFor(from, to chainid.Epoch) (map[chainid.Epoch]committee.Committee, error) {
	keys, values, err := s.FindByPrefix([]byte(prefixCommittee))
	if err != nil {
		return nil, fmt.Errorf("find committees: %w", err)
	}
	out := make(map[chainid.Epoch]committee.Committee)
	for i, k := range keys {
		_ = k
		var c committee.Committee
		if err := json.Unmarshal(values[i], &c); err != nil {
			return nil, fmt.Errorf("decode committee: %w", err)
		}
		if c.Epoch >= from && c.Epoch <= to {
			out[c.Epoch] = c
		}
	}
	return out, nil
}

// WriteCommittee persists a committee record, write-once and
// content-keyed by epoch (concurrent identical writes are tolerated per
// spec.md §5 "Shared resources").
func (s *Store) WriteCommittee(c committee.Committee) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	b := s.NewBatch()
	b.Put(committeeKey(c.Epoch), data)
	return b.Write()
}

func committeeKey(epoch chainid.Epoch) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixCommittee, epoch))
}

// ReadNetworkDescription returns the bootstrap record, or ErrNotFound if
// the validator has not been initialized (MissingNetworkDescription is
// fatal at the caller).
func (s *Store) ReadNetworkDescription() (*NetworkDescription, error) {
	data, err := s.Get([]byte(prefixNetwork))
	if err != nil {
		return nil, err
	}
	var nd NetworkDescription
	if err := json.Unmarshal(data, &nd); err != nil {
		return nil, fmt.Errorf("decode network description: %w", err)
	}
	return &nd, nil
}

// WriteNetworkDescription persists the bootstrap record.
func (s *Store) WriteNetworkDescription(nd NetworkDescription) error {
	data, err := json.Marshal(nd)
	if err != nil {
		return err
	}
	b := s.NewBatch()
	b.Put([]byte(prefixNetwork), data)
	return b.Write()
}

// WriteBlobsAndCertificate atomically persists blobs and cert in a single
// batch (spec.md §4C: "blobs and certificate appear atomically").
func (s *Store) WriteBlobsAndCertificate(blobs []blob.Blob, cert block.Certificate) error {
	b := s.NewBatch()
	for _, bl := range blobs {
		data, err := json.Marshal(bl)
		if err != nil {
			return fmt.Errorf("marshal blob %s: %w", bl.ID, err)
		}
		b.Put(blobKey(bl.ID), data)
	}
	certData, err := json.Marshal(cert)
	if err != nil {
		return fmt.Errorf("marshal certificate: %w", err)
	}
	b.Put(certKey(cert.Hash()), certData)
	return b.Write()
}

func blobKey(id chainid.BlobID) []byte {
	return []byte(prefixBlob + string(id))
}

func certKey(hash string) []byte {
	return []byte(prefixCert + hash)
}

// GetBlob reads a previously written blob by id.
func (s *Store) GetBlob(id chainid.BlobID) (*blob.Blob, error) {
	data, err := s.Get(blobKey(id))
	if err != nil {
		return nil, err
	}
	var b blob.Blob
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode blob %s: %w", id, err)
	}
	return &b, nil
}

// MaybeWriteBlobStates upserts a blob-state record for each id in ids,
// regardless of whether the blob content itself was found (I6): the
// record ties a later client upload back to the certificate that required
// it even when resolution currently fails.
func (s *Store) MaybeWriteBlobStates(ids []chainid.BlobID, state BlobState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	b := s.NewBatch()
	for _, id := range ids {
		b.Put(blobStateKey(id), data)
	}
	return b.Write()
}

func blobStateKey(id chainid.BlobID) []byte {
	return []byte(prefixBlobState + string(id))
}

// GetBlobState reads the blob-state record for id, if any.
func (s *Store) GetBlobState(id chainid.BlobID) (*BlobState, error) {
	data, err := s.Get(blobStateKey(id))
	if err != nil {
		return nil, err
	}
	var st BlobState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode blob state %s: %w", id, err)
	}
	return &st, nil
}

// StoredEvent is one (stream, index, payload) record written by
// WriteEvents, keyed for ordered lookup by the event index (package
// eventindex).
type StoredEvent struct {
	ChainID  chainid.ID `json:"chain_id"`
	StreamID string     `json:"stream_id"`
	Index    uint64     `json:"index"`
	Payload  []byte     `json:"payload"`
}

// WriteEvents persists a batch of events under the per-chain, per-stream
// key layout spec.md §6 specifies: event/{chain_id}/{stream_id}/{index}.
func (s *Store) WriteEvents(events []StoredEvent) error {
	b := s.NewBatch()
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s/%d: %w", e.StreamID, e.Index, err)
		}
		b.Put(eventKey(e.ChainID, e.StreamID, e.Index), data)
	}
	return b.Write()
}

func eventKey(chain chainid.ID, stream string, index uint64) []byte {
	return []byte(fmt.Sprintf("%s%s/%s/%020d", prefixEvent, chain.Hex(), stream, index))
}

// FindEvents returns every event recorded for chain on stream, sorted by
// index.
func (s *Store) FindEvents(chain chainid.ID, stream string) ([]StoredEvent, error) {
	prefix := []byte(fmt.Sprintf("%s%s/%s/", prefixEvent, chain.Hex(), stream))
	_, values, err := s.FindByPrefix(prefix)
	if err != nil {
		return nil, err
	}
	out := make([]StoredEvent, 0, len(values))
	for _, v := range values {
		var e StoredEvent
		if err := json.Unmarshal(v, &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// GetEvent reads one event directly by its (chain, stream, index) key,
// for eventindex.Index once it already knows which index to fetch.
func (s *Store) GetEvent(chain chainid.ID, stream string, index uint64) (*StoredEvent, error) {
	data, err := s.Get(eventKey(chain, stream, index))
	if err != nil {
		return nil, err
	}
	var e StoredEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &e, nil
}

// ChainPrefix returns the key prefix under which a single chain's
// sub-views (tip, manager, inboxes, outboxes, pending_*, execution_state)
// are stored, per spec.md §6's persisted state layout.
func ChainPrefix(id chainid.ID) []byte {
	return []byte("chain/" + id.Hex() + "/")
}
