package worker

import (
	"strings"

	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/blobresolver"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/chainstate"
	"github.com/tolelom/multichain/storage"
)

// HandleConfirmedCertificate processes a ConfirmedBlockCertificate, the
// critical path described by spec.md §4.5 phases (A) idempotence, (B)
// certificate verification, (C) blob persistence, (D) gap handling, (E)
// chaining check, (F) execution and (G) commit — ported from the
// original's process_confirmed_block.
func (w *Worker) HandleConfirmedCertificate(chain chainid.ID, cert block.Certificate, createdBlobs map[chainid.BlobID]blob.Blob, localTime int64, waitForDelivery chan struct{}) (ChainInfo, NetworkActions, error) {
	var info ChainInfo
	var actions NetworkActions

	err := w.mailbox(chain).Run(func() error {
		sc, err := beginScope(chain, w.view)
		if err != nil {
			return err
		}
		defer sc.rollbackUnlessSucceeded()

		height := cert.Height()

		// (A) Idempotence check.
		if sc.state.Tip.NextBlockHeight > height {
			actions = buildCrossChainActions(sc.state)
			info = chainInfoFrom(sc.state)
			w.registerDelivery(sc.state, height, waitForDelivery)
			return nil
		}

		// (B) Certificate verification.
		comm, ok := sc.state.Committees[cert.Epoch()]
		if !ok {
			fetched, err := w.store.CommitteesFor(cert.Epoch(), cert.Epoch())
			if err != nil {
				return wrapStorage(err)
			}
			comm, ok = fetched[cert.Epoch()]
			if ok {
				sc.state.Committees[cert.Epoch()] = comm
			}
		}
		if !ok {
			nd, ndErr := w.store.ReadNetworkDescription()
			if ndErr == storage.ErrNotFound {
				return newErr(MissingNetworkDescription, "validator has not been initialized")
			}
			if ndErr != nil {
				return wrapStorage(ndErr)
			}
			return &Error{
				Kind: EventsNotFound,
				Events: []EventRef{{
					ChainID:  nd.AdminChainID,
					StreamID: "epoch",
					Index:    uint64(cert.Epoch()),
				}},
			}
		}
		if err := cert.Check(comm); err != nil {
			return &Error{Kind: InvalidSignature, Detail: err.Error()}
		}

		// (C) Blob persistence (pre-commit).
		required := cert.Confirmed.RequiredBlobIDs()
		maybeBlobs, err := w.resolver.MaybeGetRequired(required, createdBlobs)
		if err != nil {
			return wrapStorage(err)
		}
		missing := blobresolver.Missing(required, maybeBlobs)
		if err := w.store.MaybeWriteBlobStates(required, storage.BlobState{CertificateHash: cert.Hash()}); err != nil {
			return wrapStorage(err)
		}
		if len(missing) > 0 {
			return blobsNotFound(missing)
		}
		found := make([]blob.Blob, 0, len(maybeBlobs))
		for _, b := range maybeBlobs {
			if b != nil {
				found = append(found, *b)
			}
		}
		if err := w.store.WriteBlobsAndCertificate(found, cert); err != nil {
			return wrapStorage(err)
		}
		if len(cert.Outcome.Events) > 0 {
			events := make([]storage.StoredEvent, 0, len(cert.Outcome.Events))
			for i, e := range cert.Outcome.Events {
				events = append(events, storage.StoredEvent{
					ChainID:  chain,
					StreamID: e.StreamID,
					Index:    uint64(i),
					Payload:  []byte(e.Payload),
				})
			}
			if err := w.store.WriteEvents(events); err != nil {
				return wrapStorage(err)
			}
			for _, e := range events {
				if err := w.events.Record(chain, e.StreamID, e.Index); err != nil {
					return wrapStorage(err)
				}
			}
		}

		// (D) Gap handling.
		if sc.state.Tip.NextBlockHeight < height {
			for _, m := range cert.Outcome.OutgoingMessages {
				sc.state.RecordOutgoing(m.Destination, height)
			}
			info = chainInfoFrom(sc.state)
			return sc.save()
		}

		// (E) Chaining check. A chain that has never committed a block
		// chains its first block from the all-zeros genesis hash
		// (config.GenesisHash).
		expectedPrev := sc.state.Tip.BlockHash
		if height == 0 && expectedPrev == "" {
			expectedPrev = strings.Repeat("0", 64)
		}
		if cert.Confirmed.Header.PreviousHash != expectedPrev {
			return newErr(InvalidBlockChaining, "block's previous hash does not match chain tip")
		}

		// (F) Execution.
		for _, bundle := range cert.Confirmed.Body.IncomingBundles {
			sc.state.ReceiveMessageBundle(bundle.Origin, bundle.Height)
		}
		cacheKey := cert.Confirmed.Header.ComputeHash() + cert.Outcome.StateHash
		if _, cached := w.values.Get(cacheKey); !cached {
			publishedIDs := make([]string, 0, len(createdBlobs))
			for id := range createdBlobs {
				publishedIDs = append(publishedIDs, string(id))
			}
			state := newExecState(chain, w.view)
			computed, err := w.executor.ExecuteBlock(*cert.Confirmed, localTime, publishedIDs, cert.Confirmed.Body.OracleResponses, state)
			if err != nil {
				return &Error{Kind: IncorrectOutcome, Detail: err.Error()}
			}
			root, err := w.view.ComputeRoot([][]byte{execPrefix(chain)})
			if err != nil {
				return wrapStorage(err)
			}
			computed.StateHash = root
			if !computed.Equal(cert.Outcome) {
				return newErr(IncorrectOutcome, "re-executed outcome does not match the certificate's outcome")
			}
		}

		// (G) Commit.
		sc.state.Tip = chainstate.Tip{NextBlockHeight: height + 1, BlockHash: cert.Confirmed.Header.ComputeHash()}
		sc.state.Active = true
		sc.state.Manager.Commit(height)
		for _, m := range cert.Outcome.OutgoingMessages {
			sc.state.RecordOutgoing(m.Destination, height)
		}

		actions = buildCrossChainActions(sc.state)
		actions.Notifications = append(actions.Notifications, Notification{
			ChainID: chain,
			Reason:  ReasonNewBlock,
			Height:  height,
			Hash:    sc.state.Tip.BlockHash,
		})

		votedBlock := cert.Confirmed.WithOutcome(cert.Outcome)
		w.values.Insert(cacheKey, votedBlock)

		info = chainInfoFrom(sc.state)
		if err := sc.save(); err != nil {
			return err
		}
		w.registerDelivery(sc.state, height, waitForDelivery)
		return nil
	})
	return info, actions, err
}
