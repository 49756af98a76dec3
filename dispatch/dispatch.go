// Package dispatch exposes the chain worker's request surface as a single
// JSON-in/JSON-out entry point, the way the teacher's rpc package exposes
// node.Handler over JSON-RPC (tolelom-tolchain/rpc/handler.go,
// rpc/types.go): one Method-tagged envelope dispatched to a worker.Worker
// method instead of to a blockchain's tx/block handlers.
package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/tolelom/multichain/blob"
	"github.com/tolelom/multichain/block"
	"github.com/tolelom/multichain/chainid"
	"github.com/tolelom/multichain/crosschain"
	"github.com/tolelom/multichain/worker"
)

// Request is the envelope every worker RPC arrives in.
type Request struct {
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

// Response is the envelope every worker RPC reply leaves in.
type Response struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorInfo      `json:"error,omitempty"`
}

// ErrorInfo is the wire form of worker.Error.
type ErrorInfo struct {
	Kind    string             `json:"kind"`
	Detail  string             `json:"detail,omitempty"`
	BlobIDs []chainid.BlobID   `json:"blob_ids,omitempty"`
	Events  []worker.EventRef  `json:"events,omitempty"`
	Limit   int                `json:"limit,omitempty"`
}

// Handler dispatches Requests to a Worker, the process boundary every
// transport (package network, or a direct in-process call) calls through.
type Handler struct {
	worker *worker.Worker
}

// NewHandler creates a Handler backed by w.
func NewHandler(w *worker.Worker) *Handler {
	return &Handler{worker: w}
}

// Dispatch routes req to the matching worker.Worker method and encodes its
// result (or error) as a Response. Unknown methods and payload decode
// failures are reported as ok:false rather than causing a panic, so one
// malformed request cannot take down a shared connection.
func (h *Handler) Dispatch(req Request) Response {
	result, err := h.call(req)
	if err != nil {
		return errorResponse(err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(fmt.Errorf("dispatch: encode result: %w", err))
	}
	return Response{OK: true, Result: data}
}

func (h *Handler) call(req Request) (interface{}, error) {
	switch req.Method {
	case "GetChainInfo":
		var p struct {
			ChainID chainid.ID `json:"chain_id"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, err := h.worker.GetChainInfo(p.ChainID)
		return info, err

	case "HandleTimeout":
		var p struct {
			ChainID     chainid.ID        `json:"chain_id"`
			Certificate block.Certificate `json:"certificate"`
			LocalTime   int64             `json:"local_time"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, actions, err := h.worker.HandleTimeout(p.ChainID, p.Certificate, p.LocalTime)
		return reply2(info, actions), err

	case "HandleProposal":
		var p struct {
			ChainID   chainid.ID      `json:"chain_id"`
			Proposal  worker.Proposal `json:"proposal"`
			LocalTime int64           `json:"local_time"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, actions, vote, err := h.worker.HandleProposal(p.ChainID, p.Proposal, p.LocalTime)
		return struct {
			Info    worker.ChainInfo      `json:"info"`
			Actions worker.NetworkActions `json:"actions"`
			Vote    *worker.ProposalVote  `json:"vote,omitempty"`
		}{info, actions, vote}, err

	case "HandleValidatedCertificate":
		var p struct {
			ChainID     chainid.ID        `json:"chain_id"`
			Certificate block.Certificate `json:"certificate"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, actions, vote, err := h.worker.HandleValidatedCertificate(p.ChainID, p.Certificate)
		return struct {
			Info    worker.ChainInfo       `json:"info"`
			Actions worker.NetworkActions  `json:"actions"`
			Vote    *worker.ValidatedVote  `json:"vote,omitempty"`
		}{info, actions, vote}, err

	case "HandleConfirmedCertificate":
		var p struct {
			ChainID       chainid.ID                  `json:"chain_id"`
			Certificate   block.Certificate           `json:"certificate"`
			CreatedBlobs  map[chainid.BlobID]blob.Blob `json:"created_blobs"`
			LocalTime     int64                       `json:"local_time"`
			WaitDelivery  bool                        `json:"wait_delivery"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		var waitCh chan struct{}
		if p.WaitDelivery {
			waitCh = make(chan struct{})
		}
		info, actions, err := h.worker.HandleConfirmedCertificate(p.ChainID, p.Certificate, p.CreatedBlobs, p.LocalTime, waitCh)
		if waitCh != nil {
			<-waitCh
		}
		return reply2(info, actions), err

	case "HandleCrossChainUpdate":
		var p struct {
			ChainID  chainid.ID               `json:"chain_id"`
			Origin   chainid.ID               `json:"origin"`
			Bundles  []crosschain.EpochBundle `json:"bundles"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, actions, highest, err := h.worker.HandleCrossChainUpdate(p.ChainID, p.Origin, p.Bundles)
		return struct {
			Info    worker.ChainInfo      `json:"info"`
			Actions worker.NetworkActions `json:"actions"`
			Highest chainid.Height        `json:"highest_accepted_height"`
		}{info, actions, highest}, err

	case "ConfirmUpdatedRecipient":
		var p struct {
			ChainID       chainid.ID     `json:"chain_id"`
			Recipient     chainid.ID     `json:"recipient"`
			LatestHeight  chainid.Height `json:"latest_height"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, err := h.worker.ConfirmUpdatedRecipient(p.ChainID, p.Recipient, p.LatestHeight)
		return info, err

	case "UpdateReceivedTrackers":
		var p struct {
			ChainID   chainid.ID `json:"chain_id"`
			Validator string     `json:"validator"`
			Index     uint64     `json:"index"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, err := h.worker.UpdateReceivedTrackers(p.ChainID, p.Validator, p.Index)
		return info, err

	case "HandlePendingBlob":
		var p struct {
			ChainID chainid.ID `json:"chain_id"`
			Blob    blob.Blob  `json:"blob"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, err := h.worker.HandlePendingBlob(p.ChainID, p.Blob)
		return info, err

	case "VoteForLeaderTimeout":
		var p struct {
			ChainID chainid.ID `json:"chain_id"`
			Round   uint64     `json:"round"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, vote, err := h.worker.VoteForLeaderTimeout(p.ChainID, p.Round)
		return struct {
			Info worker.ChainInfo          `json:"info"`
			Vote *worker.LeaderTimeoutVote `json:"vote,omitempty"`
		}{info, vote}, err

	case "VoteForFallback":
		var p struct {
			ChainID chainid.ID `json:"chain_id"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, err
		}
		info, vote, err := h.worker.VoteForFallback(p.ChainID)
		return struct {
			Info worker.ChainInfo          `json:"info"`
			Vote *worker.LeaderTimeoutVote `json:"vote,omitempty"`
		}{info, vote}, err

	default:
		return nil, fmt.Errorf("dispatch: unknown method %q", req.Method)
	}
}

func reply2(info worker.ChainInfo, actions worker.NetworkActions) interface{} {
	return struct {
		Info    worker.ChainInfo      `json:"info"`
		Actions worker.NetworkActions `json:"actions"`
	}{info, actions}
}

func errorResponse(err error) Response {
	var werr *worker.Error
	if as, ok := err.(*worker.Error); ok {
		werr = as
	}
	if werr == nil {
		return Response{OK: false, Error: &ErrorInfo{Kind: "Internal", Detail: err.Error()}}
	}
	return Response{OK: false, Error: &ErrorInfo{
		Kind:    werr.Kind.String(),
		Detail:  werr.Detail,
		BlobIDs: werr.BlobIDs,
		Events:  werr.Events,
		Limit:   werr.Limit,
	}}
}
