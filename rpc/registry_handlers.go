package rpc

import (
	"errors"
	"net/http"
	"time"

	"nftmarket/registry/item"
	"nftmarket/registry/token"
)

const (
	codeRegistryInvalidParams = -32041
	codeRegistryNotFound      = -32042
	codeRegistryConflict      = -32043
	codeRegistryInternal      = -32044
)

type assetParams struct {
	Asset     string `json:"asset"`
	Account   string `json:"account,omitempty"`
	Amount    string `json:"amount,omitempty"`
	MaxSupply string `json:"maxSupply,omitempty"`
}

type itemParams struct {
	Registry string `json:"registry"`
	ItemID   uint64 `json:"itemId"`
	Owner    string `json:"owner,omitempty"`
}

type approvalParams struct {
	Registry string `json:"registry,omitempty"`
	Asset    string `json:"asset,omitempty"`
	Owner    string `json:"owner"`
	Amount   string `json:"amount,omitempty"`
	Approved bool   `json:"approved,omitempty"`
}

func writeRegistryError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, token.ErrUnknownAsset), errors.Is(err, item.ErrInvalidTokenID):
		writeError(w, http.StatusNotFound, id, codeRegistryNotFound, "not_found", err.Error())
	case errors.Is(err, token.ErrAssetExists), errors.Is(err, item.ErrItemExists),
		errors.Is(err, token.ErrExceedsMaximumSupply):
		writeError(w, http.StatusConflict, id, codeRegistryConflict, "conflict", err.Error())
	case errors.Is(err, token.ErrInvalidAmount), errors.Is(err, item.ErrZeroAddress):
		writeError(w, http.StatusBadRequest, id, codeRegistryInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeRegistryInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleRegistryRegisterAsset(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params assetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseAddress(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	maxSupply, err := parsePositiveBigInt(params.MaxSupply)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.RegisterAsset(asset, maxSupply); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRegistryMintToken(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params assetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseAddress(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MintToken(asset, account, amount); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRegistryMintItem(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params itemParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.MintItem(registry, owner, params.ItemID); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRegistryApprove(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params approvalParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseAddress(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.Approve(asset, owner, amount); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRegistrySetApprovalForAll(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params approvalParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.SetApprovalForAll(registry, owner, params.Approved); err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleRegistryBalanceOf(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params assetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseAddress(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	account, err := parseAddress(params.Account)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	writeResult(w, req.ID, s.node.BalanceOf(asset, account).String())
}

func (s *Server) handleRegistryOwnerOf(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params itemParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeRegistryInvalidParams, "invalid_params", err.Error())
		return
	}
	owner, err := s.node.OwnerOf(registry, params.ItemID)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatAddress(owner))
}

type auditEntryJSON struct {
	ID         int64             `json:"id"`
	EventType  string            `json:"eventType"`
	Attributes map[string]string `json:"attributes"`
	RecordedAt time.Time         `json:"recordedAt"`
}

type auditRecentParams struct {
	Limit int `json:"limit,omitempty"`
}

func (s *Server) handleAuditRecentEvents(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	if s.journal == nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "audit journal disabled", nil)
		return
	}
	params := auditRecentParams{}
	if len(req.Params) == 1 {
		if err := decodeParams(req, &params); err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid_params", err.Error())
			return
		}
	}
	entries, err := s.journal.Recent(params.Limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "audit query failed", err.Error())
		return
	}
	out := make([]auditEntryJSON, 0, len(entries))
	for _, entry := range entries {
		out = append(out, auditEntryJSON{
			ID:         entry.ID,
			EventType:  entry.EventType,
			Attributes: entry.Attributes,
			RecordedAt: entry.RecordedAt,
		})
	}
	writeResult(w, req.ID, out)
}
