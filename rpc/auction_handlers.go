package rpc

import (
	"errors"
	"net/http"

	"nftmarket/native/auction"
	"nftmarket/observability"
	"nftmarket/registry/item"
	"nftmarket/registry/token"
)

const (
	codeAuctionInvalidParams = -32031
	codeAuctionNotFound      = -32032
	codeAuctionForbidden     = -32033
	codeAuctionConflict      = -32034
	codeAuctionInternal      = -32035
)

type auctionCreateParams struct {
	Registry     string `json:"registry"`
	ItemID       uint64 `json:"itemId"`
	Asset        string `json:"asset"`
	FloorPrice   string `json:"floorPrice"`
	CeilingPrice string `json:"ceilingPrice"`
	MinIncrement string `json:"minIncrement"`
	StartTime    int64  `json:"startTime"`
	EndTime      int64  `json:"endTime"`
	Caller       string `json:"caller"`
}

type auctionBidParams struct {
	Registry string `json:"registry"`
	ItemID   uint64 `json:"itemId"`
	Amount   string `json:"amount"`
	Caller   string `json:"caller"`
}

type auctionKeyParams struct {
	Registry string `json:"registry"`
	ItemID   uint64 `json:"itemId"`
	Caller   string `json:"caller"`
}

type auctionJSON struct {
	Registry      string `json:"registry"`
	ItemID        uint64 `json:"itemId"`
	Asset         string `json:"asset"`
	FloorPrice    string `json:"floorPrice"`
	CeilingPrice  string `json:"ceilingPrice"`
	MinIncrement  string `json:"minIncrement"`
	StartTime     int64  `json:"startTime"`
	EndTime       int64  `json:"endTime"`
	Creator       string `json:"creator"`
	HighestBidder string `json:"highestBidder,omitempty"`
	HighestBid    string `json:"highestBid,omitempty"`
	CreatedAt     int64  `json:"createdAt"`
}

func auctionToJSON(a *auction.Auction) auctionJSON {
	out := auctionJSON{
		Registry:     formatAddress(a.Registry),
		ItemID:       a.ItemID,
		Asset:        formatAddress(a.Asset),
		FloorPrice:   a.FloorPrice.String(),
		CeilingPrice: a.CeilingPrice.String(),
		MinIncrement: a.MinIncrement.String(),
		StartTime:    a.StartTime,
		EndTime:      a.EndTime,
		Creator:      formatAddress(a.Creator),
		CreatedAt:    a.CreatedAt,
	}
	if a.HasBid {
		out.HighestBidder = formatAddress(a.HighestBidder)
		out.HighestBid = a.HighestBid.String()
	}
	return out
}

// writeAuctionError maps engine errors onto the RPC error surface.
func writeAuctionError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, auction.ErrNoActiveAuction),
		errors.Is(err, item.ErrInvalidTokenID), errors.Is(err, token.ErrUnknownAsset):
		writeError(w, http.StatusNotFound, id, codeAuctionNotFound, "not_found", err.Error())
	case errors.Is(err, auction.ErrNotOwnerOrNotApproved), errors.Is(err, auction.ErrNotAuctionCreator),
		errors.Is(err, auction.ErrNotEligibleToComplete):
		writeError(w, http.StatusForbidden, id, codeAuctionForbidden, "forbidden", err.Error())
	case errors.Is(err, auction.ErrAuctionNotStarted), errors.Is(err, auction.ErrAuctionEnded),
		errors.Is(err, auction.ErrAuctionAlreadyStarted), errors.Is(err, auction.ErrItemListed),
		errors.Is(err, token.ErrInsufficientBalance), errors.Is(err, token.ErrInsufficientAllowance):
		writeError(w, http.StatusConflict, id, codeAuctionConflict, "conflict", err.Error())
	case errors.Is(err, auction.ErrInvalidFloorPrice), errors.Is(err, auction.ErrInvalidCeilingPrice),
		errors.Is(err, auction.ErrInvalidIncrement), errors.Is(err, auction.ErrInvalidSchedule),
		errors.Is(err, auction.ErrBelowMinimumBid):
		writeError(w, http.StatusBadRequest, id, codeAuctionInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeAuctionInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleAuctionCreate(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params auctionCreateParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	asset, err := parseAddress(params.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	floor, err := parsePositiveBigInt(params.FloorPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	ceiling, err := parsePositiveBigInt(params.CeilingPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	increment, err := parsePositiveBigInt(params.MinIncrement)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	created, err := s.node.CreateAuction(registry, params.ItemID, asset, floor, ceiling, increment, params.StartTime, params.EndTime, caller)
	if err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, auctionToJSON(created))
}

func (s *Server) handleAuctionPlaceBid(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params auctionBidParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	amount, err := parsePositiveBigInt(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.PlaceBid(registry, params.ItemID, amount, caller); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	observability.TradeMetrics().RecordEscrowMove("hold")
	// A ceiling bid settles within the call; report the remaining record so
	// clients can tell the two outcomes apart.
	if remaining, ok := s.node.Auction(registry, params.ItemID); ok {
		writeResult(w, req.ID, auctionToJSON(remaining))
		return
	}
	observability.TradeMetrics().RecordSettlement("auction")
	writeResult(w, req.ID, true)
}

func (s *Server) handleAuctionComplete(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params auctionKeyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CompleteAuction(registry, params.ItemID, caller); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	observability.TradeMetrics().RecordSettlement("auction")
	writeResult(w, req.ID, true)
}

func (s *Server) handleAuctionCancel(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params auctionKeyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CancelAuction(registry, params.ItemID, caller); err != nil {
		writeAuctionError(w, req.ID, err)
		return
	}
	observability.TradeMetrics().RecordEscrowMove("refund")
	writeResult(w, req.ID, true)
}

func (s *Server) handleAuctionGet(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params auctionKeyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeAuctionInvalidParams, "invalid_params", err.Error())
		return
	}
	record, ok := s.node.Auction(registry, params.ItemID)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeAuctionNotFound, "not_found", "no active auction")
		return
	}
	writeResult(w, req.ID, auctionToJSON(record))
}
