package rpc

import (
	"errors"
	"net/http"

	"nftmarket/native/market"
	"nftmarket/observability"
	"nftmarket/registry/item"
	"nftmarket/registry/token"
)

const (
	codeMarketInvalidParams = -32021
	codeMarketNotFound      = -32022
	codeMarketForbidden     = -32023
	codeMarketConflict      = -32024
	codeMarketInternal      = -32025
)

type marketKeyParams struct {
	Registry string `json:"registry"`
	ItemID   uint64 `json:"itemId"`
	Caller   string `json:"caller"`
}

type marketListParams struct {
	Registry   string `json:"registry"`
	ItemID     uint64 `json:"itemId"`
	PriceAsset string `json:"priceAsset"`
	Price      string `json:"price"`
	Caller     string `json:"caller"`
}

type marketAcceptOfferParams struct {
	Registry string `json:"registry"`
	ItemID   uint64 `json:"itemId"`
	Offerer  string `json:"offerer"`
	Caller   string `json:"caller"`
}

type listingJSON struct {
	Registry   string `json:"registry"`
	ItemID     uint64 `json:"itemId"`
	PriceAsset string `json:"priceAsset"`
	Price      string `json:"price"`
	Seller     string `json:"seller"`
	CreatedAt  int64  `json:"createdAt"`
}

type offerJSON struct {
	Registry   string `json:"registry"`
	ItemID     uint64 `json:"itemId"`
	PriceAsset string `json:"priceAsset"`
	Price      string `json:"price"`
	Offerer    string `json:"offerer"`
	CreatedAt  int64  `json:"createdAt"`
}

func listingToJSON(l *market.Listing) listingJSON {
	return listingJSON{
		Registry:   formatAddress(l.Registry),
		ItemID:     l.ItemID,
		PriceAsset: formatAddress(l.PriceAsset),
		Price:      l.Price.String(),
		Seller:     formatAddress(l.Seller),
		CreatedAt:  l.CreatedAt,
	}
}

func offerToJSON(o *market.Offer) offerJSON {
	return offerJSON{
		Registry:   formatAddress(o.Registry),
		ItemID:     o.ItemID,
		PriceAsset: formatAddress(o.PriceAsset),
		Price:      o.Price.String(),
		Offerer:    formatAddress(o.Offerer),
		CreatedAt:  o.CreatedAt,
	}
}

// writeMarketError maps engine errors onto the RPC error surface.
func writeMarketError(w http.ResponseWriter, id interface{}, err error) {
	switch {
	case errors.Is(err, market.ErrNotListed), errors.Is(err, market.ErrNoActiveOffer),
		errors.Is(err, item.ErrInvalidTokenID), errors.Is(err, token.ErrUnknownAsset):
		writeError(w, http.StatusNotFound, id, codeMarketNotFound, "not_found", err.Error())
	case errors.Is(err, market.ErrNotOwnerOrNotApproved), errors.Is(err, market.ErrNotListedOwner):
		writeError(w, http.StatusForbidden, id, codeMarketForbidden, "forbidden", err.Error())
	case errors.Is(err, market.ErrItemOnAuction),
		errors.Is(err, token.ErrInsufficientBalance), errors.Is(err, token.ErrInsufficientAllowance):
		writeError(w, http.StatusConflict, id, codeMarketConflict, "conflict", err.Error())
	case errors.Is(err, market.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, id, codeMarketInvalidParams, "invalid_params", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, id, codeMarketInternal, "internal_error", err.Error())
	}
}

func (s *Server) handleMarketList(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketListParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	priceAsset, err := parseAddress(params.PriceAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parsePositiveBigInt(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, err := s.node.PutOnMarketplace(registry, params.ItemID, priceAsset, price, caller)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketUnlist(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketKeyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.PutOffMarketplace(registry, params.ItemID, caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleMarketMakeOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketListParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	priceAsset, err := parseAddress(params.PriceAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parsePositiveBigInt(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	offer, err := s.node.MakeOffer(registry, params.ItemID, priceAsset, price, caller)
	if err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.TradeMetrics().RecordEscrowMove("hold")
	writeResult(w, req.ID, offerToJSON(offer))
}

func (s *Server) handleMarketCancelOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketKeyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.CancelOffer(registry, params.ItemID, caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.TradeMetrics().RecordEscrowMove("refund")
	writeResult(w, req.ID, true)
}

func (s *Server) handleMarketAcceptOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketAcceptOfferParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	offerer, err := parseAddress(params.Offerer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.AcceptOffer(registry, params.ItemID, offerer, caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.TradeMetrics().RecordSettlement("offer")
	writeResult(w, req.ID, true)
}

func (s *Server) handleMarketBuy(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketListParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	priceAsset, err := parseAddress(params.PriceAsset)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	price, err := parsePositiveBigInt(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	if err := s.node.Buy(registry, params.ItemID, priceAsset, price, caller); err != nil {
		writeMarketError(w, req.ID, err)
		return
	}
	observability.TradeMetrics().RecordSettlement("buy")
	writeResult(w, req.ID, true)
}

func (s *Server) handleMarketGetListing(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketKeyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	listing, ok := s.node.Listing(registry, params.ItemID)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMarketNotFound, "not_found", "no active listing")
		return
	}
	writeResult(w, req.ID, listingToJSON(listing))
}

func (s *Server) handleMarketGetOffer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params marketKeyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	registry, err := parseAddress(params.Registry)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeMarketInvalidParams, "invalid_params", err.Error())
		return
	}
	offer, ok := s.node.Offer(registry, params.ItemID)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMarketNotFound, "not_found", "no active offer")
		return
	}
	writeResult(w, req.ID, offerToJSON(offer))
}
