package market

import (
	"encoding/hex"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeListed         = "market.listed"
	EventTypeUnlisted       = "market.unlisted"
	EventTypeOfferMade      = "market.offer_made"
	EventTypeOfferRefunded  = "market.offer_refunded"
	EventTypeOfferCancelled = "market.offer_cancelled"
	EventTypeOfferAccepted  = "market.offer_accepted"
	EventTypeSold           = "market.sold"
)

// NewListedEvent returns the canonical payload emitted when an item enters
// market custody.
func NewListedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeListed, l) }

// NewUnlistedEvent returns the payload emitted when a listing is withdrawn and
// the item returned to its seller.
func NewUnlistedEvent(l *Listing) *types.Event { return newListingEvent(EventTypeUnlisted, l) }

// NewSoldEvent returns the payload emitted on a direct buy settlement.
func NewSoldEvent(l *Listing, buyer [20]byte) *types.Event {
	evt := newListingEvent(EventTypeSold, l)
	evt.Attributes["buyer"] = hex.EncodeToString(buyer[:])
	return evt
}

// NewOfferMadeEvent returns the payload emitted when escrow is taken for a new
// offer.
func NewOfferMadeEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferMade, o) }

// NewOfferRefundedEvent returns the payload emitted when an offer's escrow is
// returned because a newer offer superseded it.
func NewOfferRefundedEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferRefunded, o) }

// NewOfferCancelledEvent returns the payload emitted when the offerer
// withdraws and is refunded.
func NewOfferCancelledEvent(o *Offer) *types.Event { return newOfferEvent(EventTypeOfferCancelled, o) }

// NewOfferAcceptedEvent returns the payload emitted when the seller settles
// against the outstanding offer.
func NewOfferAcceptedEvent(o *Offer, seller [20]byte) *types.Event {
	evt := newOfferEvent(EventTypeOfferAccepted, o)
	evt.Attributes["seller"] = hex.EncodeToString(seller[:])
	return evt
}

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["registry"] = hex.EncodeToString(sanitized.Registry[:])
	attrs["itemId"] = strconv.FormatUint(sanitized.ItemID, 10)
	attrs["priceAsset"] = hex.EncodeToString(sanitized.PriceAsset[:])
	attrs["price"] = sanitized.Price.String()
	attrs["seller"] = hex.EncodeToString(sanitized.Seller[:])
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newOfferEvent(eventType string, o *Offer) *types.Event {
	attrs := make(map[string]string)
	if o == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeOffer(o)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["registry"] = hex.EncodeToString(sanitized.Registry[:])
	attrs["itemId"] = strconv.FormatUint(sanitized.ItemID, 10)
	attrs["priceAsset"] = hex.EncodeToString(sanitized.PriceAsset[:])
	attrs["price"] = sanitized.Price.String()
	attrs["offerer"] = hex.EncodeToString(sanitized.Offerer[:])
	attrs["createdAt"] = strconv.FormatInt(sanitized.CreatedAt, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}
