package auction

import (
	"encoding/hex"
	"strconv"

	"nftmarket/core/types"
)

const (
	EventTypeCreated     = "auction.created"
	EventTypeBid         = "auction.bid"
	EventTypeBidRefunded = "auction.bid_refunded"
	EventTypeSettled     = "auction.settled"
	EventTypeCancelled   = "auction.cancelled"
)

// NewCreatedEvent returns the canonical payload emitted when an item enters
// auction custody.
func NewCreatedEvent(a *Auction) *types.Event { return newAuctionEvent(EventTypeCreated, a) }

// NewBidEvent returns the payload emitted when a bid becomes the highest.
func NewBidEvent(a *Auction) *types.Event { return newAuctionEvent(EventTypeBid, a) }

// NewBidRefundedEvent returns the payload emitted when a superseded bidder is
// made whole.
func NewBidRefundedEvent(a *Auction, bidder [20]byte, amount string) *types.Event {
	evt := newAuctionEvent(EventTypeBidRefunded, a)
	evt.Attributes["refundedBidder"] = hex.EncodeToString(bidder[:])
	evt.Attributes["refundedAmount"] = amount
	return evt
}

// NewSettledEvent returns the payload emitted when the auction settles,
// including the exact payout split.
func NewSettledEvent(a *Auction, payout, fee string) *types.Event {
	evt := newAuctionEvent(EventTypeSettled, a)
	evt.Attributes["payout"] = payout
	evt.Attributes["fee"] = fee
	return evt
}

// NewCancelledEvent returns the payload emitted when the auction winds down
// without settlement.
func NewCancelledEvent(a *Auction) *types.Event { return newAuctionEvent(EventTypeCancelled, a) }

func newAuctionEvent(eventType string, a *Auction) *types.Event {
	attrs := make(map[string]string)
	if a == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	sanitized, err := SanitizeAuction(a)
	if err != nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["registry"] = hex.EncodeToString(sanitized.Registry[:])
	attrs["itemId"] = strconv.FormatUint(sanitized.ItemID, 10)
	attrs["asset"] = hex.EncodeToString(sanitized.Asset[:])
	attrs["floorPrice"] = sanitized.FloorPrice.String()
	attrs["ceilingPrice"] = sanitized.CeilingPrice.String()
	attrs["minIncrement"] = sanitized.MinIncrement.String()
	attrs["startTime"] = strconv.FormatInt(sanitized.StartTime, 10)
	attrs["endTime"] = strconv.FormatInt(sanitized.EndTime, 10)
	attrs["creator"] = hex.EncodeToString(sanitized.Creator[:])
	if sanitized.HasBid {
		attrs["highestBidder"] = hex.EncodeToString(sanitized.HighestBidder[:])
		attrs["highestBid"] = sanitized.HighestBid.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
