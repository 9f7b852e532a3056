package auction

import (
	"errors"
	"math/big"
	"time"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/native/fees"
)

var (
	errNilState  = errors.New("auction engine: state not configured")
	errNilItems  = errors.New("auction engine: item registry not configured")
	errNilTokens = errors.New("auction engine: token ledger not configured")
	errNilVault  = errors.New("auction engine: vault address not configured")

	// ErrNotOwnerOrNotApproved is returned when the caller does not own the
	// item or has not approved the market vault as operator.
	ErrNotOwnerOrNotApproved = errors.New("auction: caller is not item owner or market not approved")
	// ErrInvalidFloorPrice is returned for nil or non-positive floor prices.
	ErrInvalidFloorPrice = errors.New("auction: floor price must be positive")
	// ErrInvalidCeilingPrice is returned when the ceiling is below the floor.
	ErrInvalidCeilingPrice = errors.New("auction: invalid ceiling price")
	// ErrInvalidIncrement is returned for nil or negative bid increments.
	ErrInvalidIncrement = errors.New("auction: increment must be non-negative")
	// ErrInvalidSchedule is returned when the start time is not before the
	// end time.
	ErrInvalidSchedule = errors.New("auction: start time must precede end time")
	// ErrNoActiveAuction is returned when no auction exists for the key.
	ErrNoActiveAuction = errors.New("auction: no active auction")
	// ErrAuctionNotStarted is returned for bids placed before the start time.
	ErrAuctionNotStarted = errors.New("auction: auction not started")
	// ErrAuctionEnded is returned for bids placed at or after the end time.
	ErrAuctionEnded = errors.New("auction: auction ended")
	// ErrBelowMinimumBid is returned when a bid does not reach the floor
	// price or the current highest bid plus the minimum increment.
	ErrBelowMinimumBid = errors.New("auction: below minimum bid")
	// ErrNotAuctionCreator is returned when a cancel caller is not the
	// auction creator.
	ErrNotAuctionCreator = errors.New("auction: caller is not the auction creator")
	// ErrAuctionAlreadyStarted is returned when cancellation is attempted
	// while bidding is live and unresolved.
	ErrAuctionAlreadyStarted = errors.New("auction: auction already started")
	// ErrNotEligibleToComplete is returned when the caller may not finalize
	// the auction, or may not finalize it yet.
	ErrNotEligibleToComplete = errors.New("auction: caller not eligible to complete")
	// ErrItemListed is returned when the key already has a marketplace
	// listing.
	ErrItemListed = errors.New("auction: item has an active listing")
)

type engineState interface {
	AuctionPut(*Auction) error
	AuctionGet(registry [20]byte, itemID uint64) (*Auction, bool)
	AuctionDelete(registry [20]byte, itemID uint64) error
	ListingActive(registry [20]byte, itemID uint64) (bool, error)
}

// ItemRegistry is the unique-item collaborator surface consumed by the
// engine.
type ItemRegistry interface {
	OwnerOf(registry [20]byte, itemID uint64) ([20]byte, error)
	IsApprovedForAll(registry [20]byte, owner, operator [20]byte) bool
	Transfer(registry [20]byte, from, to [20]byte, itemID uint64) error
}

// TokenLedger is the fungible-balance collaborator surface consumed by the
// engine.
type TokenLedger interface {
	BalanceOf(asset [20]byte, account [20]byte) *big.Int
	Allowance(asset [20]byte, owner, spender [20]byte) *big.Int
	Transfer(asset [20]byte, from, to [20]byte, amount *big.Int) error
	TransferFrom(asset [20]byte, spender, from, to [20]byte, amount *big.Int) error
}

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// Engine drives the English-auction state machine. Custody and escrow are
// held at the vault address; settlement splits the winning bid between the
// creator and the fee recipient. The caller serialises invocations and every
// operation either completes fully or fails with no state change.
type Engine struct {
	state        engineState
	items        ItemRegistry
	tokens       TokenLedger
	emitter      events.Emitter
	vault        [20]byte
	feeRecipient [20]byte
	feeBps       uint32
	nowFn        func() int64
}

// NewEngine creates an auction engine with a no-op emitter and a zero fee
// schedule. Callers configure collaborators via the setters.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetItems configures the unique-item registry collaborator.
func (e *Engine) SetItems(items ItemRegistry) { e.items = items }

// SetTokens configures the fungible-balance registry collaborator.
func (e *Engine) SetTokens(tokens TokenLedger) { e.tokens = tokens }

// SetVault configures the custody and escrow address.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetFeePolicy configures the settlement fee split. Bps above 10000 are
// rejected at settlement time by the fee engine.
func (e *Engine) SetFeePolicy(recipient [20]byte, bps uint32) {
	e.feeRecipient = recipient
	e.feeBps = bps
}

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for schedule comparisons.
// Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(auctionEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.items == nil:
		return errNilItems
	case e.tokens == nil:
		return errNilTokens
	case e.vault == ([20]byte{}):
		return errNilVault
	}
	return nil
}

// Auction returns the active auction for the key, if any.
func (e *Engine) Auction(registry [20]byte, itemID uint64) (*Auction, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	a, ok := e.state.AuctionGet(registry, itemID)
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Create pulls the item into auction custody and records a new auction with
// no highest bidder.
func (e *Engine) Create(registry [20]byte, itemID uint64, asset [20]byte, floor, ceiling, minIncrement *big.Int, start, end int64, caller [20]byte) (*Auction, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if floor == nil || floor.Sign() <= 0 {
		return nil, ErrInvalidFloorPrice
	}
	if ceiling == nil || ceiling.Cmp(floor) < 0 {
		return nil, ErrInvalidCeilingPrice
	}
	if minIncrement == nil || minIncrement.Sign() < 0 {
		return nil, ErrInvalidIncrement
	}
	if start >= end {
		return nil, ErrInvalidSchedule
	}
	listed, err := e.state.ListingActive(registry, itemID)
	if err != nil {
		return nil, err
	}
	if listed {
		return nil, ErrItemListed
	}
	owner, err := e.items.OwnerOf(registry, itemID)
	if err != nil {
		return nil, err
	}
	if owner != caller || !e.items.IsApprovedForAll(registry, caller, e.vault) {
		return nil, ErrNotOwnerOrNotApproved
	}
	a := &Auction{
		Registry:     registry,
		ItemID:       itemID,
		Asset:        asset,
		FloorPrice:   new(big.Int).Set(floor),
		CeilingPrice: new(big.Int).Set(ceiling),
		MinIncrement: new(big.Int).Set(minIncrement),
		StartTime:    start,
		EndTime:      end,
		Creator:      caller,
		HighestBid:   big.NewInt(0),
		CreatedAt:    e.now(),
	}
	if err := e.state.AuctionPut(a); err != nil {
		return nil, err
	}
	if err := e.items.Transfer(registry, caller, e.vault, itemID); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(a))
	return a.Clone(), nil
}

// PlaceBid escrows the bid amount, refunds the superseded bidder in full and
// records the caller as highest. A bid at or above the ceiling price settles
// the auction within the same operation.
func (e *Engine) PlaceBid(registry [20]byte, itemID uint64, amount *big.Int, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	a, ok := e.state.AuctionGet(registry, itemID)
	if !ok {
		return ErrNoActiveAuction
	}
	switch a.PhaseAt(e.now()) {
	case PhasePending:
		return ErrAuctionNotStarted
	case PhaseEnded:
		return ErrAuctionEnded
	}
	if amount == nil || amount.Cmp(a.MinimumBid()) < 0 {
		return ErrBelowMinimumBid
	}
	// Escrow before effect: a failed pull leaves the previous bid intact.
	if err := e.tokens.TransferFrom(a.Asset, e.vault, caller, e.vault, amount); err != nil {
		return err
	}
	if a.HasBid {
		if err := e.tokens.Transfer(a.Asset, e.vault, a.HighestBidder, a.HighestBid); err != nil {
			return err
		}
		e.emit(NewBidRefundedEvent(a, a.HighestBidder, a.HighestBid.String()))
	}
	a.HasBid = true
	a.HighestBidder = caller
	a.HighestBid = new(big.Int).Set(amount)
	if err := e.state.AuctionPut(a); err != nil {
		return err
	}
	e.emit(NewBidEvent(a))
	if amount.Cmp(a.CeilingPrice) >= 0 {
		return e.settle(a)
	}
	return nil
}

// Complete finalizes the auction. The creator may complete early; the highest
// bidder and the fee recipient may complete once the end time has passed.
// Completing an auction that never received a bid returns the item to its
// creator with no payment.
func (e *Engine) Complete(registry [20]byte, itemID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	a, ok := e.state.AuctionGet(registry, itemID)
	if !ok {
		return ErrNoActiveAuction
	}
	eligible := caller == a.Creator || caller == e.feeRecipient || (a.HasBid && caller == a.HighestBidder)
	if !eligible {
		return ErrNotEligibleToComplete
	}
	if e.now() < a.EndTime && caller != a.Creator {
		return ErrNotEligibleToComplete
	}
	if !a.HasBid {
		return e.windDown(a)
	}
	return e.settle(a)
}

// Cancel winds the auction down without settlement: the item returns to the
// creator and any held bid is refunded. Cancellation is blocked only while
// bidding is live and unresolved.
func (e *Engine) Cancel(registry [20]byte, itemID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	a, ok := e.state.AuctionGet(registry, itemID)
	if !ok {
		return ErrNoActiveAuction
	}
	if caller != a.Creator {
		return ErrNotAuctionCreator
	}
	if a.PhaseAt(e.now()) == PhaseLive && a.HasBid {
		return ErrAuctionAlreadyStarted
	}
	return e.windDown(a)
}

// settle removes the auction, splits the winning bid between the creator and
// the fee recipient and releases the item to the highest bidder. Internal
// state is finalized before any external transfer so a reentrant call
// observes the auction as already gone.
func (e *Engine) settle(a *Auction) error {
	payout, fee, err := fees.Split(a.HighestBid, e.feeBps)
	if err != nil {
		return err
	}
	if err := e.state.AuctionDelete(a.Registry, a.ItemID); err != nil {
		return err
	}
	if payout.Sign() > 0 {
		if err := e.tokens.Transfer(a.Asset, e.vault, a.Creator, payout); err != nil {
			return err
		}
	}
	if fee.Sign() > 0 {
		if err := e.tokens.Transfer(a.Asset, e.vault, e.feeRecipient, fee); err != nil {
			return err
		}
	}
	if err := e.items.Transfer(a.Registry, e.vault, a.HighestBidder, a.ItemID); err != nil {
		return err
	}
	e.emit(NewSettledEvent(a, payout.String(), fee.String()))
	return nil
}

// windDown removes the auction, refunds any held bid in full and returns the
// item to the creator.
func (e *Engine) windDown(a *Auction) error {
	if err := e.state.AuctionDelete(a.Registry, a.ItemID); err != nil {
		return err
	}
	if a.HasBid {
		if err := e.tokens.Transfer(a.Asset, e.vault, a.HighestBidder, a.HighestBid); err != nil {
			return err
		}
		e.emit(NewBidRefundedEvent(a, a.HighestBidder, a.HighestBid.String()))
	}
	if err := e.items.Transfer(a.Registry, e.vault, a.Creator, a.ItemID); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(a))
	return nil
}
