package market

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/registry/token"
)

var (
	errNilState  = errors.New("market engine: state not configured")
	errNilItems  = errors.New("market engine: item registry not configured")
	errNilTokens = errors.New("market engine: token ledger not configured")
	errNilVault  = errors.New("market engine: vault address not configured")

	// ErrNotOwnerOrNotApproved is returned when the caller does not own the
	// item or has not approved the market vault as operator.
	ErrNotOwnerOrNotApproved = errors.New("market: caller is not item owner or market not approved")
	// ErrNotListed is returned when no active listing matches the key, or a
	// buy names a different asset or price than the listing.
	ErrNotListed = errors.New("market: item not listed")
	// ErrNotListedOwner is returned when the caller is not the seller of the
	// active listing.
	ErrNotListedOwner = errors.New("market: caller is not the listing seller")
	// ErrNoActiveOffer is returned when no offer exists for the key or the
	// offer does not match the named offerer.
	ErrNoActiveOffer = errors.New("market: no active offer")
	// ErrItemOnAuction is returned when the key already has a live auction.
	ErrItemOnAuction = errors.New("market: item has an active auction")
	// ErrInvalidPrice is returned for nil or non-positive prices.
	ErrInvalidPrice = errors.New("market: price must be positive")
)

type engineState interface {
	ListingPut(*Listing) error
	ListingGet(registry [20]byte, itemID uint64) (*Listing, bool)
	ListingDelete(registry [20]byte, itemID uint64) error
	OfferPut(*Offer) error
	OfferGet(registry [20]byte, itemID uint64) (*Offer, bool)
	OfferDelete(registry [20]byte, itemID uint64) error
	AuctionActive(registry [20]byte, itemID uint64) (bool, error)
}

// ItemRegistry is the unique-item collaborator surface consumed by the
// engine. Custody moves are modelled as plain transfers; operator rights are
// checked before any custody change.
type ItemRegistry interface {
	OwnerOf(registry [20]byte, itemID uint64) ([20]byte, error)
	IsApprovedForAll(registry [20]byte, owner, operator [20]byte) bool
	Transfer(registry [20]byte, from, to [20]byte, itemID uint64) error
}

// TokenLedger is the fungible-balance collaborator surface consumed by the
// engine. Escrow pulls use TransferFrom with the vault as spender; refunds
// and payouts move funds out of the vault with Transfer.
type TokenLedger interface {
	BalanceOf(asset [20]byte, account [20]byte) *big.Int
	Allowance(asset [20]byte, owner, spender [20]byte) *big.Int
	Transfer(asset [20]byte, from, to [20]byte, amount *big.Int) error
	TransferFrom(asset [20]byte, spender, from, to [20]byte, amount *big.Int) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine wires the fixed-price marketplace transitions with the injected
// state backend, the two asset registries and an event emitter. Every
// operation either completes fully or fails with no state change; the
// caller serialises invocations.
type Engine struct {
	state   engineState
	items   ItemRegistry
	tokens  TokenLedger
	emitter events.Emitter
	vault   [20]byte
	nowFn   func() int64
}

// NewEngine creates a market engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
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

// SetVault configures the address at which the market holds item custody and
// fungible escrow.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetEmitter configures the event emitter. Passing nil resets the emitter to
// a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for CreatedAt stamps. Primarily
// intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Vault returns the custody address used by the engine.
func (e *Engine) Vault() [20]byte { return e.vault }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(marketEvent{evt: event})
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

// Listing returns the active listing for the key, if any.
func (e *Engine) Listing(registry [20]byte, itemID uint64) (*Listing, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	listing, ok := e.state.ListingGet(registry, itemID)
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}

// Offer returns the outstanding offer for the key, if any.
func (e *Engine) Offer(registry [20]byte, itemID uint64) (*Offer, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	offer, ok := e.state.OfferGet(registry, itemID)
	if !ok {
		return nil, false
	}
	return offer.Clone(), true
}

// PutOnMarketplace pulls the item into market custody and records a listing.
// A listed item is owned by the vault, so re-listing requires unlist first.
func (e *Engine) PutOnMarketplace(registry [20]byte, itemID uint64, priceAsset [20]byte, price *big.Int, caller [20]byte) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	onAuction, err := e.state.AuctionActive(registry, itemID)
	if err != nil {
		return nil, err
	}
	if onAuction {
		return nil, ErrItemOnAuction
	}
	owner, err := e.items.OwnerOf(registry, itemID)
	if err != nil {
		return nil, err
	}
	if owner != caller || !e.items.IsApprovedForAll(registry, caller, e.vault) {
		return nil, ErrNotOwnerOrNotApproved
	}
	listing := &Listing{
		Registry:   registry,
		ItemID:     itemID,
		PriceAsset: priceAsset,
		Price:      new(big.Int).Set(price),
		Seller:     caller,
		CreatedAt:  e.now(),
	}
	if err := e.state.ListingPut(listing); err != nil {
		return nil, err
	}
	if err := e.items.Transfer(registry, caller, e.vault, itemID); err != nil {
		return nil, err
	}
	e.emit(NewListedEvent(listing))
	return listing.Clone(), nil
}

// PutOffMarketplace removes the listing and returns the item to its seller.
// Any outstanding offer keeps its escrow until the offerer cancels.
func (e *Engine) PutOffMarketplace(registry [20]byte, itemID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, ok := e.state.ListingGet(registry, itemID)
	if !ok || listing.Seller != caller {
		return ErrNotListedOwner
	}
	if err := e.state.ListingDelete(registry, itemID); err != nil {
		return err
	}
	if err := e.items.Transfer(registry, e.vault, listing.Seller, itemID); err != nil {
		return err
	}
	e.emit(NewUnlistedEvent(listing))
	return nil
}

// MakeOffer escrows the offered price at the vault, refunding and replacing
// any prior offer on the same key.
func (e *Engine) MakeOffer(registry [20]byte, itemID uint64, priceAsset [20]byte, price *big.Int, caller [20]byte) (*Offer, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if _, ok := e.state.ListingGet(registry, itemID); !ok {
		return nil, ErrNotListed
	}
	// Escrow first: a failed pull leaves the prior offer untouched.
	if err := e.tokens.TransferFrom(priceAsset, e.vault, caller, e.vault, price); err != nil {
		return nil, err
	}
	if prior, ok := e.state.OfferGet(registry, itemID); ok {
		if err := e.tokens.Transfer(prior.PriceAsset, e.vault, prior.Offerer, prior.Price); err != nil {
			return nil, err
		}
		e.emit(NewOfferRefundedEvent(prior))
	}
	offer := &Offer{
		Registry:   registry,
		ItemID:     itemID,
		PriceAsset: priceAsset,
		Price:      new(big.Int).Set(price),
		Offerer:    caller,
		CreatedAt:  e.now(),
	}
	if err := e.state.OfferPut(offer); err != nil {
		return nil, err
	}
	e.emit(NewOfferMadeEvent(offer))
	return offer.Clone(), nil
}

// CancelOffer refunds the caller's escrow in full and removes the offer.
func (e *Engine) CancelOffer(registry [20]byte, itemID uint64, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	offer, ok := e.state.OfferGet(registry, itemID)
	if !ok || offer.Offerer != caller {
		return ErrNoActiveOffer
	}
	if err := e.state.OfferDelete(registry, itemID); err != nil {
		return err
	}
	if err := e.tokens.Transfer(offer.PriceAsset, e.vault, offer.Offerer, offer.Price); err != nil {
		return err
	}
	e.emit(NewOfferCancelledEvent(offer))
	return nil
}

// AcceptOffer settles the outstanding offer: full escrow to the seller, the
// item to the offerer, both entries removed. No fee is charged on this path.
func (e *Engine) AcceptOffer(registry [20]byte, itemID uint64, offerer [20]byte, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	offer, ok := e.state.OfferGet(registry, itemID)
	if !ok || offer.Offerer != offerer {
		return ErrNoActiveOffer
	}
	listing, ok := e.state.ListingGet(registry, itemID)
	if !ok || listing.Seller != caller {
		return ErrNotListedOwner
	}
	if err := e.state.ListingDelete(registry, itemID); err != nil {
		return err
	}
	if err := e.state.OfferDelete(registry, itemID); err != nil {
		return err
	}
	if err := e.tokens.Transfer(offer.PriceAsset, e.vault, listing.Seller, offer.Price); err != nil {
		return err
	}
	if err := e.items.Transfer(registry, e.vault, offer.Offerer, itemID); err != nil {
		return err
	}
	e.emit(NewOfferAcceptedEvent(offer, listing.Seller))
	return nil
}

// Buy settles a listing directly at its asking price: funds move straight
// from the buyer to the seller without an escrow hold, the item to the buyer.
// No fee is charged on this path.
func (e *Engine) Buy(registry [20]byte, itemID uint64, priceAsset [20]byte, price *big.Int, caller [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, ok := e.state.ListingGet(registry, itemID)
	if !ok || listing.PriceAsset != priceAsset || price == nil || listing.Price.Cmp(price) != 0 {
		return ErrNotListed
	}
	// The payment is validated before the listing is removed so a failed
	// pull cannot leave a half-settled sale.
	if allowed := e.tokens.Allowance(priceAsset, caller, e.vault); allowed.Cmp(price) < 0 {
		return fmt.Errorf("market: buy payment: allowance %s below price %s: %w", allowed, price, token.ErrInsufficientAllowance)
	}
	if balance := e.tokens.BalanceOf(priceAsset, caller); balance.Cmp(price) < 0 {
		return fmt.Errorf("market: buy payment: balance below price %s: %w", price, token.ErrInsufficientBalance)
	}
	if err := e.state.ListingDelete(registry, itemID); err != nil {
		return err
	}
	if err := e.tokens.TransferFrom(priceAsset, e.vault, caller, listing.Seller, price); err != nil {
		return err
	}
	if err := e.items.Transfer(registry, e.vault, caller, itemID); err != nil {
		return err
	}
	e.emit(NewSoldEvent(listing, caller))
	return nil
}
