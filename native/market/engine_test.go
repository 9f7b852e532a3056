package market

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/registry/item"
	"nftmarket/registry/token"
)

type storeKey struct {
	registry [20]byte
	itemID   uint64
}

type mockState struct {
	listings map[storeKey]*Listing
	offers   map[storeKey]*Offer
	auctions map[storeKey]bool
}

func newMockState() *mockState {
	return &mockState{
		listings: make(map[storeKey]*Listing),
		offers:   make(map[storeKey]*Offer),
		auctions: make(map[storeKey]bool),
	}
}

func (m *mockState) ListingPut(l *Listing) error {
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return err
	}
	m.listings[storeKey{sanitized.Registry, sanitized.ItemID}] = sanitized.Clone()
	return nil
}

func (m *mockState) ListingGet(registry [20]byte, itemID uint64) (*Listing, bool) {
	listing, ok := m.listings[storeKey{registry, itemID}]
	if !ok {
		return nil, false
	}
	return listing.Clone(), true
}

func (m *mockState) ListingDelete(registry [20]byte, itemID uint64) error {
	delete(m.listings, storeKey{registry, itemID})
	return nil
}

func (m *mockState) OfferPut(o *Offer) error {
	sanitized, err := SanitizeOffer(o)
	if err != nil {
		return err
	}
	m.offers[storeKey{sanitized.Registry, sanitized.ItemID}] = sanitized.Clone()
	return nil
}

func (m *mockState) OfferGet(registry [20]byte, itemID uint64) (*Offer, bool) {
	offer, ok := m.offers[storeKey{registry, itemID}]
	if !ok {
		return nil, false
	}
	return offer.Clone(), true
}

func (m *mockState) OfferDelete(registry [20]byte, itemID uint64) error {
	delete(m.offers, storeKey{registry, itemID})
	return nil
}

func (m *mockState) AuctionActive(registry [20]byte, itemID uint64) (bool, error) {
	return m.auctions[storeKey{registry, itemID}], nil
}

type capturingEmitter struct {
	events []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) {
	c.events = append(c.events, evt)
}

func (c *capturingEmitter) seen(eventType string) bool {
	for _, evt := range c.events {
		if evt.EventType() == eventType {
			return true
		}
	}
	return false
}

func (c *capturingEmitter) last(eventType string) *types.Event {
	for i := len(c.events) - 1; i >= 0; i-- {
		if wrapper, ok := c.events[i].(marketEvent); ok && wrapper.evt != nil && wrapper.evt.Type == eventType {
			return wrapper.evt
		}
	}
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type testEnv struct {
	engine   *Engine
	state    *mockState
	items    *item.Ledger
	tokens   *token.Ledger
	emitter  *capturingEmitter
	registry [20]byte
	asset    [20]byte
	vault    [20]byte
	seller   [20]byte
	buyer    [20]byte
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:    newMockState(),
		items:    item.NewLedger(),
		tokens:   token.NewLedger(),
		emitter:  &capturingEmitter{},
		registry: newTestAddress(0x10),
		asset:    newTestAddress(0xA0),
		vault:    newTestAddress(0xEE),
		seller:   newTestAddress(0x01),
		buyer:    newTestAddress(0x02),
	}
	engine := NewEngine()
	engine.SetState(env.state)
	engine.SetItems(env.items)
	engine.SetTokens(env.tokens)
	engine.SetVault(env.vault)
	engine.SetEmitter(env.emitter)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	env.engine = engine

	if err := env.tokens.RegisterAsset(env.asset, big.NewInt(21_000)); err != nil {
		t.Fatalf("RegisterAsset error: %v", err)
	}
	if err := env.tokens.Mint(env.asset, env.buyer, big.NewInt(5_000)); err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	if err := env.items.Mint(env.registry, env.seller, 1); err != nil {
		t.Fatalf("item mint error: %v", err)
	}
	if err := env.items.SetApprovalForAll(env.registry, env.seller, env.vault, true); err != nil {
		t.Fatalf("SetApprovalForAll error: %v", err)
	}
	return env
}

func (env *testEnv) list(t *testing.T, price int64) *Listing {
	t.Helper()
	listing, err := env.engine.PutOnMarketplace(env.registry, 1, env.asset, big.NewInt(price), env.seller)
	if err != nil {
		t.Fatalf("PutOnMarketplace error: %v", err)
	}
	return listing
}

func (env *testEnv) approve(t *testing.T, owner [20]byte, amount int64) {
	t.Helper()
	if err := env.tokens.Approve(env.asset, owner, env.vault, big.NewInt(amount)); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
}

func (env *testEnv) balance(account [20]byte) int64 {
	return env.tokens.BalanceOf(env.asset, account).Int64()
}

func TestPutOnMarketplaceTakesCustody(t *testing.T) {
	env := newTestEnv(t)
	listing := env.list(t, 10)

	if listing.Seller != env.seller {
		t.Fatalf("seller = %x, want %x", listing.Seller, env.seller)
	}
	owner, err := env.items.OwnerOf(env.registry, 1)
	if err != nil {
		t.Fatalf("OwnerOf error: %v", err)
	}
	if owner != env.vault {
		t.Fatalf("item owner = %x, want vault %x", owner, env.vault)
	}
	if !env.emitter.seen(EventTypeListed) {
		t.Fatalf("expected listed event")
	}
}

func TestPutOnMarketplaceAuthorization(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.PutOnMarketplace(env.registry, 1, env.asset, big.NewInt(10), env.buyer); !errors.Is(err, ErrNotOwnerOrNotApproved) {
		t.Fatalf("expected ErrNotOwnerOrNotApproved for non-owner, got %v", err)
	}

	if err := env.items.SetApprovalForAll(env.registry, env.seller, env.vault, false); err != nil {
		t.Fatalf("revoke error: %v", err)
	}
	if _, err := env.engine.PutOnMarketplace(env.registry, 1, env.asset, big.NewInt(10), env.seller); !errors.Is(err, ErrNotOwnerOrNotApproved) {
		t.Fatalf("expected ErrNotOwnerOrNotApproved without approval, got %v", err)
	}

	if _, err := env.engine.PutOnMarketplace(env.registry, 99, env.asset, big.NewInt(10), env.seller); !errors.Is(err, item.ErrInvalidTokenID) {
		t.Fatalf("expected ErrInvalidTokenID, got %v", err)
	}
}

func TestPutOnMarketplaceBlockedByAuction(t *testing.T) {
	env := newTestEnv(t)
	env.state.auctions[storeKey{env.registry, 1}] = true

	if _, err := env.engine.PutOnMarketplace(env.registry, 1, env.asset, big.NewInt(10), env.seller); !errors.Is(err, ErrItemOnAuction) {
		t.Fatalf("expected ErrItemOnAuction, got %v", err)
	}
}

func TestPutOffMarketplace(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)

	if err := env.engine.PutOffMarketplace(env.registry, 1, env.buyer); !errors.Is(err, ErrNotListedOwner) {
		t.Fatalf("expected ErrNotListedOwner, got %v", err)
	}
	if err := env.engine.PutOffMarketplace(env.registry, 1, env.seller); err != nil {
		t.Fatalf("PutOffMarketplace error: %v", err)
	}
	owner, err := env.items.OwnerOf(env.registry, 1)
	if err != nil {
		t.Fatalf("OwnerOf error: %v", err)
	}
	if owner != env.seller {
		t.Fatalf("item owner = %x, want seller", owner)
	}
	if _, ok := env.engine.Listing(env.registry, 1); ok {
		t.Fatalf("listing should be removed")
	}
	if err := env.engine.PutOffMarketplace(env.registry, 1, env.seller); !errors.Is(err, ErrNotListedOwner) {
		t.Fatalf("expected ErrNotListedOwner on missing listing, got %v", err)
	}
}

func TestMakeOfferRequiresListing(t *testing.T) {
	env := newTestEnv(t)
	env.approve(t, env.buyer, 10)

	if _, err := env.engine.MakeOffer(env.registry, 1, env.asset, big.NewInt(10), env.buyer); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed, got %v", err)
	}
}

func TestMakeOfferEscrowsFunds(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)
	env.approve(t, env.buyer, 10)

	offer, err := env.engine.MakeOffer(env.registry, 1, env.asset, big.NewInt(10), env.buyer)
	if err != nil {
		t.Fatalf("MakeOffer error: %v", err)
	}
	if offer.Price.Int64() != 10 {
		t.Fatalf("offer price = %s, want 10", offer.Price)
	}
	if got := env.balance(env.vault); got != 10 {
		t.Fatalf("vault balance = %d, want 10", got)
	}
	if got := env.balance(env.buyer); got != 4_990 {
		t.Fatalf("buyer balance = %d, want 4990", got)
	}
}

func TestMakeOfferReplacesAndRefundsPrior(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)
	second := newTestAddress(0x03)
	if err := env.tokens.Mint(env.asset, second, big.NewInt(5_000)); err != nil {
		t.Fatalf("Mint error: %v", err)
	}
	env.approve(t, env.buyer, 10)
	env.approve(t, second, 12)

	if _, err := env.engine.MakeOffer(env.registry, 1, env.asset, big.NewInt(10), env.buyer); err != nil {
		t.Fatalf("first MakeOffer error: %v", err)
	}
	if _, err := env.engine.MakeOffer(env.registry, 1, env.asset, big.NewInt(12), second); err != nil {
		t.Fatalf("second MakeOffer error: %v", err)
	}

	// First offerer is made whole; only the superseding escrow remains.
	if got := env.balance(env.buyer); got != 5_000 {
		t.Fatalf("first offerer balance = %d, want 5000", got)
	}
	if got := env.balance(env.vault); got != 12 {
		t.Fatalf("vault balance = %d, want 12", got)
	}
	if !env.emitter.seen(EventTypeOfferRefunded) {
		t.Fatalf("expected offer refunded event")
	}
	offer, ok := env.engine.Offer(env.registry, 1)
	if !ok || offer.Offerer != second {
		t.Fatalf("outstanding offer should belong to the second offerer")
	}
}

func TestMakeOfferFailedPullKeepsPriorOffer(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)
	env.approve(t, env.buyer, 10)
	if _, err := env.engine.MakeOffer(env.registry, 1, env.asset, big.NewInt(10), env.buyer); err != nil {
		t.Fatalf("MakeOffer error: %v", err)
	}

	second := newTestAddress(0x03)
	if _, err := env.engine.MakeOffer(env.registry, 1, env.asset, big.NewInt(12), second); !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	offer, ok := env.engine.Offer(env.registry, 1)
	if !ok || offer.Offerer != env.buyer {
		t.Fatalf("prior offer should survive a failed replacement")
	}
	if got := env.balance(env.vault); got != 10 {
		t.Fatalf("vault balance = %d, want 10", got)
	}
}

func TestCancelOffer(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)
	env.approve(t, env.buyer, 10)
	if _, err := env.engine.MakeOffer(env.registry, 1, env.asset, big.NewInt(10), env.buyer); err != nil {
		t.Fatalf("MakeOffer error: %v", err)
	}

	if err := env.engine.CancelOffer(env.registry, 1, env.seller); !errors.Is(err, ErrNoActiveOffer) {
		t.Fatalf("expected ErrNoActiveOffer for non-offerer, got %v", err)
	}
	if err := env.engine.CancelOffer(env.registry, 1, env.buyer); err != nil {
		t.Fatalf("CancelOffer error: %v", err)
	}
	if got := env.balance(env.buyer); got != 5_000 {
		t.Fatalf("buyer balance = %d, want 5000", got)
	}
	if got := env.balance(env.vault); got != 0 {
		t.Fatalf("vault balance = %d, want 0", got)
	}
	if err := env.engine.CancelOffer(env.registry, 1, env.buyer); !errors.Is(err, ErrNoActiveOffer) {
		t.Fatalf("expected ErrNoActiveOffer on repeat cancel, got %v", err)
	}
}

func TestAcceptOfferSettlesWithoutFee(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)
	env.approve(t, env.buyer, 10)
	if _, err := env.engine.MakeOffer(env.registry, 1, env.asset, big.NewInt(10), env.buyer); err != nil {
		t.Fatalf("MakeOffer error: %v", err)
	}

	if err := env.engine.AcceptOffer(env.registry, 1, env.buyer, env.buyer); !errors.Is(err, ErrNotListedOwner) {
		t.Fatalf("expected ErrNotListedOwner for non-seller, got %v", err)
	}
	if err := env.engine.AcceptOffer(env.registry, 1, newTestAddress(0x09), env.seller); !errors.Is(err, ErrNoActiveOffer) {
		t.Fatalf("expected ErrNoActiveOffer for mismatched offerer, got %v", err)
	}
	if err := env.engine.AcceptOffer(env.registry, 1, env.buyer, env.seller); err != nil {
		t.Fatalf("AcceptOffer error: %v", err)
	}

	// Full price to the seller, item to the offerer, both entries cleared.
	if got := env.balance(env.seller); got != 10 {
		t.Fatalf("seller balance = %d, want 10", got)
	}
	owner, err := env.items.OwnerOf(env.registry, 1)
	if err != nil {
		t.Fatalf("OwnerOf error: %v", err)
	}
	if owner != env.buyer {
		t.Fatalf("item owner = %x, want offerer", owner)
	}
	if _, ok := env.engine.Listing(env.registry, 1); ok {
		t.Fatalf("listing should be cleared")
	}
	if _, ok := env.engine.Offer(env.registry, 1); ok {
		t.Fatalf("offer should be cleared")
	}
	if !env.emitter.seen(EventTypeOfferAccepted) {
		t.Fatalf("expected offer accepted event")
	}
}

func TestBuyRequiresExactMatch(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)
	env.approve(t, env.buyer, 100)

	if err := env.engine.Buy(env.registry, 1, env.asset, big.NewInt(9), env.buyer); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed for price mismatch, got %v", err)
	}
	if err := env.engine.Buy(env.registry, 1, newTestAddress(0xA1), big.NewInt(10), env.buyer); !errors.Is(err, ErrNotListed) {
		t.Fatalf("expected ErrNotListed for asset mismatch, got %v", err)
	}
}

func TestBuySettlesDirectly(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)
	env.approve(t, env.buyer, 10)

	if err := env.engine.Buy(env.registry, 1, env.asset, big.NewInt(10), env.buyer); err != nil {
		t.Fatalf("Buy error: %v", err)
	}
	if got := env.balance(env.seller); got != 10 {
		t.Fatalf("seller balance = %d, want 10", got)
	}
	if got := env.balance(env.vault); got != 0 {
		t.Fatalf("vault balance = %d, want 0 (no escrow hold on buy)", got)
	}
	owner, err := env.items.OwnerOf(env.registry, 1)
	if err != nil {
		t.Fatalf("OwnerOf error: %v", err)
	}
	if owner != env.buyer {
		t.Fatalf("item owner = %x, want buyer", owner)
	}
	evt := env.emitter.last(EventTypeSold)
	if evt == nil || evt.Attributes["price"] != "10" {
		t.Fatalf("sold event missing or wrong price: %+v", evt)
	}
}

func TestBuyFailsAtomically(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 10)

	// No allowance: operation must fail with zero side effects.
	if err := env.engine.Buy(env.registry, 1, env.asset, big.NewInt(10), env.buyer); !errors.Is(err, token.ErrInsufficientAllowance) {
		t.Fatalf("expected ErrInsufficientAllowance, got %v", err)
	}
	if _, ok := env.engine.Listing(env.registry, 1); !ok {
		t.Fatalf("listing should survive failed buy")
	}
	owner, err := env.items.OwnerOf(env.registry, 1)
	if err != nil {
		t.Fatalf("OwnerOf error: %v", err)
	}
	if owner != env.vault {
		t.Fatalf("custody should remain with the vault")
	}
}

func TestBuySurfacesInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	env.list(t, 6_000)
	env.approve(t, env.buyer, 6_000)

	// Allowance covers the price but the buyer only holds 5000.
	if err := env.engine.Buy(env.registry, 1, env.asset, big.NewInt(6_000), env.buyer); !errors.Is(err, token.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if _, ok := env.engine.Listing(env.registry, 1); !ok {
		t.Fatalf("listing should survive failed buy")
	}
	if got := env.balance(env.buyer); got != 5_000 {
		t.Fatalf("buyer balance = %d, want 5000", got)
	}
}
