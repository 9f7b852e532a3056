package core

import (
	"errors"
	"math/big"
	"sync"

	"nftmarket/core/events"
	"nftmarket/core/state"
	"nftmarket/native/auction"
	"nftmarket/native/market"
	"nftmarket/registry/item"
	"nftmarket/registry/token"
	"nftmarket/storage"
)

// ErrNilDatabase is returned when a node is constructed without a backing
// store.
var ErrNilDatabase = errors.New("core: nil database")

// ErrZeroVault is returned when a node is constructed without a custody
// address.
var ErrZeroVault = errors.New("core: vault address unset")

// Node is the central controller. It owns the registries and both trade
// engines and serialises every state-changing operation behind one mutex, so
// each operation observes and produces a consistent global state.
type Node struct {
	db       storage.Database
	stateMu  sync.Mutex
	state    *state.Manager
	items    *item.Ledger
	tokens   *token.Ledger
	market   *market.Engine
	auctions *auction.Engine
	vault    [20]byte
}

// NewNode wires the state manager, the asset registries and both engines over
// the supplied database. The fee policy applies to auction settlement only.
func NewNode(db storage.Database, vault, feeRecipient [20]byte, feeBps uint32) (*Node, error) {
	if db == nil {
		return nil, ErrNilDatabase
	}
	if vault == ([20]byte{}) {
		return nil, ErrZeroVault
	}
	n := &Node{
		db:     db,
		state:  state.NewManager(db),
		items:  item.NewLedger(),
		tokens: token.NewLedger(),
		vault:  vault,
	}

	marketEngine := market.NewEngine()
	marketEngine.SetState(n.state)
	marketEngine.SetItems(n.items)
	marketEngine.SetTokens(n.tokens)
	marketEngine.SetVault(vault)
	n.market = marketEngine

	auctionEngine := auction.NewEngine()
	auctionEngine.SetState(n.state)
	auctionEngine.SetItems(n.items)
	auctionEngine.SetTokens(n.tokens)
	auctionEngine.SetVault(vault)
	auctionEngine.SetFeePolicy(feeRecipient, feeBps)
	n.auctions = auctionEngine

	return n, nil
}

// SetEmitter installs the event emitter on both engines.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.market.SetEmitter(emitter)
	n.auctions.SetEmitter(emitter)
}

// SetNowFunc overrides the time source on both engines. Primarily intended
// for tests.
func (n *Node) SetNowFunc(now func() int64) {
	n.market.SetNowFunc(now)
	n.auctions.SetNowFunc(now)
}

// Vault returns the custody address shared by both engines.
func (n *Node) Vault() [20]byte { return n.vault }

// --- Registry administration ---

// RegisterAsset registers a fungible asset with a hard supply cap.
func (n *Node) RegisterAsset(asset [20]byte, maxSupply *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.tokens.RegisterAsset(asset, maxSupply)
}

// MintToken credits newly minted units of the asset to the account.
func (n *Node) MintToken(asset [20]byte, account [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.tokens.Mint(asset, account, amount)
}

// MintItem records a new unique item owned by the account.
func (n *Node) MintItem(registry [20]byte, owner [20]byte, itemID uint64) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.items.Mint(registry, owner, itemID)
}

// Approve sets the vault's spending allowance on behalf of the owner.
func (n *Node) Approve(asset [20]byte, owner [20]byte, amount *big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.tokens.Approve(asset, owner, n.vault, amount)
}

// SetApprovalForAll grants or revokes the vault's operator rights over every
// item the owner holds in the registry.
func (n *Node) SetApprovalForAll(registry [20]byte, owner [20]byte, approved bool) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.items.SetApprovalForAll(registry, owner, n.vault, approved)
}

// --- Marketplace operations ---

// PutOnMarketplace lists the item at a fixed asking price.
func (n *Node) PutOnMarketplace(registry [20]byte, itemID uint64, priceAsset [20]byte, price *big.Int, caller [20]byte) (*market.Listing, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.PutOnMarketplace(registry, itemID, priceAsset, price, caller)
}

// PutOffMarketplace removes the caller's listing and returns the item.
func (n *Node) PutOffMarketplace(registry [20]byte, itemID uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.PutOffMarketplace(registry, itemID, caller)
}

// MakeOffer escrows an offer against a listed item.
func (n *Node) MakeOffer(registry [20]byte, itemID uint64, priceAsset [20]byte, price *big.Int, caller [20]byte) (*market.Offer, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.MakeOffer(registry, itemID, priceAsset, price, caller)
}

// CancelOffer refunds and removes the caller's outstanding offer.
func (n *Node) CancelOffer(registry [20]byte, itemID uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.CancelOffer(registry, itemID, caller)
}

// AcceptOffer settles the named offer against the caller's listing.
func (n *Node) AcceptOffer(registry [20]byte, itemID uint64, offerer [20]byte, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.AcceptOffer(registry, itemID, offerer, caller)
}

// Buy settles a listing directly at its exact asking price.
func (n *Node) Buy(registry [20]byte, itemID uint64, priceAsset [20]byte, price *big.Int, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.Buy(registry, itemID, priceAsset, price, caller)
}

// --- Auction operations ---

// CreateAuction starts an English auction with a buy-now ceiling.
func (n *Node) CreateAuction(registry [20]byte, itemID uint64, asset [20]byte, floor, ceiling, minIncrement *big.Int, start, end int64, caller [20]byte) (*auction.Auction, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.auctions.Create(registry, itemID, asset, floor, ceiling, minIncrement, start, end, caller)
}

// PlaceBid escrows a bid; a bid at or above the ceiling settles immediately.
func (n *Node) PlaceBid(registry [20]byte, itemID uint64, amount *big.Int, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.auctions.PlaceBid(registry, itemID, amount, caller)
}

// CompleteAuction finalizes the auction for an eligible caller.
func (n *Node) CompleteAuction(registry [20]byte, itemID uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.auctions.Complete(registry, itemID, caller)
}

// CancelAuction winds the auction down and returns the item to its creator.
func (n *Node) CancelAuction(registry [20]byte, itemID uint64, caller [20]byte) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.auctions.Cancel(registry, itemID, caller)
}

// --- Queries ---

// Listing returns the active listing for the key, if any.
func (n *Node) Listing(registry [20]byte, itemID uint64) (*market.Listing, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.Listing(registry, itemID)
}

// Offer returns the outstanding offer for the key, if any.
func (n *Node) Offer(registry [20]byte, itemID uint64) (*market.Offer, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.market.Offer(registry, itemID)
}

// Auction returns the active auction for the key, if any.
func (n *Node) Auction(registry [20]byte, itemID uint64) (*auction.Auction, bool) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.auctions.Auction(registry, itemID)
}

// OwnerOf returns the current owner of the item.
func (n *Node) OwnerOf(registry [20]byte, itemID uint64) ([20]byte, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.items.OwnerOf(registry, itemID)
}

// BalanceOf returns the account's balance of the asset.
func (n *Node) BalanceOf(asset [20]byte, account [20]byte) *big.Int {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.tokens.BalanceOf(asset, account)
}

// Allowance returns the vault's remaining spending allowance for the owner.
func (n *Node) Allowance(asset [20]byte, owner [20]byte) *big.Int {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.tokens.Allowance(asset, owner, n.vault)
}
