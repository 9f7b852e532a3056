package core

import (
	"errors"
	"math/big"
	"testing"

	"nftmarket/native/auction"
	"nftmarket/native/market"
	"nftmarket/storage"
)

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type nodeEnv struct {
	node         *Node
	registry     [20]byte
	asset        [20]byte
	vault        [20]byte
	feeRecipient [20]byte
	seller       [20]byte
	buyer        [20]byte
	now          int64
}

func newNodeEnv(t *testing.T) *nodeEnv {
	t.Helper()
	env := &nodeEnv{
		registry:     testAddress(0x10),
		asset:        testAddress(0xA0),
		vault:        testAddress(0xEE),
		feeRecipient: testAddress(0xFE),
		seller:       testAddress(0x01),
		buyer:        testAddress(0x02),
		now:          1_700_000_000,
	}
	node, err := NewNode(storage.NewMemDB(), env.vault, env.feeRecipient, 500)
	if err != nil {
		t.Fatalf("NewNode error: %v", err)
	}
	node.SetNowFunc(func() int64 { return env.now })
	env.node = node

	if err := node.RegisterAsset(env.asset, big.NewInt(21_000)); err != nil {
		t.Fatalf("RegisterAsset error: %v", err)
	}
	if err := node.MintToken(env.asset, env.buyer, big.NewInt(5_000)); err != nil {
		t.Fatalf("MintToken error: %v", err)
	}
	if err := node.MintItem(env.registry, env.seller, 1); err != nil {
		t.Fatalf("MintItem error: %v", err)
	}
	if err := node.SetApprovalForAll(env.registry, env.seller, true); err != nil {
		t.Fatalf("SetApprovalForAll error: %v", err)
	}
	return env
}

func TestNewNodeValidation(t *testing.T) {
	if _, err := NewNode(nil, testAddress(0xEE), testAddress(0xFE), 500); !errors.Is(err, ErrNilDatabase) {
		t.Fatalf("expected ErrNilDatabase, got %v", err)
	}
	if _, err := NewNode(storage.NewMemDB(), [20]byte{}, testAddress(0xFE), 500); !errors.Is(err, ErrZeroVault) {
		t.Fatalf("expected ErrZeroVault, got %v", err)
	}
}

func TestFixedPriceOfferFlow(t *testing.T) {
	env := newNodeEnv(t)
	node := env.node

	if _, err := node.PutOnMarketplace(env.registry, 1, env.asset, big.NewInt(100), env.seller); err != nil {
		t.Fatalf("PutOnMarketplace error: %v", err)
	}
	if err := node.Approve(env.asset, env.buyer, big.NewInt(90)); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if _, err := node.MakeOffer(env.registry, 1, env.asset, big.NewInt(90), env.buyer); err != nil {
		t.Fatalf("MakeOffer error: %v", err)
	}
	if got := node.BalanceOf(env.asset, env.vault).Int64(); got != 90 {
		t.Fatalf("vault balance = %d, want 90", got)
	}
	if err := node.AcceptOffer(env.registry, 1, env.buyer, env.seller); err != nil {
		t.Fatalf("AcceptOffer error: %v", err)
	}

	// Full offer price to the seller; the item to the offerer.
	if got := node.BalanceOf(env.asset, env.seller).Int64(); got != 90 {
		t.Fatalf("seller balance = %d, want 90", got)
	}
	owner, err := node.OwnerOf(env.registry, 1)
	if err != nil {
		t.Fatalf("OwnerOf error: %v", err)
	}
	if owner != env.buyer {
		t.Fatalf("item owner = %x, want buyer", owner)
	}
	if _, ok := node.Listing(env.registry, 1); ok {
		t.Fatalf("listing should be cleared")
	}
	if _, ok := node.Offer(env.registry, 1); ok {
		t.Fatalf("offer should be cleared")
	}
}

func TestFixedPriceBuyFlow(t *testing.T) {
	env := newNodeEnv(t)
	node := env.node

	if _, err := node.PutOnMarketplace(env.registry, 1, env.asset, big.NewInt(100), env.seller); err != nil {
		t.Fatalf("PutOnMarketplace error: %v", err)
	}
	if err := node.Approve(env.asset, env.buyer, big.NewInt(100)); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := node.Buy(env.registry, 1, env.asset, big.NewInt(100), env.buyer); err != nil {
		t.Fatalf("Buy error: %v", err)
	}
	if got := node.BalanceOf(env.asset, env.seller).Int64(); got != 100 {
		t.Fatalf("seller balance = %d, want 100", got)
	}
	if got := node.BalanceOf(env.asset, env.vault).Int64(); got != 0 {
		t.Fatalf("vault balance = %d, want 0", got)
	}
}

func TestAuctionSettlesWithFeeSplit(t *testing.T) {
	env := newNodeEnv(t)
	node := env.node

	start := env.now
	end := env.now + 86_400
	if _, err := node.CreateAuction(env.registry, 1, env.asset, big.NewInt(10), big.NewInt(1_000), big.NewInt(1), start, end, env.seller); err != nil {
		t.Fatalf("CreateAuction error: %v", err)
	}
	if err := node.Approve(env.asset, env.buyer, big.NewInt(1_000)); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := node.PlaceBid(env.registry, 1, big.NewInt(10), env.buyer); err != nil {
		t.Fatalf("PlaceBid error: %v", err)
	}

	env.now = end
	if err := node.CompleteAuction(env.registry, 1, env.buyer); err != nil {
		t.Fatalf("CompleteAuction error: %v", err)
	}
	// 5% of the winning bid goes to the fee recipient; the rounding
	// remainder of the split lands on the fee side.
	if got := node.BalanceOf(env.asset, env.seller).Int64(); got != 9 {
		t.Fatalf("creator balance = %d, want 9", got)
	}
	if got := node.BalanceOf(env.asset, env.feeRecipient).Int64(); got != 1 {
		t.Fatalf("fee recipient balance = %d, want 1", got)
	}
	owner, err := node.OwnerOf(env.registry, 1)
	if err != nil {
		t.Fatalf("OwnerOf error: %v", err)
	}
	if owner != env.buyer {
		t.Fatalf("item owner = %x, want winner", owner)
	}
}

func TestCeilingBidSettlesThroughNode(t *testing.T) {
	env := newNodeEnv(t)
	node := env.node

	if _, err := node.CreateAuction(env.registry, 1, env.asset, big.NewInt(10), big.NewInt(1_000), big.NewInt(1), env.now, env.now+86_400, env.seller); err != nil {
		t.Fatalf("CreateAuction error: %v", err)
	}
	if err := node.Approve(env.asset, env.buyer, big.NewInt(1_000)); err != nil {
		t.Fatalf("Approve error: %v", err)
	}
	if err := node.PlaceBid(env.registry, 1, big.NewInt(1_000), env.buyer); err != nil {
		t.Fatalf("PlaceBid error: %v", err)
	}

	if got := node.BalanceOf(env.asset, env.seller).Int64(); got != 950 {
		t.Fatalf("creator balance = %d, want 950", got)
	}
	if got := node.BalanceOf(env.asset, env.feeRecipient).Int64(); got != 50 {
		t.Fatalf("fee recipient balance = %d, want 50", got)
	}
	if _, ok := node.Auction(env.registry, 1); ok {
		t.Fatalf("auction should be removed after ceiling settlement")
	}
}

func TestListingAndAuctionAreExclusive(t *testing.T) {
	env := newNodeEnv(t)
	node := env.node

	if _, err := node.PutOnMarketplace(env.registry, 1, env.asset, big.NewInt(100), env.seller); err != nil {
		t.Fatalf("PutOnMarketplace error: %v", err)
	}
	if _, err := node.CreateAuction(env.registry, 1, env.asset, big.NewInt(10), big.NewInt(1_000), big.NewInt(1), env.now, env.now+86_400, env.seller); !errors.Is(err, auction.ErrItemListed) {
		t.Fatalf("expected ErrItemListed, got %v", err)
	}
	if err := node.PutOffMarketplace(env.registry, 1, env.seller); err != nil {
		t.Fatalf("PutOffMarketplace error: %v", err)
	}

	if _, err := node.CreateAuction(env.registry, 1, env.asset, big.NewInt(10), big.NewInt(1_000), big.NewInt(1), env.now, env.now+86_400, env.seller); err != nil {
		t.Fatalf("CreateAuction error: %v", err)
	}
	if _, err := node.PutOnMarketplace(env.registry, 1, env.asset, big.NewInt(100), env.seller); !errors.Is(err, market.ErrItemOnAuction) {
		t.Fatalf("expected ErrItemOnAuction, got %v", err)
	}
}
