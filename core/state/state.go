package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/native/auction"
	"nftmarket/native/market"
	"nftmarket/storage"
)

const (
	listingPrefix = "market/listing/"
	offerPrefix   = "market/offer/"
	auctionPrefix = "auction/record/"
)

// Manager persists marketplace and auction records in a key-value store.
// Records are stored under keccak-derived keys so the backing database sees a
// uniform key distribution regardless of registry address layout. The same
// manager backs both engines, which is what lets each side consult the
// other's records for the listed-vs-auctioned exclusivity check.
type Manager struct {
	db storage.Database
}

// NewManager wraps the supplied database. The database handle is shared, not
// owned; closing it is the caller's responsibility.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func storageKey(prefix string, registry [20]byte, itemID uint64) []byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], itemID)
	return ethcrypto.Keccak256([]byte(prefix), registry[:], id[:])
}

func (m *Manager) put(key []byte, record interface{}) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("state: encode record: %w", err)
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) get(key []byte, record interface{}) (bool, error) {
	encoded, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(encoded, record); err != nil {
		return false, fmt.Errorf("state: decode record: %w", err)
	}
	return true, nil
}

// ListingPut stores the sanitized listing, replacing any previous entry for
// the same key.
func (m *Manager) ListingPut(l *market.Listing) error {
	sanitized, err := market.SanitizeListing(l)
	if err != nil {
		return err
	}
	return m.put(storageKey(listingPrefix, sanitized.Registry, sanitized.ItemID), sanitized)
}

// ListingGet loads the active listing for the key, if any.
func (m *Manager) ListingGet(registry [20]byte, itemID uint64) (*market.Listing, bool) {
	listing := new(market.Listing)
	ok, err := m.get(storageKey(listingPrefix, registry, itemID), listing)
	if err != nil || !ok {
		return nil, false
	}
	return listing, true
}

// ListingDelete removes the listing for the key. Deleting a missing entry is
// not an error.
func (m *Manager) ListingDelete(registry [20]byte, itemID uint64) error {
	return m.db.Delete(storageKey(listingPrefix, registry, itemID))
}

// ListingActive reports whether an active listing exists for the key.
func (m *Manager) ListingActive(registry [20]byte, itemID uint64) (bool, error) {
	return m.db.Has(storageKey(listingPrefix, registry, itemID))
}

// OfferPut stores the sanitized offer, replacing any previous entry for the
// same key.
func (m *Manager) OfferPut(o *market.Offer) error {
	sanitized, err := market.SanitizeOffer(o)
	if err != nil {
		return err
	}
	return m.put(storageKey(offerPrefix, sanitized.Registry, sanitized.ItemID), sanitized)
}

// OfferGet loads the outstanding offer for the key, if any.
func (m *Manager) OfferGet(registry [20]byte, itemID uint64) (*market.Offer, bool) {
	offer := new(market.Offer)
	ok, err := m.get(storageKey(offerPrefix, registry, itemID), offer)
	if err != nil || !ok {
		return nil, false
	}
	return offer, true
}

// OfferDelete removes the offer for the key. Deleting a missing entry is not
// an error.
func (m *Manager) OfferDelete(registry [20]byte, itemID uint64) error {
	return m.db.Delete(storageKey(offerPrefix, registry, itemID))
}

// AuctionPut stores the sanitized auction, replacing any previous entry for
// the same key.
func (m *Manager) AuctionPut(a *auction.Auction) error {
	sanitized, err := auction.SanitizeAuction(a)
	if err != nil {
		return err
	}
	return m.put(storageKey(auctionPrefix, sanitized.Registry, sanitized.ItemID), sanitized)
}

// AuctionGet loads the active auction for the key, if any.
func (m *Manager) AuctionGet(registry [20]byte, itemID uint64) (*auction.Auction, bool) {
	record := new(auction.Auction)
	ok, err := m.get(storageKey(auctionPrefix, registry, itemID), record)
	if err != nil || !ok {
		return nil, false
	}
	return record, true
}

// AuctionDelete removes the auction for the key. Deleting a missing entry is
// not an error.
func (m *Manager) AuctionDelete(registry [20]byte, itemID uint64) error {
	return m.db.Delete(storageKey(auctionPrefix, registry, itemID))
}

// AuctionActive reports whether an active auction exists for the key.
func (m *Manager) AuctionActive(registry [20]byte, itemID uint64) (bool, error) {
	return m.db.Has(storageKey(auctionPrefix, registry, itemID))
}
