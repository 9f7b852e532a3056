package market

import (
	"fmt"
	"math/big"
)

// Listing records a fixed-price sale for a unique item. A listing exists if
// and only if the item is held at the market vault on behalf of Seller.
type Listing struct {
	Registry   [20]byte
	ItemID     uint64
	PriceAsset [20]byte
	Price      *big.Int
	Seller     [20]byte
	CreatedAt  int64
}

// Clone returns a deep copy of the listing so callers can safely mutate the
// copy without affecting the stored instance.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// Offer records the single outstanding escrow-backed offer against a listed
// item. An offer exists if and only if Price units of PriceAsset are held at
// the market vault on behalf of Offerer.
type Offer struct {
	Registry   [20]byte
	ItemID     uint64
	PriceAsset [20]byte
	Price      *big.Int
	Offerer    [20]byte
	CreatedAt  int64
}

// Clone returns a deep copy of the offer.
func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	clone := *o
	if o.Price != nil {
		clone.Price = new(big.Int).Set(o.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// SanitizeListing validates and normalises a stored listing, returning a
// cloned instance with a non-nil price. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("listing price must be positive")
	}
	if clone.Seller == ([20]byte{}) {
		return nil, fmt.Errorf("listing seller unset")
	}
	return clone, nil
}

// SanitizeOffer validates and normalises a stored offer.
func SanitizeOffer(o *Offer) (*Offer, error) {
	if o == nil {
		return nil, fmt.Errorf("nil offer")
	}
	clone := o.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, fmt.Errorf("offer price must be positive")
	}
	if clone.Offerer == ([20]byte{}) {
		return nil, fmt.Errorf("offer offerer unset")
	}
	return clone, nil
}
