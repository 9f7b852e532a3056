package auction

import (
	"fmt"
	"math/big"
)

// Phase is the derived lifecycle position of an auction relative to a clock
// reading. There is no stored status field; the phase is recomputed from the
// schedule on every operation so the state machine stays auditable without
// background timers.
type Phase uint8

const (
	PhasePending Phase = iota
	PhaseLive
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseLive:
		return "live"
	case PhaseEnded:
		return "ended"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Auction records an English auction with a buy-now ceiling. While HasBid is
// set the market vault holds exactly HighestBid of Asset on behalf of
// HighestBidder.
type Auction struct {
	Registry      [20]byte
	ItemID        uint64
	Asset         [20]byte
	FloorPrice    *big.Int
	CeilingPrice  *big.Int
	MinIncrement  *big.Int
	StartTime     int64
	EndTime       int64
	Creator       [20]byte
	HasBid        bool
	HighestBidder [20]byte
	HighestBid    *big.Int
	CreatedAt     int64
}

// Clone returns a deep copy of the auction so callers can safely mutate the
// copy without affecting the stored instance.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := *a
	clone.FloorPrice = cloneBigInt(a.FloorPrice)
	clone.CeilingPrice = cloneBigInt(a.CeilingPrice)
	clone.MinIncrement = cloneBigInt(a.MinIncrement)
	clone.HighestBid = cloneBigInt(a.HighestBid)
	return &clone
}

// PhaseAt derives the auction phase from the supplied clock reading.
func (a *Auction) PhaseAt(now int64) Phase {
	switch {
	case now < a.StartTime:
		return PhasePending
	case now >= a.EndTime:
		return PhaseEnded
	default:
		return PhaseLive
	}
}

// MinimumBid returns the lowest acceptable next bid: the floor price while no
// bid is held, otherwise the current highest bid plus the minimum increment.
func (a *Auction) MinimumBid() *big.Int {
	if !a.HasBid {
		return cloneBigInt(a.FloorPrice)
	}
	return new(big.Int).Add(a.HighestBid, a.MinIncrement)
}

// SanitizeAuction validates and normalises a stored auction record, returning
// a cloned instance with non-nil amounts. The original value is not mutated.
func SanitizeAuction(a *Auction) (*Auction, error) {
	if a == nil {
		return nil, fmt.Errorf("nil auction")
	}
	clone := a.Clone()
	if clone.FloorPrice.Sign() <= 0 {
		return nil, fmt.Errorf("auction floor price must be positive")
	}
	if clone.CeilingPrice.Cmp(clone.FloorPrice) < 0 {
		return nil, fmt.Errorf("auction ceiling below floor")
	}
	if clone.MinIncrement.Sign() < 0 {
		return nil, fmt.Errorf("auction increment must be non-negative")
	}
	if clone.StartTime >= clone.EndTime {
		return nil, fmt.Errorf("auction schedule inverted")
	}
	if clone.Creator == ([20]byte{}) {
		return nil, fmt.Errorf("auction creator unset")
	}
	if clone.HasBid && clone.HighestBid.Sign() <= 0 {
		return nil, fmt.Errorf("auction bid must be positive")
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
