package fees

import (
	"errors"
	"math/big"
)

// MaxBps is the denominator of the basis-point fee schedule.
const MaxBps uint32 = 10_000

var (
	// ErrBpsOutOfRange is returned when a fee rate exceeds 100%.
	ErrBpsOutOfRange = errors.New("fees: bps out of range")
	// ErrNegativeAmount is returned when a settlement amount is negative.
	ErrNegativeAmount = errors.New("fees: amount must be non-negative")
)

// Split divides a settlement amount between the payout recipient and the fee
// recipient. The payout is amount*(10000-bps)/10000 with integer truncation,
// so the fee side keeps the remainder (at most one unit) and payout+fee
// always equals amount exactly. Neither input is mutated.
func Split(amount *big.Int, bps uint32) (payout, fee *big.Int, err error) {
	if bps > MaxBps {
		return nil, nil, ErrBpsOutOfRange
	}
	total := new(big.Int)
	if amount != nil {
		total.Set(amount)
	}
	if total.Sign() < 0 {
		return nil, nil, ErrNegativeAmount
	}
	payout = new(big.Int).Mul(total, new(big.Int).SetUint64(uint64(MaxBps-bps)))
	payout.Div(payout, big.NewInt(int64(MaxBps)))
	fee = new(big.Int).Sub(total, payout)
	return payout, fee, nil
}
