package fees

import (
	"math/big"
	"testing"
)

func TestSplitExactness(t *testing.T) {
	cases := []struct {
		name   string
		amount int64
		bps    uint32
		payout int64
		fee    int64
	}{
		{name: "zero amount", amount: 0, bps: 500, payout: 0, fee: 0},
		{name: "five percent even", amount: 1000, bps: 500, payout: 950, fee: 50},
		{name: "five percent rounds to fee", amount: 11, bps: 500, payout: 10, fee: 1},
		{name: "odd amount", amount: 999, bps: 500, payout: 949, fee: 50},
		{name: "zero bps", amount: 777, bps: 0, payout: 777, fee: 0},
		{name: "full fee", amount: 123, bps: 10_000, payout: 0, fee: 123},
		{name: "one unit", amount: 1, bps: 9_999, payout: 0, fee: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payout, fee, err := Split(big.NewInt(tc.amount), tc.bps)
			if err != nil {
				t.Fatalf("Split error: %v", err)
			}
			if payout.Int64() != tc.payout {
				t.Fatalf("payout = %s, want %d", payout, tc.payout)
			}
			if fee.Int64() != tc.fee {
				t.Fatalf("fee = %s, want %d", fee, tc.fee)
			}
			sum := new(big.Int).Add(payout, fee)
			if sum.Int64() != tc.amount {
				t.Fatalf("payout+fee = %s, want %d", sum, tc.amount)
			}
		})
	}
}

func TestSplitConservesLargeAmounts(t *testing.T) {
	amount, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	if !ok {
		t.Fatalf("parse amount")
	}
	payout, fee, err := Split(amount, 500)
	if err != nil {
		t.Fatalf("Split error: %v", err)
	}
	if sum := new(big.Int).Add(payout, fee); sum.Cmp(amount) != 0 {
		t.Fatalf("payout+fee = %s, want %s", sum, amount)
	}
}

func TestSplitRejectsInvalidInputs(t *testing.T) {
	if _, _, err := Split(big.NewInt(100), 10_001); err != ErrBpsOutOfRange {
		t.Fatalf("expected ErrBpsOutOfRange, got %v", err)
	}
	if _, _, err := Split(big.NewInt(-1), 500); err != ErrNegativeAmount {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	if _, _, err := Split(nil, 500); err != nil {
		t.Fatalf("nil amount should split as zero, got %v", err)
	}
}
