package token

import (
	"errors"
	"math/big"
	"sync"
)

var (
	// ErrUnknownAsset is returned when an asset has not been registered.
	ErrUnknownAsset = errors.New("token: unknown asset")
	// ErrAssetExists is returned when registering an asset twice.
	ErrAssetExists = errors.New("token: asset already registered")
	// ErrExceedsMaximumSupply is returned when a mint would push the
	// circulating supply over the asset's fixed cap.
	ErrExceedsMaximumSupply = errors.New("token: exceeds maximum supply")
	// ErrInsufficientBalance is returned when a transfer or burn exceeds the
	// holder's balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance is returned when a transferFrom exceeds the
	// spender's approved allowance.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("token: amount must be positive")
)

type asset struct {
	maxSupply  *big.Int
	supply     *big.Int
	balances   map[[20]byte]*big.Int
	allowances map[[20]byte]map[[20]byte]*big.Int
}

// Ledger tracks fungible balances and allowances for registered assets. Each
// asset carries a fixed maximum supply enforced on mint.
type Ledger struct {
	mu     sync.RWMutex
	assets map[[20]byte]*asset
}

// NewLedger returns an empty token ledger.
func NewLedger() *Ledger {
	return &Ledger{assets: make(map[[20]byte]*asset)}
}

// RegisterAsset declares a new asset with the given maximum mintable supply.
func (l *Ledger) RegisterAsset(id [20]byte, maxSupply *big.Int) error {
	if maxSupply == nil || maxSupply.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.assets[id]; ok {
		return ErrAssetExists
	}
	l.assets[id] = &asset{
		maxSupply:  new(big.Int).Set(maxSupply),
		supply:     big.NewInt(0),
		balances:   make(map[[20]byte]*big.Int),
		allowances: make(map[[20]byte]map[[20]byte]*big.Int),
	}
	return nil
}

// Mint credits new units to the account, rejecting any mint that would exceed
// the asset's maximum supply.
func (l *Ledger) Mint(id [20]byte, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assets[id]
	if !ok {
		return ErrUnknownAsset
	}
	next := new(big.Int).Add(a.supply, amount)
	if next.Cmp(a.maxSupply) > 0 {
		return ErrExceedsMaximumSupply
	}
	a.supply = next
	a.credit(to, amount)
	return nil
}

// Burn destroys units held by the account, shrinking the circulating supply.
func (l *Ledger) Burn(id [20]byte, from [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assets[id]
	if !ok {
		return ErrUnknownAsset
	}
	if err := a.debit(from, amount); err != nil {
		return err
	}
	a.supply = new(big.Int).Sub(a.supply, amount)
	return nil
}

// BalanceOf returns the account's balance for the asset. Unknown assets and
// accounts report zero.
func (l *Ledger) BalanceOf(id [20]byte, account [20]byte) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[id]
	if !ok {
		return big.NewInt(0)
	}
	if bal, ok := a.balances[account]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Supply returns the circulating supply of the asset.
func (l *Ledger) Supply(id [20]byte) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[id]
	if !ok {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.supply)
}

// Transfer moves units from one account to another.
func (l *Ledger) Transfer(id [20]byte, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assets[id]
	if !ok {
		return ErrUnknownAsset
	}
	if err := a.debit(from, amount); err != nil {
		return err
	}
	a.credit(to, amount)
	return nil
}

// Approve sets the spender's allowance over the owner's balance.
func (l *Ledger) Approve(id [20]byte, owner, spender [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assets[id]
	if !ok {
		return ErrUnknownAsset
	}
	byOwner, ok := a.allowances[owner]
	if !ok {
		byOwner = make(map[[20]byte]*big.Int)
		a.allowances[owner] = byOwner
	}
	byOwner[spender] = new(big.Int).Set(amount)
	return nil
}

// Allowance returns the spender's remaining allowance over the owner's
// balance.
func (l *Ledger) Allowance(id [20]byte, owner, spender [20]byte) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.assets[id]
	if !ok {
		return big.NewInt(0)
	}
	if allowed, ok := a.allowances[owner][spender]; ok {
		return new(big.Int).Set(allowed)
	}
	return big.NewInt(0)
}

// TransferFrom moves units on behalf of the owner, consuming the spender's
// allowance.
func (l *Ledger) TransferFrom(id [20]byte, spender, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.assets[id]
	if !ok {
		return ErrUnknownAsset
	}
	allowed, ok := a.allowances[from][spender]
	if !ok || allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := a.debit(from, amount); err != nil {
		return err
	}
	a.credit(to, amount)
	a.allowances[from][spender] = new(big.Int).Sub(allowed, amount)
	return nil
}

func (a *asset) credit(account [20]byte, amount *big.Int) {
	if bal, ok := a.balances[account]; ok {
		a.balances[account] = new(big.Int).Add(bal, amount)
		return
	}
	a.balances[account] = new(big.Int).Set(amount)
}

func (a *asset) debit(account [20]byte, amount *big.Int) error {
	bal, ok := a.balances[account]
	if !ok || bal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	a.balances[account] = new(big.Int).Sub(bal, amount)
	return nil
}
