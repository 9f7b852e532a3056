package item

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidTokenID is returned when an item id has never been minted in
	// the referenced registry.
	ErrInvalidTokenID = errors.New("item: invalid token id")
	// ErrItemExists is returned when minting an id that is already owned.
	ErrItemExists = errors.New("item: token id already minted")
	// ErrNotItemOwner is returned when a transfer names a from address that
	// does not own the item.
	ErrNotItemOwner = errors.New("item: transfer from non-owner")
	// ErrZeroAddress is returned when an operation targets the zero address.
	ErrZeroAddress = errors.New("item: zero address")
)

// Ledger tracks unique-item ownership and operator approvals across any
// number of registries. A registry is identified by a 20-byte address, an
// item by a uint64 id; every (registry, id) pair has at most one owner.
type Ledger struct {
	mu        sync.RWMutex
	owners    map[[20]byte]map[uint64][20]byte
	operators map[[20]byte]map[[20]byte]map[[20]byte]bool
}

// NewLedger returns an empty item ledger.
func NewLedger() *Ledger {
	return &Ledger{
		owners:    make(map[[20]byte]map[uint64][20]byte),
		operators: make(map[[20]byte]map[[20]byte]map[[20]byte]bool),
	}
}

// Mint assigns a fresh item id to the recipient. Minting an id twice fails.
func (l *Ledger) Mint(registry [20]byte, to [20]byte, itemID uint64) error {
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	reg, ok := l.owners[registry]
	if !ok {
		reg = make(map[uint64][20]byte)
		l.owners[registry] = reg
	}
	if _, ok := reg[itemID]; ok {
		return fmt.Errorf("%w: %d", ErrItemExists, itemID)
	}
	reg[itemID] = to
	return nil
}

// OwnerOf returns the current owner of the item.
func (l *Ledger) OwnerOf(registry [20]byte, itemID uint64) ([20]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.owners[registry][itemID]
	if !ok {
		return [20]byte{}, fmt.Errorf("%w: %d", ErrInvalidTokenID, itemID)
	}
	return owner, nil
}

// SetApprovalForAll grants or revokes operator rights over every item the
// owner holds in the registry.
func (l *Ledger) SetApprovalForAll(registry [20]byte, owner, operator [20]byte, approved bool) error {
	if operator == ([20]byte{}) {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	reg, ok := l.operators[registry]
	if !ok {
		reg = make(map[[20]byte]map[[20]byte]bool)
		l.operators[registry] = reg
	}
	byOwner, ok := reg[owner]
	if !ok {
		byOwner = make(map[[20]byte]bool)
		reg[owner] = byOwner
	}
	if approved {
		byOwner[operator] = true
	} else {
		delete(byOwner, operator)
	}
	return nil
}

// IsApprovedForAll reports whether the operator may move the owner's items.
func (l *Ledger) IsApprovedForAll(registry [20]byte, owner, operator [20]byte) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.operators[registry][owner][operator]
}

// Transfer moves the item from its current owner to the recipient. The from
// address must be the current owner; operator authorization is checked by the
// caller before custody moves.
func (l *Ledger) Transfer(registry [20]byte, from, to [20]byte, itemID uint64) error {
	if to == ([20]byte{}) {
		return ErrZeroAddress
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	reg, ok := l.owners[registry]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidTokenID, itemID)
	}
	owner, ok := reg[itemID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidTokenID, itemID)
	}
	if owner != from {
		return ErrNotItemOwner
	}
	reg[itemID] = to
	return nil
}
