/*

This file contains the in-memory TokenBank implementation. It backs local
mode and the test suite; a production deployment wires a custody service
that satisfies the same interface.

*/

package bank

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/enclave-network/nodepool/internal/types"
)

// InMemory is a thread-safe balance table keyed by holder and token.
// Debits fail fast when the holder's balance is insufficient.
type InMemory struct {
	mu       sync.Mutex
	balances map[types.HolderID]map[string]sdkmath.Int
}

// NewInMemory creates an empty in-memory bank.
func NewInMemory() *InMemory {
	return &InMemory{balances: make(map[types.HolderID]map[string]sdkmath.Int)}
}

// Mint adds amount of token to the holder's balance. Used to seed balances;
// not part of the TokenBank interface.
func (b *InMemory) Mint(holder types.HolderID, token string, amount sdkmath.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(holder, token, amount)
}

// Balance returns the holder's balance of token, zero if absent.
func (b *InMemory) Balance(holder types.HolderID, token string) sdkmath.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tokens, ok := b.balances[holder]; ok {
		if bal, ok := tokens[token]; ok {
			return bal
		}
	}
	return sdkmath.ZeroInt()
}

// Credit pays amount of token to the holder.
func (b *InMemory) Credit(holder types.HolderID, token string, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(holder, token, amount)
	return nil
}

// Debit collects amount of token from the holder.
func (b *InMemory) Debit(holder types.HolderID, token string, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sub(holder, token, amount)
}

// Transfer moves amount of token from one holder to another atomically.
func (b *InMemory) Transfer(from, to types.HolderID, token string, amount sdkmath.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.sub(from, token, amount); err != nil {
		return err
	}
	b.add(to, token, amount)
	return nil
}

func (b *InMemory) add(holder types.HolderID, token string, amount sdkmath.Int) {
	tokens, ok := b.balances[holder]
	if !ok {
		tokens = make(map[string]sdkmath.Int)
		b.balances[holder] = tokens
	}
	current, ok := tokens[token]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	tokens[token] = current.Add(amount)
}

func (b *InMemory) sub(holder types.HolderID, token string, amount sdkmath.Int) error {
	tokens, ok := b.balances[holder]
	if !ok {
		return fmt.Errorf("insufficient %s balance for %s: have 0, need %s", token, holder, amount)
	}
	current, ok := tokens[token]
	if !ok || current.LT(amount) {
		have := sdkmath.ZeroInt()
		if ok {
			have = current
		}
		return fmt.Errorf("insufficient %s balance for %s: have %s, need %s", token, holder, have, amount)
	}
	tokens[token] = current.Sub(amount)
	return nil
}

func validateAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: bank amount must be non-negative", types.ErrInvalidAmount)
	}
	return nil
}
