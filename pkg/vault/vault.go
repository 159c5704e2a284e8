// Package vault provides the in-memory token balance store backing local
// chain backends. It stands in for the token transfer capability that a
// production chain client delegates to its chain's token contracts.
package vault

import (
	"context"
	"math/big"
	"sync"

	"github.com/pkg/errors"

	"github.com/rozo-hq/intent-relayer/pkg/types"
)

// ErrInsufficientBalance means the sender's balance cannot cover a transfer.
var ErrInsufficientBalance = errors.New("insufficient balance")

type balanceKey struct {
	token  types.Address
	holder types.Address
}

// MemoryVault is a thread-safe token->holder->balance store.
type MemoryVault struct {
	mu       sync.Mutex
	balances map[balanceKey]*big.Int
}

// NewMemoryVault creates an empty vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{balances: make(map[balanceKey]*big.Int)}
}

// Mint credits a holder. Used to seed genesis balances.
func (v *MemoryVault) Mint(token, holder types.Address, amount *big.Int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.credit(token, holder, amount)
}

// Transfer moves amount of token from one holder to another atomically.
func (v *MemoryVault) Transfer(_ context.Context, token, from, to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.New("invalid transfer amount")
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	key := balanceKey{token: token, holder: from}
	bal, ok := v.balances[key]
	if !ok || bal.Cmp(amount) < 0 {
		return errors.Wrapf(ErrInsufficientBalance, "holder %s token %s", from.Hex(), token.Hex())
	}
	bal.Sub(bal, amount)
	v.credit(token, to, amount)
	return nil
}

// Balance returns the holder's balance for a token.
func (v *MemoryVault) Balance(token, holder types.Address) *big.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	if bal, ok := v.balances[balanceKey{token: token, holder: holder}]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int)
}

// credit assumes the lock is held.
func (v *MemoryVault) credit(token, holder types.Address, amount *big.Int) {
	key := balanceKey{token: token, holder: holder}
	if bal, ok := v.balances[key]; ok {
		bal.Add(bal, amount)
		return
	}
	v.balances[key] = new(big.Int).Set(amount)
}
