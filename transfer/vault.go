package transfer

import (
	"context"
	"sync"

	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/types"
)

// compile-time interface check
var _ Custody = (*Vault)(nil)

// ReceiveFunc runs after a destination has been credited, the way a
// receiving account's code runs on an incoming transfer. Returning an error
// rejects the transfer and the credit is undone.
type ReceiveFunc func(ctx context.Context, to identity.Identity, amount types.Amount) error

// Vault is a thread-safe in-memory custody account with per-identity
// destination balances.
type Vault struct {
	mu        sync.Mutex
	custody   types.Amount
	balances  map[identity.Identity]types.Amount
	onReceive ReceiveFunc
}

// NewVault creates an empty vault.
func NewVault() *Vault {
	return &Vault{balances: make(map[identity.Identity]types.Amount)}
}

// Deposit credits the custody account, as an incoming payment or a direct
// external transfer would.
func (v *Vault) Deposit(amount types.Amount) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.custody += amount
}

// OnReceive installs the callback run on every successful credit.
// Pass nil to remove it.
func (v *Vault) OnReceive(fn ReceiveFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onReceive = fn
}

// Send moves amount from custody to to. The receive callback runs without
// the vault lock held, so it may call back into code that uses the vault.
func (v *Vault) Send(ctx context.Context, to identity.Identity, amount types.Amount) error {
	if to.IsNil() {
		return ErrInvalidDestination
	}

	v.mu.Lock()
	if v.custody < amount {
		v.mu.Unlock()
		return ErrInsufficientFunds
	}
	v.custody -= amount
	v.balances[to] += amount
	hook := v.onReceive
	v.mu.Unlock()

	if hook == nil {
		return nil
	}
	if err := hook(ctx, to, amount); err != nil {
		v.mu.Lock()
		v.balances[to] -= amount
		v.custody += amount
		v.mu.Unlock()
		return err
	}
	return nil
}

// Balance returns the funds held in custody.
func (v *Vault) Balance(_ context.Context) (types.Amount, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.custody, nil
}

// BalanceOf returns what has been sent to who so far.
func (v *Vault) BalanceOf(who identity.Identity) types.Amount {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[who]
}
