// Package transfer defines how the ledger moves funds out of its custody
// account, plus an in-memory custody used by tests and embedded setups.
package transfer

import (
	"context"
	"errors"

	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/types"
)

var (
	ErrInsufficientFunds  = errors.New("transfer: insufficient custody funds")
	ErrInvalidDestination = errors.New("transfer: invalid destination")
)

// Sender moves amount from custody to the destination account.
// Send is all-or-nothing: on error the destination received nothing.
type Sender interface {
	Send(ctx context.Context, to identity.Identity, amount types.Amount) error
}

// Custody is the ledger's holding account. A payment's value sits in
// custody for the duration of the call that carries it.
type Custody interface {
	Sender
	Balance(ctx context.Context) (types.Amount, error)
}

