package transfer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/transfer"
	"github.com/xraph/iptu/types"
)

const treasury identity.Identity = "prefeitura"

func TestVaultSend(t *testing.T) {
	ctx := context.Background()
	v := transfer.NewVault()
	v.Deposit(1000)

	if err := v.Send(ctx, treasury, 250); err != nil {
		t.Fatalf("Send: %v", err)
	}

	bal, _ := v.Balance(ctx)
	if bal != 750 {
		t.Errorf("custody: got %d, want 750", bal)
	}
	if got := v.BalanceOf(treasury); got != 250 {
		t.Errorf("treasury: got %d, want 250", got)
	}
}

func TestVaultSendErrors(t *testing.T) {
	tests := []struct {
		name    string
		deposit types.Amount
		to      identity.Identity
		amount  types.Amount
		want    error
	}{
		{"insufficient funds", 100, treasury, 101, transfer.ErrInsufficientFunds},
		{"nil destination", 100, identity.Nil, 50, transfer.ErrInvalidDestination},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := transfer.NewVault()
			v.Deposit(tt.deposit)
			err := v.Send(context.Background(), tt.to, tt.amount)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			bal, _ := v.Balance(context.Background())
			if bal != tt.deposit {
				t.Errorf("custody changed: got %d, want %d", bal, tt.deposit)
			}
		})
	}
}

func TestVaultRejectingReceiverUndoesCredit(t *testing.T) {
	ctx := context.Background()
	v := transfer.NewVault()
	v.Deposit(500)

	rejected := errors.New("receiver rejected")
	v.OnReceive(func(context.Context, identity.Identity, types.Amount) error {
		return rejected
	})

	if err := v.Send(ctx, treasury, 500); !errors.Is(err, rejected) {
		t.Fatalf("got %v, want %v", err, rejected)
	}
	if got := v.BalanceOf(treasury); got != 0 {
		t.Errorf("treasury: got %d, want 0", got)
	}
	if bal, _ := v.Balance(ctx); bal != 500 {
		t.Errorf("custody: got %d, want 500", bal)
	}
}

func TestVaultReceiverMayReenter(t *testing.T) {
	ctx := context.Background()
	v := transfer.NewVault()
	v.Deposit(300)

	var inner error
	v.OnReceive(func(ctx context.Context, to identity.Identity, _ types.Amount) error {
		v.OnReceive(nil)
		inner = v.Send(ctx, to, 100)
		return nil
	})

	if err := v.Send(ctx, treasury, 200); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if inner != nil {
		t.Fatalf("nested Send: %v", inner)
	}
	if got := v.BalanceOf(treasury); got != 300 {
		t.Errorf("treasury: got %d, want 300", got)
	}
}
