package iptu

import (
	"context"

	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/role"
	"github.com/xraph/iptu/store"
)

// ──────────────────────────────────────────────────
// Role Management
// ──────────────────────────────────────────────────

// UpdateTreasury replaces the treasury identity. Admin only.
func (l *Ledger) UpdateTreasury(ctx context.Context, caller, newTreasury identity.Identity) error {
	old, err := l.changeRole(ctx, caller, newTreasury, "treasury", func(r *role.Roles) *identity.Identity {
		return &r.Treasury
	}, event.KindTreasuryUpdated, func(old identity.Identity) any {
		return event.TreasuryUpdated{Old: old, New: newTreasury}
	})
	if err != nil {
		return err
	}

	l.plugins.EmitTreasuryUpdated(ctx, old, newTreasury)

	l.logger.Info("treasury updated",
		"old", old.String(),
		"new", newTreasury.String(),
	)

	return nil
}

// TransferAdmin hands the admin role to newAdmin. Admin only.
func (l *Ledger) TransferAdmin(ctx context.Context, caller, newAdmin identity.Identity) error {
	old, err := l.changeRole(ctx, caller, newAdmin, "admin", func(r *role.Roles) *identity.Identity {
		return &r.Admin
	}, event.KindAdminTransferred, func(old identity.Identity) any {
		return event.AdminTransferred{Old: old, New: newAdmin}
	})
	if err != nil {
		return err
	}

	l.plugins.EmitAdminTransferred(ctx, old, newAdmin)

	l.logger.Info("admin transferred",
		"old", old.String(),
		"new", newAdmin.String(),
	)

	return nil
}

// changeRole swaps the role selected by field and logs kind, returning the
// previous holder.
func (l *Ledger) changeRole(
	ctx context.Context,
	caller, next identity.Identity,
	name string,
	field func(*role.Roles) *identity.Identity,
	kind event.Kind,
	payload func(old identity.Identity) any,
) (identity.Identity, error) {
	release, err := l.guard.enter()
	if err != nil {
		return identity.Nil, err
	}
	defer release()

	var old identity.Identity
	err = l.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		roles, err := loadRoles(ctx, tx)
		if err != nil {
			return err
		}
		if !roles.IsAdmin(caller) {
			return ErrUnauthorized
		}
		if next.IsNil() {
			return invalid(name, "must not be null")
		}

		now := l.clock.Now()
		slot := field(roles)
		old = *slot
		*slot = next
		roles.UpdatedAt = now.UTC()
		if err := tx.SaveRoles(ctx, roles); err != nil {
			return err
		}
		return appendEvent(ctx, tx, kind, id.Nil, payload(old), now)
	})
	return old, err
}
