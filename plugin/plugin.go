// Package plugin provides an extensible plugin system for the IPTU ledger.
// Plugins hook into lifecycle events after the corresponding change has been
// committed; a plugin never sees rolled-back state.
package plugin

import (
	"context"

	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts. l is the *iptu.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Assessment hooks
// ──────────────────────────────────────────────────

// OnAssessmentCreated is called after a new assessment is stored.
type OnAssessmentCreated interface {
	Plugin
	OnAssessmentCreated(ctx context.Context, a *assessment.Assessment) error
}

// OnActiveChanged is called after the admin toggles an assessment.
type OnActiveChanged interface {
	Plugin
	OnActiveChanged(ctx context.Context, assessmentID id.AssessmentID, active bool, by identity.Identity) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnInstallmentPaid is called after a payment has been recorded and
// forwarded to the treasury.
type OnInstallmentPaid interface {
	Plugin
	OnInstallmentPaid(ctx context.Context, receipt *assessment.Installment) error
}

// OnPaymentRejected is called when a payment fails validation.
type OnPaymentRejected interface {
	Plugin
	OnPaymentRejected(ctx context.Context, assessmentID id.AssessmentID, number uint32, payer identity.Identity, reason error) error
}

// OnFundsForwarded is called after funds reach the treasury, from a payment
// or a residual sweep.
type OnFundsForwarded interface {
	Plugin
	OnFundsForwarded(ctx context.Context, to identity.Identity, amount types.Amount) error
}

// OnTransferFailed is called when forwarding fails and the operation is
// rolled back.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, to identity.Identity, amount types.Amount, err error) error
}

// ──────────────────────────────────────────────────
// Role hooks
// ──────────────────────────────────────────────────

// OnTreasuryUpdated is called after the treasury role changes.
type OnTreasuryUpdated interface {
	Plugin
	OnTreasuryUpdated(ctx context.Context, oldTreasury, newTreasury identity.Identity) error
}

// OnAdminTransferred is called after the admin role changes.
type OnAdminTransferred interface {
	Plugin
	OnAdminTransferred(ctx context.Context, oldAdmin, newAdmin identity.Identity) error
}
