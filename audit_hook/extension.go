// Package audithook bridges ledger events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on a
// particular audit system. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/xraph/iptu"
	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/plugin"
	"github.com/xraph/iptu/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnAssessmentCreated = (*Extension)(nil)
	_ plugin.OnActiveChanged     = (*Extension)(nil)
	_ plugin.OnInstallmentPaid   = (*Extension)(nil)
	_ plugin.OnPaymentRejected   = (*Extension)(nil)
	_ plugin.OnFundsForwarded    = (*Extension)(nil)
	_ plugin.OnTransferFailed    = (*Extension)(nil)
	_ plugin.OnTreasuryUpdated   = (*Extension)(nil)
	_ plugin.OnAdminTransferred  = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension turns ledger hooks into audit events.
type Extension struct {
	recorder    Recorder
	enabled     map[string]bool // nil = all enabled
	redactPayer bool
	logger      *slog.Logger
}

// New creates an Extension that emits audit events through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Assessment hooks
// ──────────────────────────────────────────────────

// OnAssessmentCreated implements plugin.OnAssessmentCreated.
func (e *Extension) OnAssessmentCreated(ctx context.Context, a *assessment.Assessment) error {
	return e.record(ctx, ActionAssessmentCreated, SeverityInfo, OutcomeSuccess,
		ResourceAssessment, a.ID.String(), CategoryAssessment, nil,
		"registration_code", a.RegistrationCode,
		"year", a.Year,
		"total", a.TotalAmount.String(),
		"installments", a.InstallmentCount,
		e.payerKey("taxpayer"), e.payer(a.Taxpayer),
	)
}

// OnActiveChanged implements plugin.OnActiveChanged.
func (e *Extension) OnActiveChanged(ctx context.Context, assessmentID id.AssessmentID, active bool, by identity.Identity) error {
	action := ActionAssessmentDeactivated
	if active {
		action = ActionAssessmentActivated
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceAssessment, assessmentID.String(), CategoryAccess, nil,
		"by", by.String(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnInstallmentPaid implements plugin.OnInstallmentPaid.
func (e *Extension) OnInstallmentPaid(ctx context.Context, receipt *assessment.Installment) error {
	return e.record(ctx, ActionInstallmentPaid, SeverityInfo, OutcomeSuccess,
		ResourceInstallment, receipt.ID.String(), CategoryPayment, nil,
		"assessment_id", receipt.AssessmentID.String(),
		"installment", receipt.Number,
		"amount", receipt.Amount.String(),
		e.payerKey("payer"), e.payer(receipt.Payer),
	)
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (e *Extension) OnPaymentRejected(ctx context.Context, assessmentID id.AssessmentID, number uint32, payer identity.Identity, reason error) error {
	return e.record(ctx, ActionPaymentRejected, SeverityWarning, OutcomeFailure,
		ResourceInstallment, assessmentID.String(), CategoryPayment, reason,
		"installment", number,
		"rule", rejectionRule(reason),
		e.payerKey("payer"), e.payer(payer),
	)
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnFundsForwarded implements plugin.OnFundsForwarded.
func (e *Extension) OnFundsForwarded(ctx context.Context, to identity.Identity, amount types.Amount) error {
	return e.record(ctx, ActionFundsForwarded, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, to.String(), CategoryTreasury, nil,
		"amount", amount.String(),
	)
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, to identity.Identity, amount types.Amount, err error) error {
	return e.record(ctx, ActionTransferFailed, SeverityCritical, OutcomeFailure,
		ResourceTransfer, to.String(), CategoryTreasury, err,
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Role hooks
// ──────────────────────────────────────────────────

// OnTreasuryUpdated implements plugin.OnTreasuryUpdated.
func (e *Extension) OnTreasuryUpdated(ctx context.Context, oldTreasury, newTreasury identity.Identity) error {
	return e.record(ctx, ActionTreasuryUpdated, SeverityWarning, OutcomeSuccess,
		ResourceRole, "treasury", CategoryAccess, nil,
		"old", oldTreasury.String(),
		"new", newTreasury.String(),
	)
}

// OnAdminTransferred implements plugin.OnAdminTransferred.
func (e *Extension) OnAdminTransferred(ctx context.Context, oldAdmin, newAdmin identity.Identity) error {
	return e.record(ctx, ActionAdminTransferred, SeverityWarning, OutcomeSuccess,
		ResourceRole, "admin", CategoryAccess, nil,
		"old", oldAdmin.String(),
		"new", newAdmin.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// rejectionRule names the payment rule that err violated.
func rejectionRule(err error) string {
	switch {
	case errors.Is(err, iptu.ErrNotFound):
		return "not_found"
	case errors.Is(err, iptu.ErrNotActive):
		return "not_active"
	case errors.Is(err, iptu.ErrInvalidInstallment):
		return "invalid_installment"
	case errors.Is(err, iptu.ErrAlreadyPaid):
		return "already_paid"
	case errors.Is(err, iptu.ErrWrongAmount):
		return "wrong_amount"
	case errors.Is(err, iptu.ErrWrongPayer):
		return "wrong_payer"
	default:
		return "other"
	}
}

// payerKey returns key, or "" when payer identities are redacted.
func (e *Extension) payerKey(key string) string {
	if e.redactPayer {
		return ""
	}
	return key
}

func (e *Extension) payer(who identity.Identity) string {
	if e.redactPayer {
		return ""
	}
	return who.String()
}

// record builds and sends an audit event if the action is enabled. Pairs
// with an empty key are dropped. Recorder failures are logged, never
// returned.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		if key == "" {
			continue
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
