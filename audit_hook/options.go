package audithook

import (
	"log/slog"
	"slices"
)

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger used when the recorder fails.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithEnabledActions restricts auditing to the given actions.
// If not called, every action is audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, action := range actions {
			e.enabled[action] = true
		}
	}
}

// WithDisabledActions skips the given actions.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = make(map[string]bool, len(allActions))
			for _, action := range allActions {
				e.enabled[action] = true
			}
		}
		for _, action := range actions {
			delete(e.enabled, action)
		}
	}
}

// WithoutPayer omits taxpayer and payer identities from event metadata.
func WithoutPayer() Option {
	return func(e *Extension) {
		e.redactPayer = true
	}
}

// allActions lists every action the extension can emit.
var allActions = []string{
	ActionAssessmentCreated,
	ActionAssessmentActivated,
	ActionAssessmentDeactivated,
	ActionInstallmentPaid,
	ActionPaymentRejected,
	ActionFundsForwarded,
	ActionTransferFailed,
	ActionTreasuryUpdated,
	ActionAdminTransferred,
}

// Actions returns every action the extension can emit.
func Actions() []string { return slices.Clone(allActions) }
