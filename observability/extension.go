// Package observability provides a metrics extension for the IPTU ledger
// that records assessment, payment and transfer counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/plugin"
	"github.com/xraph/iptu/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnAssessmentCreated = (*MetricsExtension)(nil)
	_ plugin.OnActiveChanged     = (*MetricsExtension)(nil)
	_ plugin.OnInstallmentPaid   = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRejected   = (*MetricsExtension)(nil)
	_ plugin.OnFundsForwarded    = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed    = (*MetricsExtension)(nil)
	_ plugin.OnTreasuryUpdated   = (*MetricsExtension)(nil)
	_ plugin.OnAdminTransferred  = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// FromMetrics adapts a go-utils metrics factory, such as the one returned
// by a forge app's Metrics(), to MetricFactory.
func FromMetrics(m metrics.MetricFactory) MetricFactory {
	return goUtilsFactory{m}
}

type goUtilsFactory struct{ m metrics.MetricFactory }

func (f goUtilsFactory) Counter(name string) Counter { return f.m.Counter(name) }

func (f goUtilsFactory) Histogram(name string) Histogram { return f.m.Histogram(name) }

// MetricsExtension records ledger metrics.
// Register it as a ledger plugin to track collection activity.
type MetricsExtension struct {
	AssessmentCreated   Counter
	ActiveChanged       Counter
	InstallmentPaid     Counter
	InstallmentAmount   Histogram
	PaymentRejected     Counter
	FundsForwarded      Counter
	FundsForwardedTotal Counter
	TransferFailed      Counter
	RolesChanged        Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided
// MetricFactory. Use FromMetrics(app.Metrics()) in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		AssessmentCreated:   factory.Counter("iptu.assessment.created"),
		ActiveChanged:       factory.Counter("iptu.assessment.active_changed"),
		InstallmentPaid:     factory.Counter("iptu.installment.paid"),
		InstallmentAmount:   factory.Histogram("iptu.installment.amount"),
		PaymentRejected:     factory.Counter("iptu.payment.rejected"),
		FundsForwarded:      factory.Counter("iptu.funds.forwarded"),
		FundsForwardedTotal: factory.Counter("iptu.funds.forwarded.centavos"),
		TransferFailed:      factory.Counter("iptu.transfer.failed"),
		RolesChanged:        factory.Counter("iptu.roles.changed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnAssessmentCreated implements plugin.OnAssessmentCreated.
func (m *MetricsExtension) OnAssessmentCreated(_ context.Context, _ *assessment.Assessment) error {
	m.AssessmentCreated.Inc()
	return nil
}

// OnActiveChanged implements plugin.OnActiveChanged.
func (m *MetricsExtension) OnActiveChanged(_ context.Context, _ id.AssessmentID, _ bool, _ identity.Identity) error {
	m.ActiveChanged.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnInstallmentPaid implements plugin.OnInstallmentPaid.
func (m *MetricsExtension) OnInstallmentPaid(_ context.Context, receipt *assessment.Installment) error {
	m.InstallmentPaid.Inc()
	m.InstallmentAmount.Observe(float64(receipt.Amount))
	return nil
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (m *MetricsExtension) OnPaymentRejected(_ context.Context, _ id.AssessmentID, _ uint32, _ identity.Identity, _ error) error {
	m.PaymentRejected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnFundsForwarded implements plugin.OnFundsForwarded.
func (m *MetricsExtension) OnFundsForwarded(_ context.Context, _ identity.Identity, amount types.Amount) error {
	m.FundsForwarded.Inc()
	m.FundsForwardedTotal.Add(float64(amount))
	return nil
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ identity.Identity, _ types.Amount, _ error) error {
	m.TransferFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Role hooks
// ──────────────────────────────────────────────────

// OnTreasuryUpdated implements plugin.OnTreasuryUpdated.
func (m *MetricsExtension) OnTreasuryUpdated(_ context.Context, _, _ identity.Identity) error {
	m.RolesChanged.Inc()
	return nil
}

// OnAdminTransferred implements plugin.OnAdminTransferred.
func (m *MetricsExtension) OnAdminTransferred(_ context.Context, _, _ identity.Identity) error {
	m.RolesChanged.Inc()
	return nil
}
