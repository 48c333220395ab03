package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/types"
)

// DefaultTimeout bounds a single plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// Hook implementations are discovered once, at registration.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit              []OnInit
	onShutdown          []OnShutdown
	onAssessmentCreated []OnAssessmentCreated
	onActiveChanged     []OnActiveChanged
	onInstallmentPaid   []OnInstallmentPaid
	onPaymentRejected   []OnPaymentRejected
	onFundsForwarded    []OnFundsForwarded
	onTransferFailed    []OnTransferFailed
	onTreasuryUpdated   []OnTreasuryUpdated
	onAdminTransferred  []OnAdminTransferred
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnAssessmentCreated); ok {
		r.onAssessmentCreated = append(r.onAssessmentCreated, v)
		hooks = append(hooks, "OnAssessmentCreated")
	}
	if v, ok := p.(OnActiveChanged); ok {
		r.onActiveChanged = append(r.onActiveChanged, v)
		hooks = append(hooks, "OnActiveChanged")
	}
	if v, ok := p.(OnInstallmentPaid); ok {
		r.onInstallmentPaid = append(r.onInstallmentPaid, v)
		hooks = append(hooks, "OnInstallmentPaid")
	}
	if v, ok := p.(OnPaymentRejected); ok {
		r.onPaymentRejected = append(r.onPaymentRejected, v)
		hooks = append(hooks, "OnPaymentRejected")
	}
	if v, ok := p.(OnFundsForwarded); ok {
		r.onFundsForwarded = append(r.onFundsForwarded, v)
		hooks = append(hooks, "OnFundsForwarded")
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
		hooks = append(hooks, "OnTransferFailed")
	}
	if v, ok := p.(OnTreasuryUpdated); ok {
		r.onTreasuryUpdated = append(r.onTreasuryUpdated, v)
		hooks = append(hooks, "OnTreasuryUpdated")
	}
	if v, ok := p.(OnAdminTransferred); ok {
		r.onAdminTransferred = append(r.onAdminTransferred, v)
		hooks = append(hooks, "OnAdminTransferred")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, l any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	emit(ctx, r, "OnInit", plugins, func(p OnInit) error { return p.OnInit(ctx, l) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	emit(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitAssessmentCreated emits an assessment created event.
func (r *Registry) EmitAssessmentCreated(ctx context.Context, a *assessment.Assessment) {
	r.mu.RLock()
	plugins := r.onAssessmentCreated
	r.mu.RUnlock()

	emit(ctx, r, "OnAssessmentCreated", plugins, func(p OnAssessmentCreated) error {
		return p.OnAssessmentCreated(ctx, a)
	})
}

// EmitActiveChanged emits an activation change.
func (r *Registry) EmitActiveChanged(ctx context.Context, assessmentID id.AssessmentID, active bool, by identity.Identity) {
	r.mu.RLock()
	plugins := r.onActiveChanged
	r.mu.RUnlock()

	emit(ctx, r, "OnActiveChanged", plugins, func(p OnActiveChanged) error {
		return p.OnActiveChanged(ctx, assessmentID, active, by)
	})
}

// EmitInstallmentPaid emits an installment paid event.
func (r *Registry) EmitInstallmentPaid(ctx context.Context, receipt *assessment.Installment) {
	r.mu.RLock()
	plugins := r.onInstallmentPaid
	r.mu.RUnlock()

	emit(ctx, r, "OnInstallmentPaid", plugins, func(p OnInstallmentPaid) error {
		return p.OnInstallmentPaid(ctx, receipt)
	})
}

// EmitPaymentRejected emits a rejected payment.
func (r *Registry) EmitPaymentRejected(ctx context.Context, assessmentID id.AssessmentID, number uint32, payer identity.Identity, reason error) {
	r.mu.RLock()
	plugins := r.onPaymentRejected
	r.mu.RUnlock()

	emit(ctx, r, "OnPaymentRejected", plugins, func(p OnPaymentRejected) error {
		return p.OnPaymentRejected(ctx, assessmentID, number, payer, reason)
	})
}

// EmitFundsForwarded emits a funds forwarded event.
func (r *Registry) EmitFundsForwarded(ctx context.Context, to identity.Identity, amount types.Amount) {
	r.mu.RLock()
	plugins := r.onFundsForwarded
	r.mu.RUnlock()

	emit(ctx, r, "OnFundsForwarded", plugins, func(p OnFundsForwarded) error {
		return p.OnFundsForwarded(ctx, to, amount)
	})
}

// EmitTransferFailed emits a failed forward.
func (r *Registry) EmitTransferFailed(ctx context.Context, to identity.Identity, amount types.Amount, cause error) {
	r.mu.RLock()
	plugins := r.onTransferFailed
	r.mu.RUnlock()

	emit(ctx, r, "OnTransferFailed", plugins, func(p OnTransferFailed) error {
		return p.OnTransferFailed(ctx, to, amount, cause)
	})
}

// EmitTreasuryUpdated emits a treasury change.
func (r *Registry) EmitTreasuryUpdated(ctx context.Context, oldTreasury, newTreasury identity.Identity) {
	r.mu.RLock()
	plugins := r.onTreasuryUpdated
	r.mu.RUnlock()

	emit(ctx, r, "OnTreasuryUpdated", plugins, func(p OnTreasuryUpdated) error {
		return p.OnTreasuryUpdated(ctx, oldTreasury, newTreasury)
	})
}

// EmitAdminTransferred emits an admin change.
func (r *Registry) EmitAdminTransferred(ctx context.Context, oldAdmin, newAdmin identity.Identity) {
	r.mu.RLock()
	plugins := r.onAdminTransferred
	r.mu.RUnlock()

	emit(ctx, r, "OnAdminTransferred", plugins, func(p OnAdminTransferred) error {
		return p.OnAdminTransferred(ctx, oldAdmin, newAdmin)
	})
}

// emit calls fn for every plugin in order. Failures are logged, never
// returned: the change the hook reports has already been committed.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, fn func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the payment pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
