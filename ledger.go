package iptu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/plugin"
	"github.com/xraph/iptu/role"
	"github.com/xraph/iptu/store"
	"github.com/xraph/iptu/transfer"
	"github.com/xraph/iptu/types"
)

// Ledger is the IPTU assessment and payment engine.
type Ledger struct {
	store   store.Store
	custody transfer.Custody
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   Clock
	guard   guard

	skipMigrate bool

	// Roles seeded on first Start
	seedAdmin    identity.Identity
	seedTreasury identity.Identity
}

// New creates a new Ledger. custody is the account payments arrive in and
// are forwarded from.
func New(s store.Store, custody transfer.Custody, opts ...Option) *Ledger {
	l := &Ledger{
		store:   s,
		custody: custody,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		clock:   SystemClock,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the clock used to stamp payments and events.
func WithClock(c Clock) Option {
	return func(l *Ledger) {
		l.clock = c
	}
}

// WithRoles sets the admin and treasury identities stored on the first
// Start. Roles already persisted take precedence.
func WithRoles(admin, treasury identity.Identity) Option {
	return func(l *Ledger) {
		l.seedAdmin = admin
		l.seedTreasury = treasury
	}
}

// WithSkipMigrate makes Start leave the store schema untouched.
func WithSkipMigrate() Option {
	return func(l *Ledger) {
		l.skipMigrate = true
	}
}

// Start migrates the store, seeds the roles if none are stored yet and
// initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	if err := l.seedRoles(ctx); err != nil {
		return err
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("iptu ledger started",
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

func (l *Ledger) seedRoles(ctx context.Context) error {
	return l.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.GetRoles(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("iptu: load roles: %w", err)
		}
		if l.seedAdmin.IsNil() || l.seedTreasury.IsNil() {
			return ErrRolesNotConfigured
		}
		return tx.SaveRoles(ctx, &role.Roles{
			Admin:     l.seedAdmin,
			Treasury:  l.seedTreasury,
			UpdatedAt: l.clock.Now().UTC(),
		})
	})
}

// ──────────────────────────────────────────────────
// Assessment Management
// ──────────────────────────────────────────────────

// CreateAssessment issues the assessment for a property and tax year.
// Only the treasury may call it. The returned ID depends on
// registrationCode and year only.
func (l *Ledger) CreateAssessment(
	ctx context.Context,
	caller identity.Identity,
	registrationCode string,
	taxpayer identity.Identity,
	year uint32,
	total types.Amount,
	installments uint32,
) (id.AssessmentID, error) {
	release, err := l.guard.enter()
	if err != nil {
		return id.Nil, err
	}
	defer release()

	var created *assessment.Assessment
	err = l.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		roles, err := loadRoles(ctx, tx)
		if err != nil {
			return err
		}
		if !roles.IsTreasury(caller) {
			return ErrUnauthorized
		}

		switch {
		case registrationCode == "":
			return invalid("registration_code", "must not be empty")
		case taxpayer.IsNil():
			return invalid("taxpayer", "must not be null")
		case year == 0:
			return invalid("year", "must be positive")
		case !total.IsPositive():
			return invalid("total_amount", "must be positive")
		case total > types.MaxAmount:
			return invalid("total_amount", "exceeds storable range")
		case installments == 0:
			return invalid("installment_count", "must be positive")
		}

		assessmentID := id.ForAssessment(registrationCode, year)
		if _, err := tx.GetAssessment(ctx, assessmentID); err == nil {
			return ErrAlreadyExists
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		part, ok := total.SplitExact(installments)
		if !ok {
			return invalid("total_amount", fmt.Sprintf("%d not divisible into %d installments", total, installments))
		}

		now := l.clock.Now()
		a := &assessment.Assessment{
			Entity:            types.NewEntity(now),
			ID:                assessmentID,
			RegistrationCode:  registrationCode,
			Taxpayer:          taxpayer,
			Year:              year,
			TotalAmount:       total,
			InstallmentCount:  installments,
			InstallmentAmount: part,
			Active:            true,
			Paid:              assessment.NewPaidSet(),
		}
		if err := tx.CreateAssessment(ctx, a); err != nil {
			return err
		}

		created = a
		return appendEvent(ctx, tx, event.KindAssessmentCreated, assessmentID, event.AssessmentCreated{
			ID:                assessmentID,
			RegistrationCode:  registrationCode,
			Taxpayer:          taxpayer,
			Year:              year,
			Total:             total,
			InstallmentCount:  installments,
			InstallmentAmount: part,
		}, now)
	})
	if err != nil {
		l.logger.Debug("assessment rejected",
			"registration_code", registrationCode,
			"year", year,
			"error", err,
		)
		return id.Nil, err
	}

	l.plugins.EmitAssessmentCreated(ctx, created)

	l.logger.Info("assessment created",
		"assessment_id", created.ID.String(),
		"registration_code", registrationCode,
		"year", year,
		"total", total.String(),
		"installments", installments,
	)

	return created.ID, nil
}

// SetActive enables or disables payments on an assessment. Admin only.
func (l *Ledger) SetActive(ctx context.Context, caller identity.Identity, assessmentID id.AssessmentID, active bool) error {
	release, err := l.guard.enter()
	if err != nil {
		return err
	}
	defer release()

	err = l.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		roles, err := loadRoles(ctx, tx)
		if err != nil {
			return err
		}
		if !roles.IsAdmin(caller) {
			return ErrUnauthorized
		}

		a, err := tx.GetAssessment(ctx, assessmentID)
		if err != nil {
			return err
		}
		a.Active = active
		a.Touch(l.clock.Now())
		return tx.UpdateAssessment(ctx, a)
	})
	if err != nil {
		return err
	}

	l.plugins.EmitActiveChanged(ctx, assessmentID, active, caller)

	l.logger.Info("assessment activation changed",
		"assessment_id", assessmentID.String(),
		"active", active,
	)

	return nil
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// GetSummary returns every assessment field except the paid set.
func (l *Ledger) GetSummary(ctx context.Context, assessmentID id.AssessmentID) (*assessment.Summary, error) {
	a, err := l.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return a.Summary(), nil
}

// IsInstallmentPaid reports whether installment n has been paid.
func (l *Ledger) IsInstallmentPaid(ctx context.Context, assessmentID id.AssessmentID, n uint32) (bool, error) {
	a, err := l.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return false, err
	}
	if !a.ValidInstallment(n) {
		return false, fmt.Errorf("%w: %d of %d", ErrInvalidInstallment, n, a.InstallmentCount)
	}
	return a.Paid.Has(n), nil
}

// ListPaidInstallments returns, for installments 1..count in order,
// whether each is paid.
func (l *Ledger) ListPaidInstallments(ctx context.Context, assessmentID id.AssessmentID) ([]bool, error) {
	a, err := l.store.GetAssessment(ctx, assessmentID)
	if err != nil {
		return nil, err
	}
	return a.Paid.Flags(a.InstallmentCount), nil
}

// ListAssessments returns assessments in creation order.
func (l *Ledger) ListAssessments(ctx context.Context, opts assessment.ListOpts) ([]*assessment.Summary, error) {
	list, err := l.store.ListAssessments(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*assessment.Summary, len(list))
	for i, a := range list {
		out[i] = a.Summary()
	}
	return out, nil
}

// ListInstallments returns the payment receipts of an assessment ordered
// by installment number.
func (l *Ledger) ListInstallments(ctx context.Context, assessmentID id.AssessmentID) ([]*assessment.Installment, error) {
	if _, err := l.store.GetAssessment(ctx, assessmentID); err != nil {
		return nil, err
	}
	return l.store.ListInstallments(ctx, assessmentID)
}

// Events returns log entries ordered by sequence number.
func (l *Ledger) Events(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	return l.store.ListEvents(ctx, opts)
}

// Roles returns the current admin and treasury.
func (l *Ledger) Roles(ctx context.Context) (*role.Roles, error) {
	return loadRoles(ctx, l.store)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

func loadRoles(ctx context.Context, tx store.Tx) (*role.Roles, error) {
	r, err := tx.GetRoles(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrRolesNotConfigured
		}
		return nil, fmt.Errorf("iptu: load roles: %w", err)
	}
	return r, nil
}

// appendEvent assigns the next sequence number and appends the event in tx.
func appendEvent(ctx context.Context, tx store.Tx, kind event.Kind, assessmentID id.AssessmentID, payload any, now time.Time) error {
	e, err := event.New(kind, assessmentID, payload, now)
	if err != nil {
		return err
	}
	last, err := tx.LastEventSeq(ctx)
	if err != nil {
		return fmt.Errorf("iptu: read event sequence: %w", err)
	}
	e.Seq = last + 1
	return tx.AppendEvent(ctx, e)
}
