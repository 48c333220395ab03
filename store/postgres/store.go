// Package postgres implements store.Store on PostgreSQL through the grove
// ORM and pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/iptu"
	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/role"
	iptustore "github.com/xraph/iptu/store"
)

// compile-time interface check
var _ iptustore.Store = (*Store)(nil)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// querier is satisfied by both *pgdriver.PgDB and *pgdriver.PgTx.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	conn
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{
		conn: conn{q: pg},
		db:   db,
		pg:   pg,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// InTx runs fn in a READ COMMITTED transaction holding a transaction-scoped
// advisory lock, so ledgers sharing the database serialize their writes.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx iptustore.Tx) error) error {
	tx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{IsolationLevel: driver.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("iptu/postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.NewRaw(`SELECT pg_advisory_xact_lock(hashtext('iptu'))`).Exec(ctx); err != nil {
		return fmt.Errorf("iptu/postgres: lock: %w", err)
	}

	if err := fn(ctx, conn{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("iptu/postgres: commit: %w", err)
	}
	return nil
}

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("iptu/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("iptu/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// conn runs store.Tx operations against the pool or a transaction.
type conn struct {
	q querier
}

// ==================== Assessment Store ====================

func (c conn) CreateAssessment(ctx context.Context, a *assessment.Assessment) error {
	_, err := c.q.NewInsert(toAssessmentModel(a)).Exec(ctx)
	if isUniqueViolation(err) {
		return iptu.ErrAlreadyExists
	}
	return err
}

func (c conn) GetAssessment(ctx context.Context, assessmentID id.AssessmentID) (*assessment.Assessment, error) {
	m := new(assessmentModel)
	err := c.q.NewSelect(m).
		Where("id = $1", assessmentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, iptu.ErrNotFound
		}
		return nil, err
	}
	paid, err := c.paidNumbers(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return fromAssessmentModel(m, paid)
}

func (c conn) UpdateAssessment(ctx context.Context, a *assessment.Assessment) error {
	res, err := c.q.NewUpdate(toAssessmentModel(a)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return iptu.ErrNotFound
	}
	return nil
}

func (c conn) ListAssessments(ctx context.Context, opts assessment.ListOpts) ([]*assessment.Assessment, error) {
	var models []assessmentModel
	q := c.q.NewSelect(&models)

	argIdx := 0
	if !opts.Taxpayer.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("taxpayer = $%d", argIdx), opts.Taxpayer.String())
	}
	if opts.Year != 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("year = $%d", argIdx), int64(opts.Year))
	}
	if opts.Active != nil {
		argIdx++
		q = q.Where(fmt.Sprintf("active = $%d", argIdx), *opts.Active)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*assessment.Assessment, len(models))
	for i := range models {
		paid, err := c.paidNumbers(ctx, models[i].ID)
		if err != nil {
			return nil, err
		}
		a, err := fromAssessmentModel(&models[i], paid)
		if err != nil {
			return nil, err
		}
		result[i] = a
	}
	return result, nil
}

func (c conn) RecordInstallment(ctx context.Context, in *assessment.Installment) error {
	_, err := c.q.NewInsert(toInstallmentModel(in)).Exec(ctx)
	if isUniqueViolation(err) {
		return iptu.ErrAlreadyPaid
	}
	return err
}

func (c conn) ListInstallments(ctx context.Context, assessmentID id.AssessmentID) ([]*assessment.Installment, error) {
	var models []installmentModel
	err := c.q.NewSelect(&models).
		Where("assessment_id = $1", assessmentID.String()).
		OrderExpr("number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*assessment.Installment, len(models))
	for i := range models {
		in, err := fromInstallmentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = in
	}
	return result, nil
}

// paidNumbers returns the installment numbers recorded for an assessment.
func (c conn) paidNumbers(ctx context.Context, assessmentID string) ([]uint32, error) {
	var raw []int64
	err := c.q.NewRaw(
		`SELECT COALESCE(array_agg(number::BIGINT ORDER BY number), '{}') FROM iptu_installments WHERE assessment_id = $1`,
		assessmentID,
	).Scan(ctx, &raw)
	if err != nil {
		return nil, err
	}
	numbers := make([]uint32, len(raw))
	for i, n := range raw {
		numbers[i] = uint32(n)
	}
	return numbers, nil
}

// ==================== Role Store ====================

func (c conn) GetRoles(ctx context.Context) (*role.Roles, error) {
	m := new(rolesModel)
	err := c.q.NewSelect(m).
		Where("id = $1", rolesRowID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, iptu.ErrNotFound
		}
		return nil, err
	}
	return fromRolesModel(m), nil
}

func (c conn) SaveRoles(ctx context.Context, r *role.Roles) error {
	_, err := c.q.NewInsert(toRolesModel(r)).
		OnConflict("(id) DO UPDATE SET admin = EXCLUDED.admin, treasury = EXCLUDED.treasury, updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Event Store ====================

func (c conn) AppendEvent(ctx context.Context, e *event.Event) error {
	_, err := c.q.NewInsert(toEventModel(e)).Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("iptu/postgres: event seq %d already taken: %w", e.Seq, err)
	}
	return err
}

func (c conn) LastEventSeq(ctx context.Context) (uint64, error) {
	var last int64
	err := c.q.NewRaw(`SELECT COALESCE(MAX(seq), 0) FROM iptu_events`).Scan(ctx, &last)
	if err != nil {
		return 0, err
	}
	return uint64(last), nil
}

func (c conn) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := c.q.NewSelect(&models)

	argIdx := 0
	if !opts.AssessmentID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("assessment_id = $%d", argIdx), opts.AssessmentID.String())
	}
	if opts.Kind != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("kind = $%d", argIdx), string(opts.Kind))
	}
	if opts.AfterSeq > 0 {
		argIdx++
		q = q.Where(fmt.Sprintf("seq > $%d", argIdx), int64(opts.AfterSeq))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	q = q.OrderExpr("seq ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*event.Event, len(models))
	for i := range models {
		e, err := fromEventModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = e
	}
	return result, nil
}

// ==================== Helpers ====================

// isNoRows checks for the pgx and database/sql no-rows sentinels.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) || errors.Is(err, grove.ErrNoRows)
}

// isUniqueViolation reports whether err carries SQLSTATE 23505.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
