// Package sqlite implements store.Store on SQLite through the grove ORM.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
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

// querier is satisfied by both *sqlitedriver.SqliteDB and *sqlitedriver.SqliteTx.
type querier interface {
	NewSelect(model ...any) *sqlitedriver.SelectQuery
	NewInsert(model any) *sqlitedriver.InsertQuery
	NewUpdate(model any) *sqlitedriver.UpdateQuery
	NewRaw(query string, args ...any) *sqlitedriver.RawQuery
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	conn
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	sdb := sqlitedriver.Unwrap(db)
	return &Store{
		conn: conn{q: sdb},
		db:   db,
		sdb:  sdb,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// InTx runs fn inside a SQLite transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx iptustore.Tx) error) error {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("iptu/sqlite: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, conn{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("iptu/sqlite: commit: %w", err)
	}
	return nil
}

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("iptu/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("iptu/sqlite: migration failed: %w", err)
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
		Where("id = ?", assessmentID.String()).
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

	if !opts.Taxpayer.IsNil() {
		q = q.Where("taxpayer = ?", opts.Taxpayer.String())
	}
	if opts.Year != 0 {
		q = q.Where("year = ?", int64(opts.Year))
	}
	if opts.Active != nil {
		q = q.Where("active = ?", *opts.Active)
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
		Where("assessment_id = ?", assessmentID.String()).
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
	var models []installmentModel
	err := c.q.NewSelect(&models).
		Where("assessment_id = ?", assessmentID).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	numbers := make([]uint32, len(models))
	for i := range models {
		numbers[i] = uint32(models[i].Number)
	}
	return numbers, nil
}

// ==================== Role Store ====================

func (c conn) GetRoles(ctx context.Context) (*role.Roles, error) {
	m := new(rolesModel)
	err := c.q.NewSelect(m).
		Where("id = ?", rolesRowID).
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
		OnConflict("(id) DO UPDATE SET admin = excluded.admin, treasury = excluded.treasury, updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

// ==================== Event Store ====================

func (c conn) AppendEvent(ctx context.Context, e *event.Event) error {
	_, err := c.q.NewInsert(toEventModel(e)).Exec(ctx)
	if isUniqueViolation(err) {
		return fmt.Errorf("iptu/sqlite: event seq %d already taken: %w", e.Seq, err)
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

	if !opts.AssessmentID.IsNil() {
		q = q.Where("assessment_id = ?", opts.AssessmentID.String())
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.AfterSeq > 0 {
		q = q.Where("seq > ?", int64(opts.AfterSeq))
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

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, grove.ErrNoRows)
}

// isUniqueViolation reports whether err is a SQLite UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
