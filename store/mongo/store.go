// Package mongo implements store.Store on MongoDB through the grove ORM.
// Transactions need a replica set or sharded cluster.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/iptu"
	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/role"
	iptustore "github.com/xraph/iptu/store"
)

// Collection name constants.
const (
	colAssessments  = "iptu_assessments"
	colInstallments = "iptu_installments"
	colRoles        = "iptu_roles"
	colEvents       = "iptu_events"
)

// compile-time interface check
var _ iptustore.Store = (*Store)(nil)

// querier is satisfied by both *mongodriver.MongoDB and *mongodriver.MongoTx.
type querier interface {
	NewFind(model ...any) *mongodriver.FindQuery
	NewInsert(model any) *mongodriver.InsertQuery
	NewUpdate(model any) *mongodriver.UpdateQuery
}

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	conn
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	mdb := mongodriver.Unwrap(db)
	return &Store{
		conn: conn{q: mdb},
		db:   db,
		mdb:  mdb,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// InTx runs fn inside a session transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx iptustore.Tx) error) error {
	raw, err := s.mdb.GroveTx(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("iptu/mongo: begin: %w", err)
	}
	tx, ok := raw.(*mongodriver.MongoTx)
	if !ok {
		return fmt.Errorf("iptu/mongo: begin: unexpected transaction type %T", raw)
	}

	if err := fn(ctx, conn{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("iptu/mongo: commit: %w", err)
	}
	return nil
}

// Migrate creates indexes for all iptu collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("iptu/mongo: migrate %s indexes: %w", col, err)
		}
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

// conn runs store.Tx operations against the database or a session.
type conn struct {
	q querier
}

// ==================== Assessment Store ====================

func (c conn) CreateAssessment(ctx context.Context, a *assessment.Assessment) error {
	_, err := c.q.NewInsert(toAssessmentModel(a)).Exec(ctx)
	if mongo.IsDuplicateKeyError(err) {
		return iptu.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("iptu/mongo: create assessment: %w", err)
	}
	return nil
}

func (c conn) GetAssessment(ctx context.Context, assessmentID id.AssessmentID) (*assessment.Assessment, error) {
	var m assessmentModel
	err := c.q.NewFind(&m).
		Filter(bson.M{"_id": assessmentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, iptu.ErrNotFound
		}
		return nil, fmt.Errorf("iptu/mongo: get assessment: %w", err)
	}
	paid, err := c.paidNumbers(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	return fromAssessmentModel(&m, paid)
}

func (c conn) UpdateAssessment(ctx context.Context, a *assessment.Assessment) error {
	m := toAssessmentModel(a)
	res, err := c.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("iptu/mongo: update assessment: %w", err)
	}
	if res.MatchedCount() == 0 {
		return iptu.ErrNotFound
	}
	return nil
}

func (c conn) ListAssessments(ctx context.Context, opts assessment.ListOpts) ([]*assessment.Assessment, error) {
	var models []assessmentModel

	filter := bson.M{}
	if !opts.Taxpayer.IsNil() {
		filter["taxpayer"] = opts.Taxpayer.String()
	}
	if opts.Year != 0 {
		filter["year"] = int64(opts.Year)
	}
	if opts.Active != nil {
		filter["active"] = *opts.Active
	}

	q := c.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("iptu/mongo: list assessments: %w", err)
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
	if mongo.IsDuplicateKeyError(err) {
		return iptu.ErrAlreadyPaid
	}
	if err != nil {
		return fmt.Errorf("iptu/mongo: record installment: %w", err)
	}
	return nil
}

func (c conn) ListInstallments(ctx context.Context, assessmentID id.AssessmentID) ([]*assessment.Installment, error) {
	models, err := c.installments(ctx, assessmentID.String())
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

func (c conn) installments(ctx context.Context, assessmentID string) ([]installmentModel, error) {
	var models []installmentModel
	err := c.q.NewFind(&models).
		Filter(bson.M{"assessment_id": assessmentID}).
		Sort(bson.D{{Key: "number", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("iptu/mongo: list installments: %w", err)
	}
	return models, nil
}

// paidNumbers returns the installment numbers recorded for an assessment.
func (c conn) paidNumbers(ctx context.Context, assessmentID string) ([]uint32, error) {
	models, err := c.installments(ctx, assessmentID)
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
	var m rolesModel
	err := c.q.NewFind(&m).
		Filter(bson.M{"_id": rolesDocID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, iptu.ErrNotFound
		}
		return nil, fmt.Errorf("iptu/mongo: get roles: %w", err)
	}
	return fromRolesModel(&m), nil
}

func (c conn) SaveRoles(ctx context.Context, r *role.Roles) error {
	_, err := c.q.NewUpdate((*rolesModel)(nil)).
		Filter(bson.M{"_id": rolesDocID}).
		Set("admin", r.Admin.String()).
		Set("treasury", r.Treasury.String()).
		Set("updated_at", r.UpdatedAt).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("iptu/mongo: save roles: %w", err)
	}
	return nil
}

// ==================== Event Store ====================

func (c conn) AppendEvent(ctx context.Context, e *event.Event) error {
	_, err := c.q.NewInsert(toEventModel(e)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("iptu/mongo: append event %d: %w", e.Seq, err)
	}
	return nil
}

func (c conn) LastEventSeq(ctx context.Context) (uint64, error) {
	var m eventModel
	err := c.q.NewFind(&m).
		Sort(bson.D{{Key: "seq", Value: -1}}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("iptu/mongo: last event seq: %w", err)
	}
	return uint64(m.Seq), nil
}

func (c conn) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{}
	if !opts.AssessmentID.IsNil() {
		filter["assessment_id"] = opts.AssessmentID.String()
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}
	if opts.AfterSeq > 0 {
		filter["seq"] = bson.M{"$gt": int64(opts.AfterSeq)}
	}

	q := c.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "seq", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("iptu/mongo: list events: %w", err)
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all iptu collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colAssessments: {
			{
				Keys:    bson.D{{Key: "registration_code", Value: 1}, {Key: "year", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "taxpayer", Value: 1}, {Key: "year", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
		},
		colInstallments: {
			{
				Keys:    bson.D{{Key: "assessment_id", Value: 1}, {Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colRoles: nil,
		colEvents: {
			{
				Keys:    bson.D{{Key: "seq", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "assessment_id", Value: 1}, {Key: "seq", Value: 1}}},
			{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "seq", Value: 1}}},
		},
	}
}
