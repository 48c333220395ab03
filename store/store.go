package store

import (
	"context"

	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/role"
)

// Tx is the set of operations available inside a transaction.
// Instead of embedding the per-package interfaces, we explicitly declare all
// methods to avoid naming conflicts.
//
// Implementations return the iptu sentinels: ErrNotFound for missing
// assessments or roles, ErrAlreadyExists for a duplicate assessment ID and
// ErrAlreadyPaid for a duplicate (assessment, number) receipt.
type Tx interface {
	// Assessment methods
	CreateAssessment(ctx context.Context, a *assessment.Assessment) error
	GetAssessment(ctx context.Context, assessmentID id.AssessmentID) (*assessment.Assessment, error)
	UpdateAssessment(ctx context.Context, a *assessment.Assessment) error
	ListAssessments(ctx context.Context, opts assessment.ListOpts) ([]*assessment.Assessment, error)
	RecordInstallment(ctx context.Context, in *assessment.Installment) error
	ListInstallments(ctx context.Context, assessmentID id.AssessmentID) ([]*assessment.Installment, error)

	// Role methods
	GetRoles(ctx context.Context) (*role.Roles, error)
	SaveRoles(ctx context.Context, r *role.Roles) error

	// Event methods
	AppendEvent(ctx context.Context, e *event.Event) error
	LastEventSeq(ctx context.Context) (uint64, error)
	ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error)
}

// Store is the unified storage interface for the ledger. Its Tx methods run
// outside any transaction and see committed state only.
type Store interface {
	Tx

	// InTx runs fn in a transaction. The transaction commits when fn returns
	// nil and rolls back otherwise; fn's error is returned unchanged.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
