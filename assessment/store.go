// Package assessment defines yearly IPTU assessments, their paid-installment
// set and payment receipts.
package assessment

import (
	"context"

	"github.com/xraph/iptu/id"
)

// Store persists assessments and installment receipts.
type Store interface {
	Create(ctx context.Context, a *Assessment) error
	Get(ctx context.Context, assessmentID id.AssessmentID) (*Assessment, error)
	Update(ctx context.Context, a *Assessment) error
	List(ctx context.Context, opts ListOpts) ([]*Assessment, error)
	RecordInstallment(ctx context.Context, in *Installment) error
	ListInstallments(ctx context.Context, assessmentID id.AssessmentID) ([]*Installment, error)
}
