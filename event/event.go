// Package event defines the ledger's append-only event log.
//
// Events are written in the same transaction as the state change they
// describe, so a rolled-back operation leaves no event behind. Seq is
// gap-free and starts at 1.
package event

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/types"
)

// Kind names an event type.
type Kind string

const (
	KindTreasuryUpdated   Kind = "treasury.updated"
	KindAdminTransferred  Kind = "admin.transferred"
	KindAssessmentCreated Kind = "assessment.created"
	KindInstallmentPaid   Kind = "installment.paid"
	KindFundsForwarded    Kind = "funds.forwarded"
)

// Event is one immutable log entry.
type Event struct {
	ID           id.EventID      `json:"id"`
	Seq          uint64          `json:"seq"`
	Kind         Kind            `json:"kind"`
	AssessmentID id.AssessmentID `json:"assessment_id,omitempty"`
	Payload      json.RawMessage `json:"payload"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// New builds an event with a fresh ID and the JSON encoding of payload.
// Seq is assigned by the ledger when appending.
func New(kind Kind, assessmentID id.AssessmentID, payload any, now time.Time) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("event: encode %s: %w", kind, err)
	}
	return &Event{
		ID:           id.NewEventID(),
		Kind:         kind,
		AssessmentID: assessmentID,
		Payload:      raw,
		RecordedAt:   now.UTC(),
	}, nil
}

// Decode unmarshals the payload into dst.
func (e *Event) Decode(dst any) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("event: decode %s: %w", e.Kind, err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Payloads
// ──────────────────────────────────────────────────

// TreasuryUpdated is the payload of KindTreasuryUpdated.
type TreasuryUpdated struct {
	Old identity.Identity `json:"old"`
	New identity.Identity `json:"new"`
}

// AdminTransferred is the payload of KindAdminTransferred.
type AdminTransferred struct {
	Old identity.Identity `json:"old"`
	New identity.Identity `json:"new"`
}

// AssessmentCreated is the payload of KindAssessmentCreated.
type AssessmentCreated struct {
	ID                id.AssessmentID   `json:"id"`
	RegistrationCode  string            `json:"registration_code"`
	Taxpayer          identity.Identity `json:"taxpayer"`
	Year              uint32            `json:"year"`
	Total             types.Amount      `json:"total"`
	InstallmentCount  uint32            `json:"installment_count"`
	InstallmentAmount types.Amount      `json:"installment_amount"`
}

// InstallmentPaid is the payload of KindInstallmentPaid.
type InstallmentPaid struct {
	ID                id.AssessmentID   `json:"id"`
	InstallmentNumber uint32            `json:"installment_number"`
	Payer             identity.Identity `json:"payer"`
	Amount            types.Amount      `json:"amount"`
	Timestamp         time.Time         `json:"timestamp"`
}

// FundsForwarded is the payload of KindFundsForwarded.
type FundsForwarded struct {
	To     identity.Identity `json:"to"`
	Amount types.Amount      `json:"amount"`
}

// ──────────────────────────────────────────────────
// Store
// ──────────────────────────────────────────────────

// ListOpts filters the event log. Zero values mean "any".
type ListOpts struct {
	AssessmentID id.AssessmentID
	Kind         Kind
	AfterSeq     uint64
	Limit        int
}

// Store persists the event log.
type Store interface {
	AppendEvent(ctx context.Context, e *Event) error
	LastEventSeq(ctx context.Context) (uint64, error)
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
