package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/role"
	"github.com/xraph/iptu/types"
)

// rolesDocID is the _id of the single iptu_roles document.
const rolesDocID = "roles"

// ==================== Assessment models ====================

type assessmentModel struct {
	grove.BaseModel `grove:"table:iptu_assessments"`

	ID                string    `grove:"id,pk"              bson:"_id"`
	RegistrationCode  string    `grove:"registration_code"  bson:"registration_code"`
	Taxpayer          string    `grove:"taxpayer"           bson:"taxpayer"`
	Year              int64     `grove:"year"               bson:"year"`
	TotalAmount       int64     `grove:"total_amount"       bson:"total_amount"`
	InstallmentCount  int64     `grove:"installment_count"  bson:"installment_count"`
	InstallmentAmount int64     `grove:"installment_amount" bson:"installment_amount"`
	PaidCount         int64     `grove:"paid_count"         bson:"paid_count"`
	PaidAmount        int64     `grove:"paid_amount"        bson:"paid_amount"`
	Active            bool      `grove:"active"             bson:"active"`
	CreatedAt         time.Time `grove:"created_at"         bson:"created_at"`
	UpdatedAt         time.Time `grove:"updated_at"         bson:"updated_at"`
}

func toAssessmentModel(a *assessment.Assessment) *assessmentModel {
	return &assessmentModel{
		ID:                a.ID.String(),
		RegistrationCode:  a.RegistrationCode,
		Taxpayer:          a.Taxpayer.String(),
		Year:              int64(a.Year),
		TotalAmount:       int64(a.TotalAmount),
		InstallmentCount:  int64(a.InstallmentCount),
		InstallmentAmount: int64(a.InstallmentAmount),
		PaidCount:         int64(a.PaidCount),
		PaidAmount:        int64(a.PaidAmount),
		Active:            a.Active,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}

// fromAssessmentModel converts a document. The paid set comes from the
// iptu_installments collection.
func fromAssessmentModel(m *assessmentModel, paid []uint32) (*assessment.Assessment, error) {
	assessmentID, err := id.ParseAssessmentID(m.ID)
	if err != nil {
		return nil, err
	}
	return &assessment.Assessment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                assessmentID,
		RegistrationCode:  m.RegistrationCode,
		Taxpayer:          identity.Identity(m.Taxpayer),
		Year:              uint32(m.Year),
		TotalAmount:       types.Amount(m.TotalAmount),
		InstallmentCount:  uint32(m.InstallmentCount),
		InstallmentAmount: types.Amount(m.InstallmentAmount),
		PaidCount:         uint32(m.PaidCount),
		PaidAmount:        types.Amount(m.PaidAmount),
		Active:            m.Active,
		Paid:              assessment.NewPaidSet(paid...),
	}, nil
}

// ==================== Installment models ====================

type installmentModel struct {
	grove.BaseModel `grove:"table:iptu_installments"`

	ID           string    `grove:"id,pk"         bson:"_id"`
	AssessmentID string    `grove:"assessment_id" bson:"assessment_id"`
	Number       int64     `grove:"number"        bson:"number"`
	Payer        string    `grove:"payer"         bson:"payer"`
	Amount       int64     `grove:"amount"        bson:"amount"`
	PaidAt       time.Time `grove:"paid_at"       bson:"paid_at"`
}

func toInstallmentModel(in *assessment.Installment) *installmentModel {
	return &installmentModel{
		ID:           in.ID.String(),
		AssessmentID: in.AssessmentID.String(),
		Number:       int64(in.Number),
		Payer:        in.Payer.String(),
		Amount:       int64(in.Amount),
		PaidAt:       in.PaidAt,
	}
}

func fromInstallmentModel(m *installmentModel) (*assessment.Installment, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	assessmentID, err := id.ParseAssessmentID(m.AssessmentID)
	if err != nil {
		return nil, err
	}
	return &assessment.Installment{
		ID:           paymentID,
		AssessmentID: assessmentID,
		Number:       uint32(m.Number),
		Payer:        identity.Identity(m.Payer),
		Amount:       types.Amount(m.Amount),
		PaidAt:       m.PaidAt,
	}, nil
}

// ==================== Role models ====================

type rolesModel struct {
	grove.BaseModel `grove:"table:iptu_roles"`

	ID        string    `grove:"id,pk"      bson:"_id"`
	Admin     string    `grove:"admin"      bson:"admin"`
	Treasury  string    `grove:"treasury"   bson:"treasury"`
	UpdatedAt time.Time `grove:"updated_at" bson:"updated_at"`
}

func fromRolesModel(m *rolesModel) *role.Roles {
	return &role.Roles{
		Admin:     identity.Identity(m.Admin),
		Treasury:  identity.Identity(m.Treasury),
		UpdatedAt: m.UpdatedAt,
	}
}

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:iptu_events"`

	ID           string    `grove:"id,pk"         bson:"_id"`
	Seq          int64     `grove:"seq"           bson:"seq"`
	Kind         string    `grove:"kind"          bson:"kind"`
	AssessmentID string    `grove:"assessment_id" bson:"assessment_id"`
	Payload      string    `grove:"payload"       bson:"payload"`
	RecordedAt   time.Time `grove:"recorded_at"   bson:"recorded_at"`
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		ID:           e.ID.String(),
		Seq:          int64(e.Seq),
		Kind:         string(e.Kind),
		AssessmentID: e.AssessmentID.String(),
		Payload:      string(e.Payload),
		RecordedAt:   e.RecordedAt,
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	eventID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}
	var assessmentID id.AssessmentID
	if m.AssessmentID != "" {
		if assessmentID, err = id.ParseAssessmentID(m.AssessmentID); err != nil {
			return nil, err
		}
	}
	return &event.Event{
		ID:           eventID,
		Seq:          uint64(m.Seq),
		Kind:         event.Kind(m.Kind),
		AssessmentID: assessmentID,
		Payload:      []byte(m.Payload),
		RecordedAt:   m.RecordedAt,
	}, nil
}
