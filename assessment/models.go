package assessment

import (
	"encoding/json"
	"slices"
	"time"

	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/types"
)

// Assessment is one year's IPTU obligation for one property.
type Assessment struct {
	types.Entity
	ID                id.AssessmentID   `json:"id"`
	RegistrationCode  string            `json:"registration_code"`
	Taxpayer          identity.Identity `json:"taxpayer"`
	Year              uint32            `json:"year"`
	TotalAmount       types.Amount      `json:"total_amount"`
	InstallmentCount  uint32            `json:"installment_count"`
	InstallmentAmount types.Amount      `json:"installment_amount"`
	PaidCount         uint32            `json:"paid_count"`
	PaidAmount        types.Amount      `json:"paid_amount"`
	Active            bool              `json:"active"`
	Paid              PaidSet           `json:"paid"`
}

// ValidInstallment reports whether n is in [1, InstallmentCount].
func (a *Assessment) ValidInstallment(n uint32) bool {
	return n >= 1 && n <= a.InstallmentCount
}

// Summary returns every field except the paid set.
func (a *Assessment) Summary() *Summary {
	return &Summary{
		ID:                a.ID,
		RegistrationCode:  a.RegistrationCode,
		Taxpayer:          a.Taxpayer,
		Year:              a.Year,
		TotalAmount:       a.TotalAmount,
		InstallmentCount:  a.InstallmentCount,
		InstallmentAmount: a.InstallmentAmount,
		PaidCount:         a.PaidCount,
		PaidAmount:        a.PaidAmount,
		Active:            a.Active,
	}
}

// Clone returns a deep copy.
func (a *Assessment) Clone() *Assessment {
	c := *a
	c.Paid = a.Paid.Clone()
	return &c
}

// Summary is the read-only view returned by queries.
type Summary struct {
	ID                id.AssessmentID   `json:"id"`
	RegistrationCode  string            `json:"registration_code"`
	Taxpayer          identity.Identity `json:"taxpayer"`
	Year              uint32            `json:"year"`
	TotalAmount       types.Amount      `json:"total_amount"`
	InstallmentCount  uint32            `json:"installment_count"`
	InstallmentAmount types.Amount      `json:"installment_amount"`
	PaidCount         uint32            `json:"paid_count"`
	PaidAmount        types.Amount      `json:"paid_amount"`
	Active            bool              `json:"active"`
}

// Installment is the receipt stored for each paid installment.
type Installment struct {
	ID           id.PaymentID      `json:"id"`
	AssessmentID id.AssessmentID   `json:"assessment_id"`
	Number       uint32            `json:"number"`
	Payer        identity.Identity `json:"payer"`
	Amount       types.Amount      `json:"amount"`
	PaidAt       time.Time         `json:"paid_at"`
}

// ListOpts filters ListAssessments. Zero values mean "any".
type ListOpts struct {
	Taxpayer identity.Identity
	Year     uint32
	Active   *bool
	Limit    int
	Offset   int
}

// ──────────────────────────────────────────────────
// PaidSet
// ──────────────────────────────────────────────────

// PaidSet holds the installment numbers already paid.
type PaidSet map[uint32]struct{}

// NewPaidSet builds a set from installment numbers.
func NewPaidSet(numbers ...uint32) PaidSet {
	s := make(PaidSet, len(numbers))
	for _, n := range numbers {
		s[n] = struct{}{}
	}
	return s
}

// Has reports whether installment n is paid.
func (s PaidSet) Has(n uint32) bool {
	_, ok := s[n]
	return ok
}

// Mark records installment n as paid. It returns false if it already was.
func (s PaidSet) Mark(n uint32) bool {
	if s.Has(n) {
		return false
	}
	s[n] = struct{}{}
	return true
}

// Len returns the number of paid installments.
func (s PaidSet) Len() int { return len(s) }

// Clone returns an independent copy.
func (s PaidSet) Clone() PaidSet {
	c := make(PaidSet, len(s))
	for n := range s {
		c[n] = struct{}{}
	}
	return c
}

// Numbers returns the paid installment numbers in ascending order.
func (s PaidSet) Numbers() []uint32 {
	out := make([]uint32, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// Flags returns, for installments 1..count, whether each is paid.
func (s PaidSet) Flags(count uint32) []bool {
	flags := make([]bool, count)
	for i := range flags {
		flags[i] = s.Has(uint32(i) + 1)
	}
	return flags
}

// MarshalJSON encodes the set as a sorted array of numbers.
func (s PaidSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Numbers())
}

// UnmarshalJSON decodes an array of numbers.
func (s *PaidSet) UnmarshalJSON(data []byte) error {
	var numbers []uint32
	if err := json.Unmarshal(data, &numbers); err != nil {
		return err
	}
	*s = NewPaidSet(numbers...)
	return nil
}
