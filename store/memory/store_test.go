package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/iptu"
	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/role"
	"github.com/xraph/iptu/store"
	"github.com/xraph/iptu/store/memory"
)

func newAssessment(code string) *assessment.Assessment {
	return &assessment.Assessment{
		ID:                id.ForAssessment(code, 2025),
		RegistrationCode:  code,
		Taxpayer:          "maria",
		Year:              2025,
		TotalAmount:       1000,
		InstallmentCount:  4,
		InstallmentAmount: 250,
		Active:            true,
		Paid:              assessment.NewPaidSet(),
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a := newAssessment("001")

	if err := s.CreateAssessment(ctx, a); err != nil {
		t.Fatalf("CreateAssessment: %v", err)
	}
	if err := s.CreateAssessment(ctx, a); !errors.Is(err, iptu.ErrAlreadyExists) {
		t.Fatalf("duplicate create: got %v, want ErrAlreadyExists", err)
	}

	got, err := s.GetAssessment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAssessment: %v", err)
	}
	if got.RegistrationCode != "001" || got.InstallmentAmount != 250 {
		t.Errorf("unexpected assessment: %+v", got)
	}

	got.Paid.Mark(1)
	again, _ := s.GetAssessment(ctx, a.ID)
	if again.Paid.Has(1) {
		t.Error("mutating a returned assessment changed the stored copy")
	}

	if _, err := s.GetAssessment(ctx, id.ForAssessment("missing", 2025)); !errors.Is(err, iptu.ErrNotFound) {
		t.Errorf("missing: got %v, want ErrNotFound", err)
	}
}

func TestInTxRollback(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a := newAssessment("002")
	if err := s.CreateAssessment(ctx, a); err != nil {
		t.Fatalf("CreateAssessment: %v", err)
	}

	boom := errors.New("boom")
	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cur, err := tx.GetAssessment(ctx, a.ID)
		if err != nil {
			return err
		}
		cur.Paid.Mark(1)
		cur.PaidCount = 1
		if err := tx.UpdateAssessment(ctx, cur); err != nil {
			return err
		}
		if err := tx.RecordInstallment(ctx, &assessment.Installment{
			ID: id.NewPaymentID(), AssessmentID: a.ID, Number: 1, Amount: 250,
		}); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &event.Event{ID: id.NewEventID(), Seq: 1, Kind: event.KindInstallmentPaid}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx: got %v, want %v", err, boom)
	}

	got, _ := s.GetAssessment(ctx, a.ID)
	if got.PaidCount != 0 || got.Paid.Len() != 0 {
		t.Errorf("rolled back update is visible: %+v", got)
	}
	receipts, _ := s.ListInstallments(ctx, a.ID)
	if len(receipts) != 0 {
		t.Errorf("rolled back receipt is visible: %d", len(receipts))
	}
	seq, _ := s.LastEventSeq(ctx)
	if seq != 0 {
		t.Errorf("rolled back event is visible: seq %d", seq)
	}
}

func TestRecordInstallmentDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a := newAssessment("003")
	_ = s.CreateAssessment(ctx, a)

	in := &assessment.Installment{ID: id.NewPaymentID(), AssessmentID: a.ID, Number: 2, Amount: 250}
	if err := s.RecordInstallment(ctx, in); err != nil {
		t.Fatalf("RecordInstallment: %v", err)
	}
	if err := s.RecordInstallment(ctx, in); !errors.Is(err, iptu.ErrAlreadyPaid) {
		t.Errorf("duplicate: got %v, want ErrAlreadyPaid", err)
	}
}

func TestListAssessmentsFilters(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	a := newAssessment("010")
	b := newAssessment("011")
	b.Active = false
	c := newAssessment("012")
	c.Taxpayer = "joao"
	for _, x := range []*assessment.Assessment{a, b, c} {
		if err := s.CreateAssessment(ctx, x); err != nil {
			t.Fatalf("CreateAssessment: %v", err)
		}
	}

	inactive := false
	tests := []struct {
		name string
		opts assessment.ListOpts
		want []string
	}{
		{"all", assessment.ListOpts{}, []string{"010", "011", "012"}},
		{"taxpayer", assessment.ListOpts{Taxpayer: "joao"}, []string{"012"}},
		{"inactive", assessment.ListOpts{Active: &inactive}, []string{"011"}},
		{"page", assessment.ListOpts{Offset: 1, Limit: 1}, []string{"011"}},
		{"other year", assessment.ListOpts{Year: 2024}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListAssessments(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListAssessments: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].RegistrationCode != tt.want[i] {
					t.Errorf("result %d: got %s, want %s", i, got[i].RegistrationCode, tt.want[i])
				}
			}
		})
	}
}

func TestRolesAndEvents(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	if _, err := s.GetRoles(ctx); !errors.Is(err, iptu.ErrNotFound) {
		t.Fatalf("GetRoles before save: got %v, want ErrNotFound", err)
	}
	if err := s.SaveRoles(ctx, &role.Roles{Admin: "prefeito", Treasury: "sefaz"}); err != nil {
		t.Fatalf("SaveRoles: %v", err)
	}
	r, err := s.GetRoles(ctx)
	if err != nil || r.Admin != "prefeito" || r.Treasury != "sefaz" {
		t.Fatalf("GetRoles: %+v, %v", r, err)
	}

	asmt := id.ForAssessment("020", 2025)
	for seq, kind := range []event.Kind{event.KindAssessmentCreated, event.KindInstallmentPaid, event.KindFundsForwarded} {
		e := &event.Event{ID: id.NewEventID(), Seq: uint64(seq + 1), Kind: kind, AssessmentID: asmt}
		if err := s.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	last, _ := s.LastEventSeq(ctx)
	if last != 3 {
		t.Errorf("LastEventSeq: got %d, want 3", last)
	}

	paid, _ := s.ListEvents(ctx, event.ListOpts{Kind: event.KindInstallmentPaid})
	if len(paid) != 1 || paid[0].Seq != 2 {
		t.Errorf("kind filter: got %+v", paid)
	}
	after, _ := s.ListEvents(ctx, event.ListOpts{AfterSeq: 1, Limit: 1})
	if len(after) != 1 || after[0].Seq != 2 {
		t.Errorf("after/limit filter: got %+v", after)
	}
}
