package sqlite_test

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/iptu"
	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/store/sqlite"
	"github.com/xraph/iptu/transfer"
	"github.com/xraph/iptu/types"
)

const (
	admin    identity.Identity = "prefeito"
	treasury identity.Identity = "sefaz"
	maria    identity.Identity = "maria"
	joao     identity.Identity = "joao"
)

var paidAt = time.Date(2025, time.March, 10, 14, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()

	sdb := sqlitedriver.New()
	if err := sdb.Open(context.Background(), filepath.Join(t.TempDir(), "iptu.db")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		t.Fatalf("grove open: %v", err)
	}
	return sqlite.New(db)
}

func startLedger(t *testing.T) (*iptu.Ledger, *transfer.Vault) {
	t.Helper()

	vault := transfer.NewVault()
	l := iptu.New(openStore(t), vault,
		iptu.WithRoles(admin, treasury),
		iptu.WithLogger(slog.New(slog.DiscardHandler)),
		iptu.WithClock(iptu.ClockFunc(func() time.Time { return paidAt })),
	)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })
	return l, vault
}

func TestLedgerOnSQLite(t *testing.T) {
	ctx := context.Background()
	l, vault := startLedger(t)

	aid, err := l.CreateAssessment(ctx, treasury, "0012345-6", maria, 2025, 1000, 4)
	if err != nil {
		t.Fatalf("CreateAssessment: %v", err)
	}
	if aid != id.ForAssessment("0012345-6", 2025) {
		t.Errorf("assessment id = %s, want derived id", aid)
	}
	if _, err := l.CreateAssessment(ctx, treasury, "0012345-6", joao, 2025, 2000, 2); !errors.Is(err, iptu.ErrAlreadyExists) {
		t.Fatalf("duplicate create: got %v, want ErrAlreadyExists", err)
	}

	pay := func(n uint32) error {
		vault.Deposit(250)
		return l.PayInstallment(ctx, maria, aid, n, 250)
	}

	if err := pay(1); err != nil {
		t.Fatalf("pay 1: %v", err)
	}
	if err := pay(1); !errors.Is(err, iptu.ErrAlreadyPaid) {
		t.Fatalf("repeat pay: got %v, want ErrAlreadyPaid", err)
	}

	vault.OnReceive(func(context.Context, identity.Identity, iptu.Amount) error {
		return errors.New("treasury account frozen")
	})
	if err := pay(2); !errors.Is(err, iptu.ErrTransferFailed) {
		t.Fatalf("pay with failing forward: got %v, want ErrTransferFailed", err)
	}
	vault.OnReceive(nil)

	if err := pay(3); err != nil {
		t.Fatalf("pay 3: %v", err)
	}

	s, err := l.GetSummary(ctx, aid)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if s.PaidCount != 2 || s.PaidAmount != 500 || s.InstallmentAmount != 250 || !s.Active {
		t.Errorf("summary = %+v", s)
	}

	flags, err := l.ListPaidInstallments(ctx, aid)
	if err != nil {
		t.Fatalf("ListPaidInstallments: %v", err)
	}
	if want := []bool{true, false, true, false}; !slices.Equal(flags, want) {
		t.Errorf("paid flags = %v, want %v", flags, want)
	}

	receipts, err := l.ListInstallments(ctx, aid)
	if err != nil {
		t.Fatalf("ListInstallments: %v", err)
	}
	if len(receipts) != 2 || receipts[0].Number != 1 || receipts[1].Number != 3 {
		t.Fatalf("receipts = %+v", receipts)
	}
	if !receipts[0].PaidAt.Equal(paidAt) || receipts[0].Payer != maria {
		t.Errorf("receipt = %+v", receipts[0])
	}

	if got := vault.BalanceOf(treasury); got != 500 {
		t.Errorf("treasury balance = %d, want 500", got)
	}

	evts, err := l.Events(ctx, event.ListOpts{})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	wantKinds := []event.Kind{
		event.KindAssessmentCreated,
		event.KindInstallmentPaid,
		event.KindFundsForwarded,
		event.KindInstallmentPaid,
		event.KindFundsForwarded,
	}
	gotKinds := make([]event.Kind, len(evts))
	for i, e := range evts {
		gotKinds[i] = e.Kind
		if i > 0 && e.Seq <= evts[i-1].Seq {
			t.Errorf("event %d seq %d not after %d", i, e.Seq, evts[i-1].Seq)
		}
	}
	if !slices.Equal(gotKinds, wantKinds) {
		t.Errorf("event kinds = %v, want %v", gotKinds, wantKinds)
	}

	var paid event.InstallmentPaid
	if err := evts[3].Decode(&paid); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if paid.InstallmentNumber != 3 || paid.Amount != 250 {
		t.Errorf("installment paid payload = %+v", paid)
	}
}

func TestLedgerOnSQLite_RejectedPayments(t *testing.T) {
	ctx := context.Background()
	l, vault := startLedger(t)

	aid, err := l.CreateAssessment(ctx, treasury, "0012345-6", maria, 2025, 1000, 4)
	if err != nil {
		t.Fatalf("CreateAssessment: %v", err)
	}

	tests := []struct {
		name   string
		caller identity.Identity
		id     id.AssessmentID
		n      uint32
		value  iptu.Amount
		want   error
	}{
		{"unknown assessment", maria, id.ForAssessment("missing", 2025), 1, 250, iptu.ErrNotFound},
		{"installment zero", maria, aid, 0, 250, iptu.ErrInvalidInstallment},
		{"installment past count", maria, aid, 5, 250, iptu.ErrInvalidInstallment},
		{"wrong amount", maria, aid, 1, 249, iptu.ErrWrongAmount},
		{"wrong payer", joao, aid, 1, 250, iptu.ErrWrongPayer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vault.Deposit(tt.value)
			if err := l.PayInstallment(ctx, tt.caller, tt.id, tt.n, tt.value); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	s, err := l.GetSummary(ctx, aid)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if s.PaidCount != 0 || s.PaidAmount != 0 {
		t.Errorf("rejected payments changed state: %+v", s)
	}
	receipts, err := l.ListInstallments(ctx, aid)
	if err != nil {
		t.Fatalf("ListInstallments: %v", err)
	}
	if len(receipts) != 0 {
		t.Errorf("got %d receipts, want none", len(receipts))
	}
}

func TestStoreSentinels(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	if _, err := s.GetRoles(ctx); !errors.Is(err, iptu.ErrNotFound) {
		t.Errorf("GetRoles on empty store: got %v, want ErrNotFound", err)
	}

	a := &assessment.Assessment{
		Entity:            types.NewEntity(paidAt),
		ID:                id.ForAssessment("0012345-6", 2025),
		RegistrationCode:  "0012345-6",
		Taxpayer:          maria,
		Year:              2025,
		TotalAmount:       1000,
		InstallmentCount:  4,
		InstallmentAmount: 250,
		Active:            true,
		Paid:              assessment.NewPaidSet(),
	}
	if err := s.CreateAssessment(ctx, a); err != nil {
		t.Fatalf("CreateAssessment: %v", err)
	}
	if err := s.CreateAssessment(ctx, a); !errors.Is(err, iptu.ErrAlreadyExists) {
		t.Errorf("duplicate CreateAssessment: got %v, want ErrAlreadyExists", err)
	}

	receipt := &assessment.Installment{
		ID:           id.NewPaymentID(),
		AssessmentID: a.ID,
		Number:       1,
		Payer:        maria,
		Amount:       250,
		PaidAt:       paidAt,
	}
	if err := s.RecordInstallment(ctx, receipt); err != nil {
		t.Fatalf("RecordInstallment: %v", err)
	}
	receipt.ID = id.NewPaymentID()
	if err := s.RecordInstallment(ctx, receipt); !errors.Is(err, iptu.ErrAlreadyPaid) {
		t.Errorf("duplicate RecordInstallment: got %v, want ErrAlreadyPaid", err)
	}

	got, err := s.GetAssessment(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAssessment: %v", err)
	}
	if !got.Paid.Has(1) || got.Paid.Has(2) {
		t.Errorf("paid set not derived from receipts: %+v", got.Paid)
	}
	if !got.CreatedAt.Equal(paidAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, paidAt)
	}

	if _, err := s.GetAssessment(ctx, id.ForAssessment("missing", 2025)); !errors.Is(err, iptu.ErrNotFound) {
		t.Errorf("GetAssessment unknown: got %v, want ErrNotFound", err)
	}
}
