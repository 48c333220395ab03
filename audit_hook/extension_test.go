package audithook_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/xraph/iptu"
	audithook "github.com/xraph/iptu/audit_hook"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/store/memory"
	"github.com/xraph/iptu/transfer"
)

type sink struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (s *sink) record(_ context.Context, e *audithook.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *sink) actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.Action
	}
	return out
}

func (s *sink) last() *audithook.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return nil
	}
	return s.events[len(s.events)-1]
}

func newLedger(t *testing.T, ext *audithook.Extension) (*iptu.Ledger, *transfer.Vault) {
	t.Helper()
	vault := transfer.NewVault()
	l := iptu.New(memory.New(), vault,
		iptu.WithRoles("prefeito", "sefaz"),
		iptu.WithLogger(slog.New(slog.DiscardHandler)),
		iptu.WithPlugin(ext),
	)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })
	return l, vault
}

func TestExtensionRecordsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	l, vault := newLedger(t, audithook.New(audithook.RecorderFunc(s.record)))

	aid, err := l.CreateAssessment(ctx, "sefaz", "0012345-6", "maria", 2025, 1000, 4)
	if err != nil {
		t.Fatalf("CreateAssessment: %v", err)
	}
	vault.Deposit(250)
	if err := l.PayInstallment(ctx, "maria", aid, 1, 250); err != nil {
		t.Fatalf("PayInstallment: %v", err)
	}
	if err := l.SetActive(ctx, "prefeito", aid, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}
	if err := l.UpdateTreasury(ctx, "prefeito", "sefaz-2"); err != nil {
		t.Fatalf("UpdateTreasury: %v", err)
	}

	want := []string{
		audithook.ActionAssessmentCreated,
		audithook.ActionInstallmentPaid,
		audithook.ActionFundsForwarded,
		audithook.ActionAssessmentDeactivated,
		audithook.ActionTreasuryUpdated,
	}
	got := s.actions()
	if len(got) != len(want) {
		t.Fatalf("actions: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("action %d: got %q, want %q", i, got[i], want[i])
		}
	}

	last := s.last()
	if last.Metadata["old"] != "sefaz" || last.Metadata["new"] != "sefaz-2" {
		t.Errorf("treasury metadata: %v", last.Metadata)
	}
}

func TestExtensionPaymentRejected(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	l, vault := newLedger(t, audithook.New(audithook.RecorderFunc(s.record)))

	aid, err := l.CreateAssessment(ctx, "sefaz", "0012345-6", "maria", 2025, 1000, 4)
	if err != nil {
		t.Fatalf("CreateAssessment: %v", err)
	}
	vault.Deposit(249)
	if err := l.PayInstallment(ctx, "maria", aid, 1, 249); !errors.Is(err, iptu.ErrWrongAmount) {
		t.Fatalf("got %v, want ErrWrongAmount", err)
	}

	evt := s.last()
	if evt.Action != audithook.ActionPaymentRejected {
		t.Fatalf("action: got %q", evt.Action)
	}
	if evt.Outcome != audithook.OutcomeFailure || evt.Severity != audithook.SeverityWarning {
		t.Errorf("outcome/severity: %q/%q", evt.Outcome, evt.Severity)
	}
	if evt.Metadata["rule"] != "wrong_amount" {
		t.Errorf("rule: got %v", evt.Metadata["rule"])
	}
	if evt.Reason == "" {
		t.Error("expected reason")
	}
}

func TestExtensionTransferFailed(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	ext := audithook.New(audithook.RecorderFunc(s.record))

	if err := ext.OnTransferFailed(ctx, "sefaz", 250, errors.New("frozen")); err != nil {
		t.Fatalf("OnTransferFailed: %v", err)
	}
	evt := s.last()
	if evt.Severity != audithook.SeverityCritical || evt.ResourceID != "sefaz" || evt.Reason != "frozen" {
		t.Errorf("event: %+v", evt)
	}
}

func TestExtensionFilters(t *testing.T) {
	ctx := context.Background()
	aid := id.ForAssessment("001", 2025)

	tests := []struct {
		name string
		opts []audithook.Option
		want int
	}{
		{"all enabled", nil, 2},
		{"enabled subset", []audithook.Option{audithook.WithEnabledActions(audithook.ActionAssessmentActivated)}, 1},
		{"disabled", []audithook.Option{audithook.WithDisabledActions(audithook.ActionAssessmentActivated, audithook.ActionAssessmentDeactivated)}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &sink{}
			ext := audithook.New(audithook.RecorderFunc(s.record), tt.opts...)
			_ = ext.OnActiveChanged(ctx, aid, true, "prefeito")
			_ = ext.OnActiveChanged(ctx, aid, false, "prefeito")
			if got := len(s.actions()); got != tt.want {
				t.Errorf("recorded %d, want %d", got, tt.want)
			}
		})
	}
}

func TestExtensionWithoutPayer(t *testing.T) {
	s := &sink{}
	ext := audithook.New(audithook.RecorderFunc(s.record), audithook.WithoutPayer())

	err := ext.OnPaymentRejected(context.Background(), id.ForAssessment("001", 2025), 1, identity.Identity("maria"), iptu.ErrWrongPayer)
	if err != nil {
		t.Fatalf("OnPaymentRejected: %v", err)
	}
	evt := s.last()
	if _, ok := evt.Metadata["payer"]; ok {
		t.Errorf("payer not redacted: %v", evt.Metadata)
	}
	if _, ok := evt.Metadata[""]; ok {
		t.Errorf("empty key kept: %v", evt.Metadata)
	}
	if evt.Metadata["rule"] != "wrong_payer" {
		t.Errorf("rule: %v", evt.Metadata["rule"])
	}
}

func TestExtensionRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(
		audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error { return errors.New("down") }),
		audithook.WithLogger(slog.New(slog.DiscardHandler)),
	)
	if err := ext.OnFundsForwarded(context.Background(), "sefaz", 100); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
	if len(audithook.Actions()) != 9 {
		t.Errorf("Actions: got %d", len(audithook.Actions()))
	}
}
