package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/iptu/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"EventID", id.NewEventID, "evt_"},
		{"PaymentID", id.NewPaymentID, "pay_"},
		{"AssessmentID", func() id.ID { return id.ForAssessment("0012345-6", 2025) }, "asmt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestForAssessment(t *testing.T) {
	a := id.ForAssessment("0012345-6", 2025)
	b := id.ForAssessment("0012345-6", 2025)
	if a.String() != b.String() {
		t.Fatalf("expected stable id, got %q and %q", a, b)
	}

	others := []struct {
		name string
		code string
		year uint32
	}{
		{"different year", "0012345-6", 2026},
		{"different code", "0012345-7", 2025},
		{"shifted boundary", "0012345-", 2025},
		{"empty code", "", 2025},
	}

	for _, tt := range others {
		t.Run(tt.name, func(t *testing.T) {
			got := id.ForAssessment(tt.code, tt.year)
			if got.String() == a.String() {
				t.Errorf("ForAssessment(%q, %d) collides with base id", tt.code, tt.year)
			}
		})
	}
}

func TestForAssessmentParses(t *testing.T) {
	a := id.ForAssessment("0098765-4", 2024)
	parsed, err := id.ParseAssessmentID(a.String())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if parsed.String() != a.String() {
		t.Errorf("round-trip mismatch: %q != %q", parsed.String(), a.String())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"EventID", id.NewEventID, id.ParseEventID},
		{"PaymentID", id.NewPaymentID, id.ParsePaymentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseEventID rejects pay_", id.NewPaymentID().String(), id.ParseEventID},
		{"ParsePaymentID rejects asmt_", id.ForAssessment("x", 1).String(), id.ParsePaymentID},
		{"ParseAssessmentID rejects evt_", id.NewEventID().String(), id.ParseAssessmentID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	if i.Prefix() != "" {
		t.Errorf("expected empty prefix, got %q", i.Prefix())
	}
}

func TestScan(t *testing.T) {
	original := id.NewEventID()

	var fromString id.ID
	if err := fromString.Scan(original.String()); err != nil {
		t.Fatalf("Scan(string) failed: %v", err)
	}
	if fromString.String() != original.String() {
		t.Errorf("mismatch: %q != %q", fromString.String(), original.String())
	}

	var fromNil id.ID
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !fromNil.IsNil() {
		t.Error("expected nil ID after scanning NULL")
	}

	var bad id.ID
	if err := bad.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}
