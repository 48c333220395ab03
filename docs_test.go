package iptu_test

import (
	"context"
	"log"
	"log/slog"
	"testing"

	"github.com/xraph/iptu"
	"github.com/xraph/iptu/store/memory"
	"github.com/xraph/iptu/transfer"
	"github.com/xraph/iptu/types"
)

// TestDocumentationExamples verifies that the snippets in the package
// documentation run as written.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		vault := transfer.NewVault()
		l := iptu.New(memory.New(), vault,
			iptu.WithLogger(slog.New(slog.DiscardHandler)),
			iptu.WithRoles("prefeito", "sefaz"),
		)
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		// R$ 1.000,00 in 4 installments
		asmtID, err := l.CreateAssessment(ctx, "sefaz", "0012345-6", "maria", 2025, iptu.Reais(1000), 4)
		if err != nil {
			t.Fatal(err)
		}

		// The host credits custody with the attached value.
		vault.Deposit(iptu.Reais(250))
		if err := l.PayInstallment(ctx, "maria", asmtID, 1, iptu.Reais(250)); err != nil {
			t.Fatal(err)
		}

		s, err := l.GetSummary(ctx, asmtID)
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("paid %d of %d: %s\n", s.PaidCount, s.InstallmentCount, s.PaidAmount)

		if got := vault.BalanceOf("sefaz"); got != iptu.Reais(250) {
			t.Errorf("treasury received %s, want R$ 250,00", got)
		}
		if asmtID != iptu.AssessmentID("0012345-6", 2025) {
			t.Error("assessment ID is not derived from code and year")
		}
	})

	t.Run("AmountExamples", func(t *testing.T) {
		total := types.Reais(1234) + types.Centavos(56)
		if got := total.String(); got != "R$ 1.234,56" {
			t.Errorf("String: got %q", got)
		}
		if got := total.FormatMajor(); got != "1.234,56" {
			t.Errorf("FormatMajor: got %q", got)
		}

		part, ok := types.Reais(1000).SplitExact(4)
		if !ok || part != types.Reais(250) {
			t.Errorf("SplitExact(4) = %s, %v", part, ok)
		}
		if _, ok := types.Reais(1000).SplitExact(3); ok {
			t.Error("SplitExact(3) should not divide 100000 centavos")
		}
	})
}
