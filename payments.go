package iptu

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/iptu/assessment"
	"github.com/xraph/iptu/event"
	"github.com/xraph/iptu/id"
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/store"
	"github.com/xraph/iptu/types"
)

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

// PayInstallment records the payment of installment n carrying value and
// forwards value to the treasury. The payment is recorded only if the
// forward succeeds; otherwise nothing changes and the error wraps
// ErrTransferFailed. A call made while another payment or sweep is in
// flight, from any goroutine, fails with ErrReentrant instead of waiting;
// IsRetryable reports true and the caller should try again.
func (l *Ledger) PayInstallment(
	ctx context.Context,
	caller identity.Identity,
	assessmentID id.AssessmentID,
	n uint32,
	value types.Amount,
) error {
	release, err := l.guard.hold()
	if err != nil {
		return err
	}
	defer release()

	var (
		receipt     *assessment.Installment
		treasury    identity.Identity
		rejected    error
		transferErr error
		forwarded   bool
	)

	err = l.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := tx.GetAssessment(ctx, assessmentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				rejected = err
			}
			return err
		}
		if err := checkPayment(a, caller, n, value); err != nil {
			rejected = err
			return err
		}

		roles, err := loadRoles(ctx, tx)
		if err != nil {
			return err
		}
		treasury = roles.Treasury

		now := l.clock.Now()
		a.Paid.Mark(n)
		paid, ok := a.PaidAmount.Add(value)
		if !ok {
			return invalid("paid_amount", "exceeds storable range")
		}
		a.PaidCount++
		a.PaidAmount = paid
		a.Touch(now)
		if err := tx.UpdateAssessment(ctx, a); err != nil {
			return err
		}

		receipt = &assessment.Installment{
			ID:           id.NewPaymentID(),
			AssessmentID: assessmentID,
			Number:       n,
			Payer:        caller,
			Amount:       value,
			PaidAt:       now.UTC(),
		}
		if err := tx.RecordInstallment(ctx, receipt); err != nil {
			return err
		}
		if err := appendEvent(ctx, tx, event.KindInstallmentPaid, assessmentID, event.InstallmentPaid{
			ID:                assessmentID,
			InstallmentNumber: n,
			Payer:             caller,
			Amount:            value,
			Timestamp:         receipt.PaidAt,
		}, now); err != nil {
			return err
		}

		if err := l.custody.Send(ctx, treasury, value); err != nil {
			transferErr = err
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		forwarded = true

		return appendEvent(ctx, tx, event.KindFundsForwarded, assessmentID, event.FundsForwarded{
			To:     treasury,
			Amount: value,
		}, now)
	})

	switch {
	case rejected != nil:
		l.plugins.EmitPaymentRejected(ctx, assessmentID, n, caller, rejected)
		l.logger.Debug("payment rejected",
			"assessment_id", assessmentID.String(),
			"installment", n,
			"error", rejected,
		)
		return err
	case transferErr != nil:
		l.plugins.EmitTransferFailed(ctx, treasury, value, transferErr)
		l.logger.Warn("payment forward failed, rolled back",
			"assessment_id", assessmentID.String(),
			"installment", n,
			"amount", value.String(),
			"error", transferErr,
		)
		return err
	case err != nil:
		if forwarded {
			l.logger.Error("funds forwarded but payment not recorded",
				"assessment_id", assessmentID.String(),
				"installment", n,
				"amount", value.String(),
				"treasury", treasury.String(),
				"error", err,
			)
		}
		return err
	}

	l.plugins.EmitInstallmentPaid(ctx, receipt)
	l.plugins.EmitFundsForwarded(ctx, treasury, value)

	l.logger.Info("installment paid",
		"assessment_id", assessmentID.String(),
		"installment", n,
		"amount", value.String(),
	)

	return nil
}

// checkPayment applies the payment rules in order. Failing any of them
// leaves the assessment untouched.
func checkPayment(a *assessment.Assessment, caller identity.Identity, n uint32, value types.Amount) error {
	switch {
	case !a.Active:
		return ErrNotActive
	case !a.ValidInstallment(n):
		return fmt.Errorf("%w: %d of %d", ErrInvalidInstallment, n, a.InstallmentCount)
	case a.Paid.Has(n):
		return fmt.Errorf("%w: installment %d", ErrAlreadyPaid, n)
	case value != a.InstallmentAmount:
		return fmt.Errorf("%w: got %s, want %s", ErrWrongAmount, value, a.InstallmentAmount)
	case caller.IsNil() || caller != a.Taxpayer:
		return ErrWrongPayer
	}
	return nil
}

// SweepResidualBalance forwards everything held in custody to the treasury,
// such as funds sent to the custody account outside PayInstallment.
// Admin only. It returns the amount forwarded; zero means nothing to sweep.
func (l *Ledger) SweepResidualBalance(ctx context.Context, caller identity.Identity) (types.Amount, error) {
	release, err := l.guard.hold()
	if err != nil {
		return 0, err
	}
	defer release()

	var (
		swept       types.Amount
		attempted   types.Amount
		treasury    identity.Identity
		transferErr error
	)

	err = l.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		roles, err := loadRoles(ctx, tx)
		if err != nil {
			return err
		}
		if !roles.IsAdmin(caller) {
			return ErrUnauthorized
		}
		treasury = roles.Treasury

		balance, err := l.custody.Balance(ctx)
		if err != nil {
			return fmt.Errorf("iptu: read custody balance: %w", err)
		}
		if balance.IsZero() {
			return nil
		}

		attempted = balance
		if err := l.custody.Send(ctx, treasury, balance); err != nil {
			transferErr = err
			return fmt.Errorf("%w: %w", ErrTransferFailed, err)
		}
		swept = balance

		return appendEvent(ctx, tx, event.KindFundsForwarded, id.Nil, event.FundsForwarded{
			To:     treasury,
			Amount: balance,
		}, l.clock.Now())
	})
	if err != nil {
		if transferErr != nil {
			l.plugins.EmitTransferFailed(ctx, treasury, attempted, transferErr)
		}
		return 0, err
	}
	if swept.IsZero() {
		return 0, nil
	}

	l.plugins.EmitFundsForwarded(ctx, treasury, swept)

	l.logger.Info("residual balance swept",
		"amount", swept.String(),
		"treasury", treasury.String(),
	)

	return swept, nil
}
