// Package iptu provides a municipal property-tax (IPTU) assessment and
// installment-payment ledger for Go applications.
//
// The ledger is a library, not a service. It records one assessment per
// property and tax year, accepts exact-amount payments for each installment
// from the registered taxpayer, and forwards every payment to the treasury
// in the same atomic step that records it.
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/iptu"
//	    "github.com/xraph/iptu/store/memory"
//	    "github.com/xraph/iptu/transfer"
//	)
//
//	vault := transfer.NewVault()
//	l := iptu.New(memory.New(), vault,
//	    iptu.WithRoles("prefeito", "sefaz"),
//	)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	// The treasury issues the assessment: R$ 1.000,00 in 4 installments.
//	asmtID, err := l.CreateAssessment(ctx, "sefaz", "0012345-6", "maria", 2025, iptu.Reais(1000), 4)
//
//	// The taxpayer pays installment 1. The value is forwarded to "sefaz".
//	err = l.PayInstallment(ctx, "maria", asmtID, 1, iptu.Reais(250))
//
// # Roles
//
// The admin toggles assessments, sweeps residual custody funds and manages
// both roles. The treasury issues assessments and receives every forwarded
// payment. Every operation takes the caller identity explicitly.
//
// # Atomicity and re-entrancy
//
// Each mutating operation runs in one store transaction together with its
// event log entries. If forwarding fails, the payment is not recorded and
// the call returns ErrTransferFailed. While a payment or sweep is calling
// out to custody, every other mutating call fails with ErrReentrant.
//
// # Stores
//
// store/memory keeps everything in process. store/sqlite, store/postgres
// and store/mongo persist through grove.
package iptu
