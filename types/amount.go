// Package types provides common value types used across the IPTU ledger.
package types

import (
	"math"
	"math/bits"
	"strconv"
	"strings"
)

// Amount is a monetary value in centavos (BRL smallest unit).
// All arithmetic is integer-only and unsigned: the ledger never holds a
// negative balance.
//
// Examples:
//   - Centavos(25000) = R$ 250,00
//   - Reais(1000)     = R$ 1.000,00
type Amount uint64

// MaxAmount is the largest amount the stores can persist (signed 64-bit
// columns).
const MaxAmount = Amount(math.MaxInt64)

// Centavos creates an Amount from centavos.
func Centavos(c uint64) Amount { return Amount(c) }

// Reais creates an Amount from whole reais.
func Reais(r uint64) Amount { return Amount(r * 100) }

// Arithmetic operations

// Add returns a+b and false if the sum overflows.
func (a Amount) Add(b Amount) (Amount, bool) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	return Amount(sum), carry == 0
}

// Mul returns a*n and false if the product overflows.
func (a Amount) Mul(n uint32) (Amount, bool) {
	hi, lo := bits.Mul64(uint64(a), uint64(n))
	return Amount(lo), hi == 0
}

// SplitExact divides a into n equal parts. It returns false when n is zero
// or a is not a multiple of n.
func (a Amount) SplitExact(n uint32) (Amount, bool) {
	if n == 0 {
		return 0, false
	}
	part := a / Amount(n)
	if back, ok := part.Mul(n); !ok || back != a {
		return 0, false
	}
	return part, true
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// IsPositive returns true if the amount is greater than zero.
func (a Amount) IsPositive() bool { return a > 0 }

// Formatting methods

// FormatMajor returns the amount in reais with pt-BR separators, without
// the currency symbol: "1.234,56".
func (a Amount) FormatMajor() string {
	major := uint64(a) / 100
	minor := uint64(a) % 100

	digits := strconv.FormatUint(major, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	if minor < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatUint(minor, 10))
	return b.String()
}

// String returns a human-readable string with currency symbol: "R$ 1.234,56".
func (a Amount) String() string {
	return "R$ " + a.FormatMajor()
}
