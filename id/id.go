// Package id defines TypeID-based identity types for all IPTU ledger records.
//
// Every record uses a single ID struct with a prefix that identifies the
// record type. Event and payment IDs are K-sortable (UUIDv7-based) and
// random. Assessment IDs are derived from the property registration code and
// the tax year, so the same pair always maps to the same ID.
package id

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/binary"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the record type encoded in a TypeID.
type Prefix string

// Prefix constants for all ledger record types.
const (
	PrefixAssessment Prefix = "asmt" // Yearly tax assessment
	PrefixEvent      Prefix = "evt"  // Event log entry
	PrefixPayment    Prefix = "pay"  // Installment payment receipt
)

// ID is the primary identifier type for all ledger records.
// It wraps a TypeID providing a prefix-qualified, URL-safe identifier in the
// format "prefix_suffix".
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new globally unique ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// ForAssessment returns the deterministic assessment ID for a property
// registration code and tax year. The taxpayer is not part of the key, so a
// property has at most one assessment per year.
//
// The code is length-prefixed so distinct pairs never share hash input.
func ForAssessment(registrationCode string, year uint32) ID {
	h := sha256.New()

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(len(registrationCode)))
	h.Write(buf[:])
	h.Write([]byte(registrationCode))
	binary.BigEndian.PutUint32(buf[:4], year)
	h.Write(buf[:4])

	sum := h.Sum(nil)

	tid, err := typeid.FromBytes(string(PrefixAssessment), sum[:16])
	if err != nil {
		panic(fmt.Sprintf("id: derive assessment id: %v", err))
	}

	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string (e.g., "asmt_01h2xcejqtf2nbrexx3vqjhp41")
// into an ID. Returns an error if the string is not valid.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses a TypeID string and validates that its prefix
// matches the expected value.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}

	return parsed, nil
}


// ──────────────────────────────────────────────────
// Type aliases
// ──────────────────────────────────────────────────

// AssessmentID identifies an assessment (prefix: "asmt").
type AssessmentID = ID

// EventID identifies an event log entry (prefix: "evt").
type EventID = ID

// PaymentID identifies an installment receipt (prefix: "pay").
type PaymentID = ID

// NewEventID generates a new unique event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewPaymentID generates a new unique payment ID.
func NewPaymentID() ID { return New(PrefixPayment) }

// ParseAssessmentID parses a string and validates the "asmt" prefix.
func ParseAssessmentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixAssessment) }

// ParseEventID parses a string and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// ParsePaymentID parses a string and validates the "pay" prefix.
func ParsePaymentID(s string) (ID, error) { return ParseWithPrefix(s, PrefixPayment) }

// ──────────────────────────────────────────────────
// ID methods
// ──────────────────────────────────────────────────

// String returns the full TypeID string representation (prefix_suffix).
// Returns an empty string for the Nil ID.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value implements driver.Valuer. The Nil ID stores as NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan implements sql.Scanner for database retrieval.
func (i *ID) Scan(src any) error {
	if src == nil {
		*i = Nil

		return nil
	}

	switch v := src.(type) {
	case string:
		if v == "" {
			*i = Nil

			return nil
		}

		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil

			return nil
		}

		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
