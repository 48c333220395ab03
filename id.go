package iptu

import "github.com/xraph/iptu/id"

// ID is the primary identifier type for all ledger records.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix

// AssessmentID returns the deterministic ID for a property and tax year.
var AssessmentID = id.ForAssessment
