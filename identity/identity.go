// Package identity defines the account identity used for authorization,
// payer checks and fund destinations.
package identity

import "strings"

// Identity names an account known to the hosting environment (a CPF/CNPJ,
// a wallet address, a service principal). The ledger only compares
// identities for equality.
type Identity string

// Nil is the null identity. It never holds a role and is never a valid
// taxpayer or transfer destination.
const Nil Identity = ""

// IsNil reports whether i is empty or whitespace only.
func (i Identity) IsNil() bool {
	return strings.TrimSpace(string(i)) == ""
}

// String returns the identity as text.
func (i Identity) String() string { return string(i) }
