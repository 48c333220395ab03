package iptu

import (
	"github.com/xraph/iptu/identity"
	"github.com/xraph/iptu/types"
)

// Re-export common types so callers don't have to import the leaf packages.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// Identity is re-exported from identity package.
type Identity = identity.Identity

// Re-export constructors
var (
	Centavos  = types.Centavos
	Reais     = types.Reais
	NewEntity = types.NewEntity
)
