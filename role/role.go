// Package role holds the two singleton roles of the ledger: the admin that
// manages configuration and the treasury that issues assessments and receives
// every forwarded payment.
package role

import (
	"context"
	"time"

	"github.com/xraph/iptu/identity"
)

// Roles is the persisted role record.
type Roles struct {
	Admin     identity.Identity `json:"admin"`
	Treasury  identity.Identity `json:"treasury"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// IsAdmin reports whether caller holds the admin role.
func (r *Roles) IsAdmin(caller identity.Identity) bool {
	return !caller.IsNil() && caller == r.Admin
}

// IsTreasury reports whether caller holds the treasury role.
func (r *Roles) IsTreasury(caller identity.Identity) bool {
	return !caller.IsNil() && caller == r.Treasury
}

// Store persists the role record. Get returns the store's not-found error
// when roles were never saved.
type Store interface {
	GetRoles(ctx context.Context) (*Roles, error)
	SaveRoles(ctx context.Context, r *Roles) error
}
