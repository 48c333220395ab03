package types

import "time"

// Entity carries the creation and last-update timestamps shared by ledger
// records.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntity creates an Entity stamped with now (UTC).
func NewEntity(now time.Time) Entity {
	now = now.UTC()
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch sets UpdatedAt to now (UTC).
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now.UTC()
}
