package domain

import "time"

// Idempotency records that a write keyed by (owner_id, route, key) already
// completed. A retried request carrying the same Idempotency-Key inside the
// TTL is answered from the current persisted state instead of re-applying a
// payload that may since have been superseded.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	OwnerID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_owner_route_key,priority:1"`
	Route      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_owner_route_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_owner_route_key,priority:3"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	SavedCount int       `gorm:"type:INTEGER NOT NULL;default:0"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
