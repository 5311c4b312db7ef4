package models

import "time"

// AuditEntry records who did what to which entity.
type AuditEntry struct {
	ID         int64     `json:"id" db:"id"`
	UserID     *int64    `json:"user_id,omitempty" db:"user_id"`
	Username   *string   `json:"username,omitempty" db:"username"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   *int64    `json:"entity_id,omitempty" db:"entity_id"`
	Details    *string   `json:"details,omitempty" db:"details"`
	IPAddress  *string   `json:"ip_address,omitempty" db:"ip_address"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// AuditFilter narrows the audit log listing.
type AuditFilter struct {
	UserID     *int64
	EntityType *string
	Limit      int
}
