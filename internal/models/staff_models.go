package models

import "time"

// ShiftSchedule is one scheduled shift for a user. Start and end are HH:MM.
type ShiftSchedule struct {
	ID         int64     `json:"id" db:"id"`
	UserID     int64     `json:"user_id" db:"user_id"`
	FullName   *string   `json:"full_name,omitempty" db:"full_name"`
	ShiftDate  time.Time `json:"shift_date" db:"shift_date"`
	ShiftStart string    `json:"shift_start" db:"shift_start"`
	ShiftEnd   string    `json:"shift_end" db:"shift_end"`
	Role       *string   `json:"role,omitempty" db:"role"`
	Notes      *string   `json:"notes,omitempty" db:"notes"`
	CreatedBy  *int64    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
