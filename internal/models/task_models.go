package models

import "time"

const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskOverdue    = "overdue"
)

// IsValidTaskStatus reports whether s is a known task status.
func IsValidTaskStatus(s string) bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskOverdue:
		return true
	}
	return false
}

const (
	AssignIndividual = "individual"
	AssignShiftBased = "shift-based"
)

// Task is a unit of work assigned to a user or to whoever works a shift.
type Task struct {
	ID              int64      `json:"id" db:"id"`
	Title           string     `json:"title" db:"title"`
	Description     *string    `json:"description,omitempty" db:"description"`
	Category        string     `json:"category" db:"category"`
	Priority        string     `json:"priority" db:"priority"`
	AssignmentType  string     `json:"assignment_type" db:"assignment_type"`
	AssignedTo      *int64     `json:"assigned_to,omitempty" db:"assigned_to"`
	AssignedName    *string    `json:"assigned_name,omitempty" db:"assigned_name"`
	AssignedDate    *time.Time `json:"assigned_date,omitempty" db:"assigned_date"`
	DueDate         *time.Time `json:"due_date,omitempty" db:"due_date"`
	DueTime         *string    `json:"due_time,omitempty" db:"due_time"`
	Recurrence      string     `json:"recurrence" db:"recurrence"`
	Status          string     `json:"status" db:"status"`
	CreatedBy       *int64     `json:"created_by,omitempty" db:"created_by"`
	CompletedAt     *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	CompletedBy     *int64     `json:"completed_by,omitempty" db:"completed_by"`
	CompletionNotes *string    `json:"completion_notes,omitempty" db:"completion_notes"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	Date       *time.Time
	Status     *string
	AssignedTo *int64
	// ShiftDates includes shift-based tasks assigned on any of these dates.
	ShiftDates []time.Time
}

// TaskStats summarizes tasks by status.
type TaskStats struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
	Overdue  int            `json:"overdue"`
}

// TaskTemplate is a reusable task blueprint managers pick from when creating tasks.
type TaskTemplate struct {
	ID                int64     `json:"id" db:"id"`
	Name              string    `json:"name" db:"name"`
	Description       *string   `json:"description,omitempty" db:"description"`
	Category          string    `json:"category" db:"category"`
	Priority          string    `json:"priority" db:"priority"`
	EstimatedDuration *int      `json:"estimated_duration,omitempty" db:"estimated_duration"`
	RecurrencePattern *string   `json:"recurrence_pattern,omitempty" db:"recurrence_pattern"`
	CreatedBy         *int64    `json:"created_by,omitempty" db:"created_by"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
