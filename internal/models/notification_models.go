package models

import "time"

// Notification types.
const (
	NotifyTaskAssigned  = "task_assigned"
	NotifyTaskUpdated   = "task_updated"
	NotifyTaskCompleted = "task_completed"
	NotifyShiftDuty     = "shift_duty"
	NotifyShiftAssigned = "shift_assigned"
)

// Notification is a per-user inbox entry.
type Notification struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	TaskID    *int64    `json:"task_id,omitempty" db:"task_id"`
	Message   string    `json:"message" db:"message"`
	Type      string    `json:"type" db:"type"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Event types pushed to realtime subscribers.
const (
	EventStockAlert        = "stock_alert"
	EventDeliveryAccepted  = "delivery_accepted"
	EventDeliveryRejected  = "delivery_rejected"
	EventStockAdjusted     = "stock_adjusted"
	EventTaskUpdated       = "task_updated"
	EventTaskDeleted       = "task_deleted"
	EventTaskStatusChanged = "task_status_changed"
	EventNotification      = "notification"
)

// Event is the envelope published to realtime subscribers. A zero UserID
// means the event is broadcast to everyone.
type Event struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	UserID  int64       `json:"user_id,omitempty"`
	Payload interface{} `json:"payload"`
	At      time.Time   `json:"at"`
}
