package models

import "time"

const (
	AlertLowStock     = "low_stock"
	AlertOutOfStock   = "out_of_stock"
	AlertExpiringSoon = "expiring_soon"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// IsValidSeverity reports whether s is low, medium or high.
func IsValidSeverity(s string) bool {
	return s == SeverityLow || s == SeverityMedium || s == SeverityHigh
}

// StockAlert is a derived stock condition. At most one unacknowledged alert
// exists per (item, type) and per (batch, expiring_soon).
type StockAlert struct {
	ID             int64      `json:"id" db:"id"`
	AlertType      string     `json:"alert_type" db:"alert_type"`
	StockItemID    int64      `json:"stock_item_id" db:"stock_item_id"`
	ItemName       *string    `json:"item_name,omitempty" db:"item_name"`
	BatchID        *int64     `json:"batch_id,omitempty" db:"batch_id"`
	Message        string     `json:"message" db:"message"`
	Severity       string     `json:"severity" db:"severity"`
	Acknowledged   bool       `json:"acknowledged" db:"acknowledged"`
	AcknowledgedBy *int64     `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}
