package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockSummary is the dashboard view of the stock domain.
type StockSummary struct {
	TotalItems        int             `json:"total_items" db:"total_items"`
	LowStockItems     int             `json:"low_stock_items" db:"low_stock_items"`
	OutOfStockItems   int             `json:"out_of_stock_items" db:"out_of_stock_items"`
	PendingDeliveries int             `json:"pending_deliveries" db:"pending_deliveries"`
	ExpiringBatches   int             `json:"expiring_batches" db:"expiring_batches"`
	OpenAlerts        int             `json:"open_alerts" db:"open_alerts"`
	TotalValue        decimal.Decimal `json:"total_value" db:"total_value"`
}

// ValuationRow is one line of the stock valuation report.
type ValuationRow struct {
	ItemID          int64           `json:"item_id" db:"id"`
	Name            string          `json:"name" db:"name"`
	CategoryName    *string         `json:"category_name,omitempty" db:"category_name"`
	Unit            string          `json:"unit" db:"unit"`
	CurrentQuantity float64         `json:"current_quantity" db:"current_quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	TotalValue      decimal.Decimal `json:"total_value" db:"total_value"`
}

// TaskBreakdown counts a set of tasks. Overdue counts unfinished tasks due before today.
type TaskBreakdown struct {
	Total      int            `json:"total"`
	Completed  int            `json:"completed"`
	Pending    int            `json:"pending"`
	Overdue    int            `json:"overdue"`
	ByStatus   map[string]int `json:"by_status"`
	ByCategory map[string]int `json:"by_category,omitempty"`
	ByPriority map[string]int `json:"by_priority"`
}

// TaskReport is a filtered task listing with its counts.
type TaskReport struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Filters     TaskFilterSet `json:"filters"`
	Stats       TaskBreakdown `json:"stats"`
	Tasks       []Task        `json:"tasks"`
}

// TaskFilterSet echoes the filters a task report was built with.
type TaskFilterSet struct {
	TaskIDs  []int64 `json:"task_ids,omitempty"`
	Status   *string `json:"status,omitempty"`
	Category *string `json:"category,omitempty"`
	Priority *string `json:"priority,omitempty"`
	DateFrom *string `json:"date_from,omitempty"`
	DateTo   *string `json:"date_to,omitempty"`
}

// UserReport covers one user's tasks and shifts over a date range.
type UserReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	User        User            `json:"user"`
	From        string          `json:"date_from"`
	To          string          `json:"date_to"`
	Stats       TaskBreakdown   `json:"stats"`
	Tasks       []Task          `json:"tasks"`
	Shifts      []ShiftSchedule `json:"shifts"`
}

// UserTaskStats is one row of the per-user section of the summary report.
type UserTaskStats struct {
	UserID    int64  `json:"user_id"`
	FullName  string `json:"full_name"`
	Role      string `json:"role"`
	Assigned  int    `json:"assigned"`
	Completed int    `json:"completed"`
	Pending   int    `json:"pending"`
	Overdue   int    `json:"overdue"`
}

// SummaryReport is the management overview of all tasks due in a range.
type SummaryReport struct {
	GeneratedAt time.Time       `json:"generated_at"`
	DateFrom    *string         `json:"date_from,omitempty"`
	DateTo      *string         `json:"date_to,omitempty"`
	Stats       TaskBreakdown   `json:"stats"`
	Users       []UserTaskStats `json:"users,omitempty"`
}
