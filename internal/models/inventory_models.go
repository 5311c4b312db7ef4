package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockStatus is derived from quantity and minimum at read time.
type StockStatus string

const (
	StockStatusOK  StockStatus = "ok"
	StockStatusLow StockStatus = "low"
	StockStatusOut StockStatus = "out"
)

// StockStatusOf returns out when quantity is zero (or below), low when it is at or
// under minimum, and ok otherwise.
func StockStatusOf(quantity, minimum float64) StockStatus {
	switch {
	case quantity <= 0:
		return StockStatusOut
	case quantity <= minimum:
		return StockStatusLow
	default:
		return StockStatusOK
	}
}

// StockCategory groups stock items.
type StockCategory struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// StockItem is a catalog entry. CurrentQuantity is an eagerly maintained counter.
type StockItem struct {
	ID              int64           `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	CategoryID      int64           `json:"category_id" db:"category_id"`
	CategoryName    *string         `json:"category_name,omitempty" db:"category_name"`
	Unit            string          `json:"unit" db:"unit"`
	SKU             *string         `json:"sku,omitempty" db:"sku"`
	Supplier        *string         `json:"supplier,omitempty" db:"supplier"`
	MinimumQuantity float64         `json:"minimum_quantity" db:"minimum_quantity"`
	MaximumQuantity float64         `json:"maximum_quantity" db:"maximum_quantity"`
	CurrentQuantity float64         `json:"current_quantity" db:"current_quantity"`
	UnitCost        decimal.Decimal `json:"unit_cost" db:"unit_cost"`
	Notes           *string         `json:"notes,omitempty" db:"notes"`
	Active          bool            `json:"active" db:"active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
	StockStatus     StockStatus     `json:"stock_status" db:"-"`
}

// WithStatus fills StockStatus from the current counters.
func (i *StockItem) WithStatus() *StockItem {
	i.StockStatus = StockStatusOf(i.CurrentQuantity, i.MinimumQuantity)
	return i
}

// Value is quantity times unit cost.
func (i *StockItem) Value() decimal.Decimal {
	return decimal.NewFromFloat(i.CurrentQuantity).Mul(i.UnitCost)
}

// StockItemFilter narrows ListItems. Nil fields are not applied.
type StockItemFilter struct {
	CategoryID *int64
	Active     *bool
	LowStock   bool
}

// Batch statuses.
const (
	BatchStatusActive   = "active"
	BatchStatusInactive = "inactive"
)

// StockBatch is a lot received through one accepted delivery line.
type StockBatch struct {
	ID                int64      `json:"id" db:"id"`
	StockItemID       int64      `json:"stock_item_id" db:"stock_item_id"`
	DeliveryItemID    *int64     `json:"delivery_item_id,omitempty" db:"delivery_item_id"`
	BatchNumber       *string    `json:"batch_number,omitempty" db:"batch_number"`
	Quantity          float64    `json:"quantity" db:"quantity"`
	RemainingQuantity float64    `json:"remaining_quantity" db:"remaining_quantity"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty" db:"expiry_date"`
	ReceivedDate      time.Time  `json:"received_date" db:"received_date"`
	Status            string     `json:"status" db:"status"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

// ExpiringBatch is a batch joined with its item for expiry listings and alerts.
type ExpiringBatch struct {
	StockBatch
	ItemName string `json:"item_name" db:"item_name"`
	Unit     string `json:"unit" db:"unit"`
}

// Transaction types recorded in the stock ledger.
const (
	TxnDelivery    = "delivery"
	TxnAdjustment  = "adjustment"
	TxnConsumption = "consumption"
	TxnReturn      = "return"
	TxnWaste       = "waste"
)

// Reference types used by ledger rows.
const (
	RefDelivery = "delivery"
	RefManual   = "manual"
	RefBatch    = "batch"
)

// StockTransaction is an immutable ledger row for one quantity change.
type StockTransaction struct {
	ID              int64     `json:"id" db:"id"`
	StockItemID     int64     `json:"stock_item_id" db:"stock_item_id"`
	BatchID         *int64    `json:"batch_id,omitempty" db:"batch_id"`
	TransactionType string    `json:"transaction_type" db:"transaction_type"`
	Quantity        float64   `json:"quantity" db:"quantity"`
	ReferenceType   *string   `json:"reference_type,omitempty" db:"reference_type"`
	ReferenceID     *int64    `json:"reference_id,omitempty" db:"reference_id"`
	Notes           *string   `json:"notes,omitempty" db:"notes"`
	PerformedBy     *int64    `json:"performed_by,omitempty" db:"performed_by"`
	PerformedByName *string   `json:"performed_by_name,omitempty" db:"performed_by_name"`
	PerformedAt     time.Time `json:"performed_at" db:"performed_at"`
}

// StockItemPatch carries a partial update. Nil fields keep their stored value.
type StockItemPatch struct {
	Name            *string
	CategoryID      *int64
	Unit            *string
	SKU             *string
	Supplier        *string
	MinimumQuantity *float64
	MaximumQuantity *float64
	UnitCost        *decimal.Decimal
	Notes           *string
	Active          *bool
}
