package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Delivery statuses. pending is the only non-terminal state.
const (
	DeliveryPending  = "pending"
	DeliveryAccepted = "accepted"
	DeliveryRejected = "rejected"
)

// StockDelivery is a supplier delivery awaiting or past intake.
type StockDelivery struct {
	ID            int64               `json:"id" db:"id"`
	DeliveryDate  time.Time           `json:"delivery_date" db:"delivery_date"`
	Supplier      string              `json:"supplier" db:"supplier"`
	InvoiceNumber *string             `json:"invoice_number,omitempty" db:"invoice_number"`
	InvoiceAmount decimal.NullDecimal `json:"invoice_amount" db:"invoice_amount"`
	Notes         *string             `json:"notes,omitempty" db:"notes"`
	Status        string              `json:"status" db:"status"`
	CreatedBy     *int64              `json:"created_by,omitempty" db:"created_by"`
	ReceivedBy    *int64              `json:"received_by,omitempty" db:"received_by"`
	ReceivedAt    *time.Time          `json:"received_at,omitempty" db:"received_at"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
	ItemCount     int                 `json:"item_count" db:"item_count"`
	Items         []DeliveryItem      `json:"items,omitempty" db:"-"`
}

// DeliveryItem is one expected line of a delivery. Received and damaged
// quantities are set when the delivery is accepted.
type DeliveryItem struct {
	ID               int64               `json:"id" db:"id"`
	DeliveryID       int64               `json:"delivery_id" db:"delivery_id"`
	StockItemID      int64               `json:"stock_item_id" db:"stock_item_id"`
	ItemName         *string             `json:"item_name,omitempty" db:"item_name"`
	Unit             *string             `json:"unit,omitempty" db:"unit"`
	Quantity         float64             `json:"quantity" db:"quantity"`
	UnitCost         decimal.NullDecimal `json:"unit_cost" db:"unit_cost"`
	ExpiryDate       *time.Time          `json:"expiry_date,omitempty" db:"expiry_date"`
	BatchNumber      *string             `json:"batch_number,omitempty" db:"batch_number"`
	Notes            *string             `json:"notes,omitempty" db:"notes"`
	ReceivedQuantity *float64            `json:"received_quantity,omitempty" db:"received_quantity"`
	DamagedQuantity  float64             `json:"damaged_quantity" db:"damaged_quantity"`
}

// DeliveryFilter narrows ListDeliveries.
type DeliveryFilter struct {
	Status   *string
	FromDate *time.Time
	ToDate   *time.Time
}
