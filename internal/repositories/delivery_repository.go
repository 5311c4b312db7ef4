package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// DeliveryRepository persists deliveries and their lines.
type DeliveryRepository interface {
	CreateDelivery(ctx context.Context, executor SQLExecutor, delivery *models.StockDelivery) error
	CreateDeliveryItem(ctx context.Context, executor SQLExecutor, item *models.DeliveryItem) error
	GetDelivery(ctx context.Context, executor SQLExecutor, id int64) (*models.StockDelivery, error)
	ListDeliveryItems(ctx context.Context, executor SQLExecutor, deliveryID int64) ([]models.DeliveryItem, error)
	ListDeliveries(ctx context.Context, filter models.DeliveryFilter) ([]models.StockDelivery, error)
	// TransitionFromPending moves a pending delivery to status. It returns
	// ErrConditionFailed when the delivery is missing or no longer pending.
	TransitionFromPending(ctx context.Context, executor SQLExecutor, id int64, status string, receivedBy int64, at time.Time, notes *string) error
	RecordReceipt(ctx context.Context, executor SQLExecutor, deliveryItemID int64, received, damaged float64) error
}

type deliveryRepository struct {
	db *sqlx.DB
}

// NewDeliveryRepository creates a new instance of DeliveryRepository.
func NewDeliveryRepository(db *sqlx.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

const deliveryColumns = `d.id, d.delivery_date, d.supplier, d.invoice_number, d.invoice_amount, d.notes, d.status,
	d.created_by, d.received_by, d.received_at, d.created_at`

func (r *deliveryRepository) CreateDelivery(ctx context.Context, executor SQLExecutor, delivery *models.StockDelivery) error {
	if delivery.Status == "" {
		delivery.Status = models.DeliveryPending
	}
	query := `INSERT INTO stock_deliveries (delivery_date, supplier, invoice_number, invoice_amount, notes, status, created_by)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id, created_at`
	err := executor.QueryRowxContext(ctx, query,
		dateArg(delivery.DeliveryDate), delivery.Supplier, delivery.InvoiceNumber, delivery.InvoiceAmount,
		delivery.Notes, delivery.Status, delivery.CreatedBy,
	).Scan(&delivery.ID, &delivery.CreatedAt)
	return mapError(err, "creating delivery")
}

func (r *deliveryRepository) CreateDeliveryItem(ctx context.Context, executor SQLExecutor, item *models.DeliveryItem) error {
	query := `INSERT INTO delivery_items (delivery_id, stock_item_id, quantity, unit_cost, expiry_date, batch_number, notes)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING id`
	err := executor.QueryRowxContext(ctx, query,
		item.DeliveryID, item.StockItemID, item.Quantity, item.UnitCost, nullDateArg(item.ExpiryDate),
		item.BatchNumber, item.Notes,
	).Scan(&item.ID)
	if err != nil {
		mapped := mapError(err, "creating delivery item")
		if isForeignKey(mapped) {
			return fmt.Errorf("%w: stock item %d", ErrNotFound, item.StockItemID)
		}
		return mapped
	}
	return nil
}

func (r *deliveryRepository) GetDelivery(ctx context.Context, executor SQLExecutor, id int64) (*models.StockDelivery, error) {
	var delivery models.StockDelivery
	err := executor.GetContext(ctx, &delivery,
		`SELECT `+deliveryColumns+`,
		        (SELECT COUNT(*) FROM delivery_items di WHERE di.delivery_id = d.id) AS item_count
		 FROM stock_deliveries d WHERE d.id = $1`, id)
	if err != nil {
		return nil, mapError(err, "getting delivery")
	}
	return &delivery, nil
}

func (r *deliveryRepository) ListDeliveryItems(ctx context.Context, executor SQLExecutor, deliveryID int64) ([]models.DeliveryItem, error) {
	items := []models.DeliveryItem{}
	err := executor.SelectContext(ctx, &items,
		`SELECT di.id, di.delivery_id, di.stock_item_id, si.name AS item_name, si.unit, di.quantity, di.unit_cost,
		        di.expiry_date, di.batch_number, di.notes, di.received_quantity, di.damaged_quantity
		 FROM delivery_items di
		 JOIN stock_items si ON si.id = di.stock_item_id
		 WHERE di.delivery_id = $1
		 ORDER BY di.id`, deliveryID)
	if err != nil {
		return nil, mapError(err, "listing delivery items")
	}
	return items, nil
}

func (r *deliveryRepository) ListDeliveries(ctx context.Context, filter models.DeliveryFilter) ([]models.StockDelivery, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + deliveryColumns + `, COUNT(di.id) AS item_count
	  FROM stock_deliveries d
	  LEFT JOIN delivery_items di ON di.delivery_id = d.id`)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filter.Status != nil && *filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("d.status = $%d", argCount))
		args = append(args, *filter.Status)
		argCount++
	}
	if filter.FromDate != nil {
		conditions = append(conditions, fmt.Sprintf("d.delivery_date >= $%d::date", argCount))
		args = append(args, dateArg(*filter.FromDate))
		argCount++
	}
	if filter.ToDate != nil {
		conditions = append(conditions, fmt.Sprintf("d.delivery_date <= $%d::date", argCount))
		args = append(args, dateArg(*filter.ToDate))
		argCount++
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" GROUP BY d.id ORDER BY d.delivery_date DESC, d.id DESC")

	deliveries := []models.StockDelivery{}
	if err := r.db.SelectContext(ctx, &deliveries, queryBuilder.String(), args...); err != nil {
		return nil, mapError(err, "listing deliveries")
	}
	return deliveries, nil
}

func (r *deliveryRepository) TransitionFromPending(ctx context.Context, executor SQLExecutor, id int64, status string, receivedBy int64, at time.Time, notes *string) error {
	res, err := executor.ExecContext(ctx,
		`UPDATE stock_deliveries
		 SET status = $2, received_by = $3, received_at = $4, notes = COALESCE($5, notes)
		 WHERE id = $1 AND status = 'pending'`, id, status, receivedBy, at, notes)
	if err != nil {
		return mapError(err, "updating delivery status")
	}
	return requireAffected(res, fmt.Sprintf("delivery %d is not pending", id))
}

func (r *deliveryRepository) RecordReceipt(ctx context.Context, executor SQLExecutor, deliveryItemID int64, received, damaged float64) error {
	res, err := executor.ExecContext(ctx,
		`UPDATE delivery_items SET received_quantity = $2, damaged_quantity = $3 WHERE id = $1`,
		deliveryItemID, received, damaged)
	if err != nil {
		return mapError(err, "recording delivery receipt")
	}
	if err := requireAffected(res, "recording delivery receipt"); err != nil {
		return fmt.Errorf("%w: delivery item %d", ErrNotFound, deliveryItemID)
	}
	return nil
}
