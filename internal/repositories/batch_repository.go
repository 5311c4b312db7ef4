package repositories

import (
	"context"
	"fmt"
	"time"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// BatchRepository persists stock batches.
type BatchRepository interface {
	CreateBatch(ctx context.Context, executor SQLExecutor, batch *models.StockBatch) error
	GetBatch(ctx context.Context, executor SQLExecutor, id int64) (*models.StockBatch, error)
	// ListActiveBatches returns batches with stock left in FEFO order.
	ListActiveBatches(ctx context.Context, executor SQLExecutor, itemID int64) ([]models.StockBatch, error)
	// ListExpiring returns active batches with stock left whose expiry falls in [from, to].
	ListExpiring(ctx context.Context, executor SQLExecutor, from, to time.Time) ([]models.ExpiringBatch, error)
	// AdjustRemaining applies delta unless remaining would go negative, flipping
	// status to inactive at zero and back to active above it.
	AdjustRemaining(ctx context.Context, executor SQLExecutor, id int64, delta float64) (*models.StockBatch, error)
}

type batchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new instance of BatchRepository.
func NewBatchRepository(db *sqlx.DB) BatchRepository {
	return &batchRepository{db: db}
}

const batchColumns = `id, stock_item_id, delivery_item_id, batch_number, quantity, remaining_quantity,
	expiry_date, received_date, status, created_at`

func (r *batchRepository) CreateBatch(ctx context.Context, executor SQLExecutor, batch *models.StockBatch) error {
	if batch.Status == "" {
		batch.Status = models.BatchStatusActive
	}
	query := `INSERT INTO stock_batches
	          (stock_item_id, delivery_item_id, batch_number, quantity, remaining_quantity, expiry_date, received_date, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          RETURNING id, created_at`
	err := executor.QueryRowxContext(ctx, query,
		batch.StockItemID, batch.DeliveryItemID, batch.BatchNumber, batch.Quantity, batch.RemainingQuantity,
		nullDateArg(batch.ExpiryDate), dateArg(batch.ReceivedDate), batch.Status,
	).Scan(&batch.ID, &batch.CreatedAt)
	return mapError(err, "creating stock batch")
}

func (r *batchRepository) GetBatch(ctx context.Context, executor SQLExecutor, id int64) (*models.StockBatch, error) {
	var batch models.StockBatch
	if err := executor.GetContext(ctx, &batch, `SELECT `+batchColumns+` FROM stock_batches WHERE id = $1`, id); err != nil {
		return nil, mapError(err, "getting stock batch")
	}
	return &batch, nil
}

func (r *batchRepository) ListActiveBatches(ctx context.Context, executor SQLExecutor, itemID int64) ([]models.StockBatch, error) {
	batches := []models.StockBatch{}
	err := executor.SelectContext(ctx, &batches,
		`SELECT `+batchColumns+` FROM stock_batches
		 WHERE stock_item_id = $1 AND status = 'active' AND remaining_quantity > 0
		 ORDER BY expiry_date ASC NULLS LAST, received_date ASC, id ASC`, itemID)
	if err != nil {
		return nil, mapError(err, "listing active batches")
	}
	return batches, nil
}

func (r *batchRepository) ListExpiring(ctx context.Context, executor SQLExecutor, from, to time.Time) ([]models.ExpiringBatch, error) {
	batches := []models.ExpiringBatch{}
	err := executor.SelectContext(ctx, &batches,
		`SELECT sb.id, sb.stock_item_id, sb.delivery_item_id, sb.batch_number, sb.quantity, sb.remaining_quantity,
		        sb.expiry_date, sb.received_date, sb.status, sb.created_at,
		        si.name AS item_name, si.unit
		 FROM stock_batches sb
		 JOIN stock_items si ON si.id = sb.stock_item_id
		 WHERE sb.status = 'active' AND sb.remaining_quantity > 0
		   AND sb.expiry_date IS NOT NULL
		   AND sb.expiry_date BETWEEN $1::date AND $2::date
		 ORDER BY sb.expiry_date ASC, sb.id ASC`, dateArg(from), dateArg(to))
	if err != nil {
		return nil, mapError(err, "listing expiring batches")
	}
	return batches, nil
}

func (r *batchRepository) AdjustRemaining(ctx context.Context, executor SQLExecutor, id int64, delta float64) (*models.StockBatch, error) {
	var batch models.StockBatch
	err := executor.GetContext(ctx, &batch,
		`UPDATE stock_batches
		 SET remaining_quantity = remaining_quantity + $2,
		     status = CASE WHEN ROUND(remaining_quantity + $2, 3) > 0 THEN 'active' ELSE 'inactive' END
		 WHERE id = $1 AND ROUND(remaining_quantity + $2, 3) >= 0
		 RETURNING `+batchColumns, id, delta)
	if err != nil {
		mapped := mapError(err, "adjusting batch remaining quantity")
		if isNotFound(mapped) {
			return nil, fmt.Errorf("%w: batch %d would go below zero or does not exist", ErrConditionFailed, id)
		}
		return nil, mapped
	}
	return &batch, nil
}
