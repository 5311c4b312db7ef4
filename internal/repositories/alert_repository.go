package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// AlertRepository persists stock alerts.
type AlertRepository interface {
	// HasOpenAlert reports whether an unacknowledged alert of alertType exists for
	// the item, or for the batch when batchID is set.
	HasOpenAlert(ctx context.Context, executor SQLExecutor, alertType string, itemID int64, batchID *int64) (bool, error)
	// CreateAlert inserts alert unless an open duplicate exists. It reports whether a row was written.
	CreateAlert(ctx context.Context, executor SQLExecutor, alert *models.StockAlert) (bool, error)
	GetAlert(ctx context.Context, executor SQLExecutor, id int64) (*models.StockAlert, error)
	ListAlerts(ctx context.Context, acknowledged *bool) ([]models.StockAlert, error)
	// AcknowledgeAlert marks an open alert acknowledged. It returns ErrConditionFailed
	// when the alert is missing or already acknowledged.
	AcknowledgeAlert(ctx context.Context, executor SQLExecutor, id, userID int64, at time.Time) error
}

type alertRepository struct {
	db *sqlx.DB
}

// NewAlertRepository creates a new instance of AlertRepository.
func NewAlertRepository(db *sqlx.DB) AlertRepository {
	return &alertRepository{db: db}
}

const alertSelect = `SELECT a.id, a.alert_type, a.stock_item_id, si.name AS item_name, a.batch_id, a.message, a.severity,
	       a.acknowledged, a.acknowledged_by, a.acknowledged_at, a.created_at
	FROM stock_alerts a
	JOIN stock_items si ON si.id = a.stock_item_id`

func (r *alertRepository) HasOpenAlert(ctx context.Context, executor SQLExecutor, alertType string, itemID int64, batchID *int64) (bool, error) {
	var exists bool
	var err error
	if batchID != nil {
		err = executor.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM stock_alerts
			                WHERE batch_id = $1 AND alert_type = $2 AND acknowledged = FALSE)`, *batchID, alertType)
	} else {
		err = executor.GetContext(ctx, &exists,
			`SELECT EXISTS (SELECT 1 FROM stock_alerts
			                WHERE stock_item_id = $1 AND alert_type = $2 AND batch_id IS NULL AND acknowledged = FALSE)`,
			itemID, alertType)
	}
	if err != nil {
		return false, mapError(err, "checking open alerts")
	}
	return exists, nil
}

func (r *alertRepository) CreateAlert(ctx context.Context, executor SQLExecutor, alert *models.StockAlert) (bool, error) {
	err := executor.QueryRowxContext(ctx,
		`INSERT INTO stock_alerts (alert_type, stock_item_id, batch_id, message, severity)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING
		 RETURNING id, created_at`,
		alert.AlertType, alert.StockItemID, alert.BatchID, alert.Message, alert.Severity,
	).Scan(&alert.ID, &alert.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapError(err, "creating stock alert")
	}
	return true, nil
}

func (r *alertRepository) GetAlert(ctx context.Context, executor SQLExecutor, id int64) (*models.StockAlert, error) {
	var alert models.StockAlert
	if err := executor.GetContext(ctx, &alert, alertSelect+` WHERE a.id = $1`, id); err != nil {
		return nil, mapError(err, "getting stock alert")
	}
	return &alert, nil
}

func (r *alertRepository) ListAlerts(ctx context.Context, acknowledged *bool) ([]models.StockAlert, error) {
	query := alertSelect
	var args []interface{}
	if acknowledged != nil {
		query += ` WHERE a.acknowledged = $1`
		args = append(args, *acknowledged)
	}
	query += ` ORDER BY CASE a.severity WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, a.created_at DESC, a.id DESC`

	alerts := []models.StockAlert{}
	if err := r.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, mapError(err, "listing stock alerts")
	}
	return alerts, nil
}

func (r *alertRepository) AcknowledgeAlert(ctx context.Context, executor SQLExecutor, id, userID int64, at time.Time) error {
	res, err := executor.ExecContext(ctx,
		`UPDATE stock_alerts SET acknowledged = TRUE, acknowledged_by = $2, acknowledged_at = $3
		 WHERE id = $1 AND acknowledged = FALSE`, id, userID, at)
	if err != nil {
		return mapError(err, "acknowledging stock alert")
	}
	return requireAffected(res, fmt.Sprintf("alert %d is not open", id))
}
