package repositories

import (
	"context"
	"time"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// ReportRepository runs the aggregate stock queries behind the reports.
type ReportRepository interface {
	StockSummary(ctx context.Context, expiringFrom, expiringTo time.Time) (*models.StockSummary, error)
	StockValuation(ctx context.Context) ([]models.ValuationRow, error)
}

type reportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sqlx.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) StockSummary(ctx context.Context, expiringFrom, expiringTo time.Time) (*models.StockSummary, error) {
	var summary models.StockSummary
	err := r.db.GetContext(ctx, &summary,
		`SELECT
		    (SELECT COUNT(*) FROM stock_items WHERE active) AS total_items,
		    (SELECT COUNT(*) FROM stock_items WHERE active AND current_quantity > 0
		        AND current_quantity <= minimum_quantity) AS low_stock_items,
		    (SELECT COUNT(*) FROM stock_items WHERE active AND current_quantity <= 0) AS out_of_stock_items,
		    (SELECT COUNT(*) FROM stock_deliveries WHERE status = 'pending') AS pending_deliveries,
		    (SELECT COUNT(*) FROM stock_batches WHERE status = 'active' AND remaining_quantity > 0
		        AND expiry_date BETWEEN $1::date AND $2::date) AS expiring_batches,
		    (SELECT COUNT(*) FROM stock_alerts WHERE NOT acknowledged) AS open_alerts,
		    (SELECT COALESCE(SUM(current_quantity * unit_cost), 0) FROM stock_items WHERE active) AS total_value`,
		dateArg(expiringFrom), dateArg(expiringTo))
	if err != nil {
		return nil, mapError(err, "building stock summary")
	}
	return &summary, nil
}

func (r *reportRepository) StockValuation(ctx context.Context) ([]models.ValuationRow, error) {
	rows := []models.ValuationRow{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT si.id, si.name, sc.name AS category_name, si.unit, si.current_quantity, si.unit_cost,
		        si.current_quantity * si.unit_cost AS total_value
		 FROM stock_items si
		 JOIN stock_categories sc ON sc.id = si.category_id
		 WHERE si.active
		 ORDER BY total_value DESC, si.name`)
	if err != nil {
		return nil, mapError(err, "building stock valuation")
	}
	return rows, nil
}
