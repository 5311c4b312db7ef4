package repositories

import (
	"context"
	"fmt"
	"strings"

	"venue_ops_backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// StockRepository covers stock categories and the item catalog.
type StockRepository interface {
	ListCategories(ctx context.Context) ([]models.StockCategory, error)
	CreateCategory(ctx context.Context, executor SQLExecutor, category *models.StockCategory) error
	CategoryExists(ctx context.Context, executor SQLExecutor, id int64) (bool, error)

	ListItems(ctx context.Context, executor SQLExecutor, filter models.StockItemFilter) ([]models.StockItem, error)
	GetItem(ctx context.Context, executor SQLExecutor, id int64) (*models.StockItem, error)
	// LockItem reads the item with a row lock held until the transaction ends.
	LockItem(ctx context.Context, executor SQLExecutor, id int64) (*models.StockItem, error)
	CreateItem(ctx context.Context, executor SQLExecutor, item *models.StockItem) error
	UpdateItem(ctx context.Context, executor SQLExecutor, id int64, patch models.StockItemPatch) (*models.StockItem, error)
	DeleteItem(ctx context.Context, executor SQLExecutor, id int64) error
	// HasHistory reports whether any batch or ledger row references the item.
	HasHistory(ctx context.Context, executor SQLExecutor, id int64) (bool, error)
	// AddQuantity applies delta to current_quantity unless the result would be
	// negative, in which case ErrConditionFailed is returned.
	AddQuantity(ctx context.Context, executor SQLExecutor, id int64, delta float64) (float64, error)
}

type stockRepository struct {
	db *sqlx.DB
}

// NewStockRepository creates a new instance of StockRepository.
func NewStockRepository(db *sqlx.DB) StockRepository {
	return &stockRepository{db: db}
}

const stockItemSelect = `SELECT si.id, si.name, si.category_id, sc.name AS category_name, si.unit, si.sku, si.supplier,
	       si.minimum_quantity, si.maximum_quantity, si.current_quantity, si.unit_cost, si.notes, si.active,
	       si.created_at, si.updated_at
	FROM stock_items si
	JOIN stock_categories sc ON sc.id = si.category_id`

func (r *stockRepository) ListCategories(ctx context.Context) ([]models.StockCategory, error) {
	categories := []models.StockCategory{}
	err := r.db.SelectContext(ctx, &categories,
		`SELECT id, name, description, created_at FROM stock_categories ORDER BY name`)
	if err != nil {
		return nil, mapError(err, "listing stock categories")
	}
	return categories, nil
}

func (r *stockRepository) CreateCategory(ctx context.Context, executor SQLExecutor, category *models.StockCategory) error {
	err := executor.QueryRowxContext(ctx,
		`INSERT INTO stock_categories (name, description) VALUES ($1, $2) RETURNING id, created_at`,
		category.Name, category.Description,
	).Scan(&category.ID, &category.CreatedAt)
	return mapError(err, "creating stock category")
}

func (r *stockRepository) CategoryExists(ctx context.Context, executor SQLExecutor, id int64) (bool, error) {
	var exists bool
	err := executor.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM stock_categories WHERE id = $1)`, id)
	if err != nil {
		return false, mapError(err, "checking stock category")
	}
	return exists, nil
}

func (r *stockRepository) ListItems(ctx context.Context, executor SQLExecutor, filter models.StockItemFilter) ([]models.StockItem, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(stockItemSelect)

	var conditions []string
	var args []interface{}
	argCount := 1

	if filter.CategoryID != nil {
		conditions = append(conditions, fmt.Sprintf("si.category_id = $%d", argCount))
		args = append(args, *filter.CategoryID)
		argCount++
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("si.active = $%d", argCount))
		args = append(args, *filter.Active)
		argCount++
	}
	if filter.LowStock {
		conditions = append(conditions, "si.current_quantity <= si.minimum_quantity")
	}

	if len(conditions) > 0 {
		queryBuilder.WriteString(" WHERE ")
		queryBuilder.WriteString(strings.Join(conditions, " AND "))
	}
	queryBuilder.WriteString(" ORDER BY si.name, si.id")

	items := []models.StockItem{}
	if err := executor.SelectContext(ctx, &items, queryBuilder.String(), args...); err != nil {
		return nil, mapError(err, "listing stock items")
	}
	for i := range items {
		items[i].WithStatus()
	}
	return items, nil
}

func (r *stockRepository) GetItem(ctx context.Context, executor SQLExecutor, id int64) (*models.StockItem, error) {
	var item models.StockItem
	if err := executor.GetContext(ctx, &item, stockItemSelect+` WHERE si.id = $1`, id); err != nil {
		return nil, mapError(err, "getting stock item")
	}
	return item.WithStatus(), nil
}

func (r *stockRepository) LockItem(ctx context.Context, executor SQLExecutor, id int64) (*models.StockItem, error) {
	var item models.StockItem
	if err := executor.GetContext(ctx, &item, stockItemSelect+` WHERE si.id = $1 FOR UPDATE OF si`, id); err != nil {
		return nil, mapError(err, "locking stock item")
	}
	return item.WithStatus(), nil
}

func (r *stockRepository) CreateItem(ctx context.Context, executor SQLExecutor, item *models.StockItem) error {
	query := `INSERT INTO stock_items
	          (name, category_id, unit, sku, supplier, minimum_quantity, maximum_quantity, current_quantity, unit_cost, notes, active)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	          RETURNING id, created_at, updated_at`
	err := executor.QueryRowxContext(ctx, query,
		item.Name, item.CategoryID, item.Unit, item.SKU, item.Supplier, item.MinimumQuantity,
		item.MaximumQuantity, item.CurrentQuantity, item.UnitCost, item.Notes, item.Active,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return mapError(err, "creating stock item")
	}
	item.WithStatus()
	return nil
}

// UpdateItem merges patch into the stored row with COALESCE.
func (r *stockRepository) UpdateItem(ctx context.Context, executor SQLExecutor, id int64, patch models.StockItemPatch) (*models.StockItem, error) {
	var unitCost interface{}
	if patch.UnitCost != nil {
		unitCost = *patch.UnitCost
	}
	query := `UPDATE stock_items SET
	              name = COALESCE($2, name),
	              category_id = COALESCE($3, category_id),
	              unit = COALESCE($4, unit),
	              sku = COALESCE($5, sku),
	              supplier = COALESCE($6, supplier),
	              minimum_quantity = COALESCE($7, minimum_quantity),
	              maximum_quantity = COALESCE($8, maximum_quantity),
	              unit_cost = COALESCE($9, unit_cost),
	              notes = COALESCE($10, notes),
	              active = COALESCE($11, active),
	              updated_at = NOW()
	          WHERE id = $1`
	res, err := executor.ExecContext(ctx, query, id,
		patch.Name, patch.CategoryID, patch.Unit, patch.SKU, patch.Supplier,
		patch.MinimumQuantity, patch.MaximumQuantity, unitCost, patch.Notes, patch.Active)
	if err != nil {
		return nil, mapError(err, "updating stock item")
	}
	if err := requireAffected(res, "updating stock item"); err != nil {
		return nil, fmt.Errorf("%w: stock item %d", ErrNotFound, id)
	}
	return r.GetItem(ctx, executor, id)
}

func (r *stockRepository) DeleteItem(ctx context.Context, executor SQLExecutor, id int64) error {
	res, err := executor.ExecContext(ctx, `DELETE FROM stock_items WHERE id = $1`, id)
	if err != nil {
		return mapError(err, "deleting stock item")
	}
	if err := requireAffected(res, "deleting stock item"); err != nil {
		return fmt.Errorf("%w: stock item %d", ErrNotFound, id)
	}
	return nil
}

func (r *stockRepository) HasHistory(ctx context.Context, executor SQLExecutor, id int64) (bool, error) {
	var used bool
	err := executor.GetContext(ctx, &used,
		`SELECT EXISTS (SELECT 1 FROM stock_batches WHERE stock_item_id = $1)
		     OR EXISTS (SELECT 1 FROM stock_transactions WHERE stock_item_id = $1)
		     OR EXISTS (SELECT 1 FROM delivery_items WHERE stock_item_id = $1)`, id)
	if err != nil {
		return false, mapError(err, "checking stock item history")
	}
	return used, nil
}

func (r *stockRepository) AddQuantity(ctx context.Context, executor SQLExecutor, id int64, delta float64) (float64, error) {
	var quantity float64
	err := executor.QueryRowxContext(ctx,
		`UPDATE stock_items
		 SET current_quantity = current_quantity + $2, updated_at = NOW()
		 WHERE id = $1 AND ROUND(current_quantity + $2, 3) >= 0
		 RETURNING current_quantity`, id, delta,
	).Scan(&quantity)
	if err != nil {
		mapped := mapError(err, "adjusting stock quantity")
		if isNotFound(mapped) {
			return 0, fmt.Errorf("%w: stock item %d would go below zero or does not exist", ErrConditionFailed, id)
		}
		return 0, mapped
	}
	return quantity, nil
}
