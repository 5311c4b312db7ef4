package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"venue_ops_backend/internal/metrics"
	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/realtime"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// --- Stock DTOs ---

type CreateCategoryRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type CreateStockItemRequest struct {
	Name            string          `json:"name" binding:"required"`
	CategoryID      int64           `json:"category_id" binding:"required,gt=0"`
	Unit            string          `json:"unit" binding:"required"`
	SKU             *string         `json:"sku"`
	Supplier        *string         `json:"supplier"`
	MinimumQuantity float64         `json:"minimum_quantity" binding:"gte=0"`
	MaximumQuantity float64         `json:"maximum_quantity" binding:"gte=0"`
	UnitCost        decimal.Decimal `json:"unit_cost"`
	Notes           *string         `json:"notes"`
	Active          *bool           `json:"active"`
}

type UpdateStockItemRequest struct {
	Name            *string          `json:"name"`
	CategoryID      *int64           `json:"category_id" binding:"omitempty,gt=0"`
	Unit            *string          `json:"unit"`
	SKU             *string          `json:"sku"`
	Supplier        *string          `json:"supplier"`
	MinimumQuantity *float64         `json:"minimum_quantity" binding:"omitempty,gte=0"`
	MaximumQuantity *float64         `json:"maximum_quantity" binding:"omitempty,gte=0"`
	UnitCost        *decimal.Decimal `json:"unit_cost"`
	Notes           *string          `json:"notes"`
	Active          *bool            `json:"active"`
}

// AdjustStockRequest changes an item's quantity by a signed delta.
type AdjustStockRequest struct {
	Quantity        float64 `json:"quantity"`
	Reason          string  `json:"reason"`
	TransactionType string  `json:"transaction_type"`
}

// ConsumeStockRequest draws quantity from an item's batches in FEFO order.
type ConsumeStockRequest struct {
	Quantity float64 `json:"quantity" binding:"required,gt=0"`
	Notes    *string `json:"notes"`
}

// ConsumptionResult reports what a consumption drew from each batch.
type ConsumptionResult struct {
	Item         *models.StockItem         `json:"item"`
	Transactions []models.StockTransaction `json:"transactions"`
}

// StockService manages the stock catalog and direct quantity changes.
type StockService interface {
	ListCategories(ctx context.Context) ([]models.StockCategory, error)
	CreateCategory(ctx context.Context, actor models.Principal, req CreateCategoryRequest) (*models.StockCategory, error)

	ListItems(ctx context.Context, filter models.StockItemFilter) ([]models.StockItem, error)
	GetItem(ctx context.Context, id int64) (*models.StockItem, error)
	CreateItem(ctx context.Context, actor models.Principal, req CreateStockItemRequest) (*models.StockItem, error)
	UpdateItem(ctx context.Context, actor models.Principal, id int64, req UpdateStockItemRequest) (*models.StockItem, error)
	DeleteItem(ctx context.Context, actor models.Principal, id int64) error

	AdjustQuantity(ctx context.Context, actor models.Principal, id int64, req AdjustStockRequest) (*models.StockItem, error)
	Consume(ctx context.Context, actor models.Principal, id int64, req ConsumeStockRequest) (*ConsumptionResult, error)
	ListTransactions(ctx context.Context, itemID int64, limit int) ([]models.StockTransaction, error)
}

type stockService struct {
	stockRepo repositories.StockRepository
	batchRepo repositories.BatchRepository
	txnRepo   repositories.TransactionRepository
	tx        repositories.Transactor
	alerts    AlertService
	audit     auditor
	pub       publisher
	metrics   *metrics.Metrics
}

// StockDeps bundles the collaborators of the stock services.
type StockDeps struct {
	Stock        repositories.StockRepository
	Batches      repositories.BatchRepository
	Transactions repositories.TransactionRepository
	Deliveries   repositories.DeliveryRepository
	Alerts       repositories.AlertRepository
	Audit        repositories.AuditRepository
	Tx           repositories.Transactor
	Broadcaster  realtime.Broadcaster
	Metrics      *metrics.Metrics
	Clock        Clock
}

func (d StockDeps) clock() Clock {
	if d.Clock != nil {
		return d.Clock
	}
	return time.Now
}

// NewStockService creates a new instance of StockService. alerts may be nil.
func NewStockService(deps StockDeps, alerts AlertService) StockService {
	return &stockService{
		stockRepo: deps.Stock,
		batchRepo: deps.Batches,
		txnRepo:   deps.Transactions,
		tx:        deps.Tx,
		alerts:    alerts,
		audit:     auditor{repo: deps.Audit},
		pub:       publisher{broadcaster: deps.Broadcaster, metrics: deps.Metrics},
		metrics:   deps.Metrics,
	}
}

func (s *stockService) ListCategories(ctx context.Context) ([]models.StockCategory, error) {
	categories, err := s.stockRepo.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *stockService) CreateCategory(ctx context.Context, actor models.Principal, req CreateCategoryRequest) (*models.StockCategory, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	category := &models.StockCategory{Name: strings.TrimSpace(req.Name), Description: trimmedPtr(req.Description)}
	if category.Name == "" {
		return nil, validationError("category name is required")
	}
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.stockRepo.CreateCategory(ctx, exec, category); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return fmt.Errorf("%w: %s", ErrCategoryExists, category.Name)
			}
			return fmt.Errorf("failed to create category: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "create_stock_category", "stock_category", category.ID, category.Name)
	})
	if err != nil {
		return nil, err
	}
	return category, nil
}

func (s *stockService) ListItems(ctx context.Context, filter models.StockItemFilter) ([]models.StockItem, error) {
	items, err := s.stockRepo.ListItems(ctx, s.tx.Executor(), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock items: %w", err)
	}
	return items, nil
}

func (s *stockService) GetItem(ctx context.Context, id int64) (*models.StockItem, error) {
	item, err := s.stockRepo.GetItem(ctx, s.tx.Executor(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrStockItemNotFound, id)
		}
		return nil, fmt.Errorf("failed to get stock item: %w", err)
	}
	return item, nil
}

func (s *stockService) CreateItem(ctx context.Context, actor models.Principal, req CreateStockItemRequest) (*models.StockItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Unit) == "" {
		return nil, validationError("name and unit are required")
	}
	if req.UnitCost.IsNegative() {
		return nil, validationError("unit_cost cannot be negative")
	}
	if req.MaximumQuantity > 0 && req.MaximumQuantity < req.MinimumQuantity {
		return nil, validationError("maximum_quantity cannot be below minimum_quantity")
	}

	item := &models.StockItem{
		Name:            strings.TrimSpace(req.Name),
		CategoryID:      req.CategoryID,
		Unit:            strings.TrimSpace(req.Unit),
		SKU:             trimmedPtr(req.SKU),
		Supplier:        trimmedPtr(req.Supplier),
		MinimumQuantity: req.MinimumQuantity,
		MaximumQuantity: req.MaximumQuantity,
		UnitCost:        req.UnitCost,
		Notes:           trimmedPtr(req.Notes),
		Active:          true,
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.ensureCategory(ctx, exec, item.CategoryID); err != nil {
			return err
		}
		if err := s.stockRepo.CreateItem(ctx, exec, item); err != nil {
			return fmt.Errorf("failed to create stock item: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "create_stock_item", "stock_item", item.ID, "Created stock item: "+item.Name)
	})
	if err != nil {
		return nil, err
	}
	return s.GetItem(ctx, item.ID)
}

func (s *stockService) ensureCategory(ctx context.Context, exec repositories.SQLExecutor, id int64) error {
	ok, err := s.stockRepo.CategoryExists(ctx, exec, id)
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: id %d", ErrCategoryNotFound, id)
	}
	return nil
}

func (s *stockService) UpdateItem(ctx context.Context, actor models.Principal, id int64, req UpdateStockItemRequest) (*models.StockItem, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return nil, validationError("name cannot be empty")
	}
	if req.Unit != nil && strings.TrimSpace(*req.Unit) == "" {
		return nil, validationError("unit cannot be empty")
	}
	if req.UnitCost != nil && req.UnitCost.IsNegative() {
		return nil, validationError("unit_cost cannot be negative")
	}

	patch := models.StockItemPatch{
		Name:            req.Name,
		CategoryID:      req.CategoryID,
		Unit:            req.Unit,
		SKU:             req.SKU,
		Supplier:        req.Supplier,
		MinimumQuantity: req.MinimumQuantity,
		MaximumQuantity: req.MaximumQuantity,
		UnitCost:        req.UnitCost,
		Notes:           req.Notes,
		Active:          req.Active,
	}

	var item *models.StockItem
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if patch.CategoryID != nil {
			if err := s.ensureCategory(ctx, exec, *patch.CategoryID); err != nil {
				return err
			}
		}
		var err error
		item, err = s.stockRepo.UpdateItem(ctx, exec, id, patch)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrStockItemNotFound, id)
			}
			return fmt.Errorf("failed to update stock item: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "update_stock_item", "stock_item", id, "Updated stock item: "+item.Name)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DeleteItem hard-deletes an item that has never been stocked or moved.
func (s *stockService) DeleteItem(ctx context.Context, actor models.Principal, id int64) error {
	return s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		item, err := s.stockRepo.LockItem(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrStockItemNotFound, id)
			}
			return fmt.Errorf("failed to load stock item: %w", err)
		}
		used, err := s.stockRepo.HasHistory(ctx, exec, id)
		if err != nil {
			return fmt.Errorf("failed to check stock item history: %w", err)
		}
		if used {
			return fmt.Errorf("%w: %s", ErrStockItemInUse, item.Name)
		}
		if err := s.stockRepo.DeleteItem(ctx, exec, id); err != nil {
			if errors.Is(err, repositories.ErrForeignKey) {
				return fmt.Errorf("%w: %s", ErrStockItemInUse, item.Name)
			}
			return fmt.Errorf("failed to delete stock item: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "delete_stock_item", "stock_item", id, "Deleted stock item: "+item.Name)
	})
}

var adjustmentTypes = map[string]bool{
	models.TxnAdjustment: true,
	models.TxnWaste:      true,
	models.TxnReturn:     true,
}

// AdjustQuantity applies a signed delta with a matching ledger row.
func (s *stockService) AdjustQuantity(ctx context.Context, actor models.Principal, id int64, req AdjustStockRequest) (*models.StockItem, error) {
	reason := strings.TrimSpace(req.Reason)
	if req.Quantity == 0 {
		return nil, validationError("quantity must be non-zero")
	}
	if reason == "" {
		return nil, validationError("reason is required")
	}
	txnType := req.TransactionType
	if txnType == "" {
		txnType = models.TxnAdjustment
	}
	if !adjustmentTypes[txnType] {
		return nil, validationError("transaction_type must be adjustment, waste or return")
	}
	if txnType == models.TxnWaste && req.Quantity > 0 {
		return nil, validationError("waste must be a negative quantity")
	}

	var item *models.StockItem
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		current, err := s.stockRepo.LockItem(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrStockItemNotFound, id)
			}
			return fmt.Errorf("failed to load stock item: %w", err)
		}
		if current.CurrentQuantity+req.Quantity < 0 {
			return fmt.Errorf("%w: %s has %s %s", ErrInsufficientStock, current.Name,
				utils.FormatQuantity(current.CurrentQuantity), current.Unit)
		}
		if _, err := s.stockRepo.AddQuantity(ctx, exec, id, req.Quantity); err != nil {
			if errors.Is(err, repositories.ErrConditionFailed) {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, current.Name)
			}
			return fmt.Errorf("failed to adjust stock: %w", err)
		}
		performer := actor.UserID
		txn := &models.StockTransaction{
			StockItemID:     id,
			TransactionType: txnType,
			Quantity:        req.Quantity,
			ReferenceType:   strPtr(models.RefManual),
			Notes:           &reason,
			PerformedBy:     &performer,
		}
		if err := s.txnRepo.CreateTransaction(ctx, exec, txn); err != nil {
			return fmt.Errorf("failed to record stock transaction: %w", err)
		}
		if err := s.audit.record(ctx, exec, actor, "adjust_stock", "stock_item", id,
			fmt.Sprintf("Stock adjustment: %s - %s", utils.FormatQuantity(req.Quantity), reason)); err != nil {
			return err
		}
		item, err = s.stockRepo.GetItem(ctx, exec, id)
		if err != nil {
			return fmt.Errorf("failed to reload stock item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StockMovement(txnType)
	s.afterQuantityChange(ctx, item)
	return item, nil
}

// Consume draws req.Quantity from active batches in FEFO order. Nothing is
// applied when the batches cannot cover the full amount.
func (s *stockService) Consume(ctx context.Context, actor models.Principal, id int64, req ConsumeStockRequest) (*ConsumptionResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	result := &ConsumptionResult{}
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		current, err := s.stockRepo.LockItem(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrStockItemNotFound, id)
			}
			return fmt.Errorf("failed to load stock item: %w", err)
		}
		batches, err := s.batchRepo.ListActiveBatches(ctx, exec, id)
		if err != nil {
			return fmt.Errorf("failed to load batches: %w", err)
		}
		plan, err := planFEFO(batches, req.Quantity)
		if err != nil {
			return fmt.Errorf("%w: %s", err, current.Name)
		}

		performer := actor.UserID
		for _, draw := range plan {
			if _, err := s.batchRepo.AdjustRemaining(ctx, exec, draw.batchID, -draw.quantity); err != nil {
				if errors.Is(err, repositories.ErrConditionFailed) {
					return fmt.Errorf("%w: batch %d", ErrInsufficientStock, draw.batchID)
				}
				return fmt.Errorf("failed to draw from batch: %w", err)
			}
			batchID := draw.batchID
			txn := models.StockTransaction{
				StockItemID:     id,
				BatchID:         &batchID,
				TransactionType: models.TxnConsumption,
				Quantity:        -draw.quantity,
				ReferenceType:   strPtr(models.RefBatch),
				ReferenceID:     &batchID,
				Notes:           trimmedPtr(req.Notes),
				PerformedBy:     &performer,
			}
			if err := s.txnRepo.CreateTransaction(ctx, exec, &txn); err != nil {
				return fmt.Errorf("failed to record consumption: %w", err)
			}
			result.Transactions = append(result.Transactions, txn)
		}
		if _, err := s.stockRepo.AddQuantity(ctx, exec, id, -req.Quantity); err != nil {
			if errors.Is(err, repositories.ErrConditionFailed) {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, current.Name)
			}
			return fmt.Errorf("failed to update stock quantity: %w", err)
		}
		if err := s.audit.record(ctx, exec, actor, "consume_stock", "stock_item", id,
			fmt.Sprintf("Consumed %s %s across %d batch(es)", utils.FormatQuantity(req.Quantity), current.Unit, len(plan))); err != nil {
			return err
		}
		result.Item, err = s.stockRepo.GetItem(ctx, exec, id)
		if err != nil {
			return fmt.Errorf("failed to reload stock item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for range result.Transactions {
		s.metrics.StockMovement(models.TxnConsumption)
	}
	s.afterQuantityChange(ctx, result.Item)
	return result, nil
}

type batchDraw struct {
	batchID  int64
	quantity float64
}

// planFEFO splits quantity across batches, which must already be in FEFO order.
func planFEFO(batches []models.StockBatch, quantity float64) ([]batchDraw, error) {
	var plan []batchDraw
	remaining := utils.RoundQuantity(quantity)
	for _, b := range batches {
		if remaining <= 0 {
			break
		}
		if b.RemainingQuantity <= 0 {
			continue
		}
		take := b.RemainingQuantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, batchDraw{batchID: b.ID, quantity: take})
		remaining = utils.RoundQuantity(remaining - take)
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%w: batches are %s short", ErrInsufficientStock, utils.FormatQuantity(remaining))
	}
	return plan, nil
}

func (s *stockService) ListTransactions(ctx context.Context, itemID int64, limit int) ([]models.StockTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	txns, err := s.txnRepo.ListByItem(ctx, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock transactions: %w", err)
	}
	return txns, nil
}

// afterQuantityChange runs the alert engine and notifies subscribers. Errors are logged only.
func (s *stockService) afterQuantityChange(ctx context.Context, item *models.StockItem) {
	s.pub.publish(ctx, models.EventStockAdjusted, 0, item)
	if s.alerts == nil {
		return
	}
	if _, err := s.alerts.Recheck(ctx); err != nil {
		utils.LoggerFromContext(ctx).Error().Err(err).Int64("stock_item_id", item.ID).Msg("Alert recheck after stock change failed")
	}
}
