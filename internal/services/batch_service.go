package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"venue_ops_backend/internal/metrics"
	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"
)

// AdjustBatchRequest moves stock out of (negative) or back into (positive) a batch.
type AdjustBatchRequest struct {
	Quantity float64 `json:"quantity"`
	Notes    *string `json:"notes"`
}

// BatchService exposes the batch ledger.
type BatchService interface {
	ListActiveBatches(ctx context.Context, itemID int64) ([]models.StockBatch, error)
	// ListExpiring returns batches expiring between today and today+withinDays
	// inclusive. A nil window uses the configured listing default.
	ListExpiring(ctx context.Context, withinDays *int) ([]models.ExpiringBatch, error)
	AdjustRemaining(ctx context.Context, actor models.Principal, batchID int64, req AdjustBatchRequest) (*models.StockBatch, error)
}

type batchService struct {
	stockRepo     repositories.StockRepository
	batchRepo     repositories.BatchRepository
	txnRepo       repositories.TransactionRepository
	tx            repositories.Transactor
	alerts        AlertService
	audit         auditor
	metrics       *metrics.Metrics
	now           Clock
	defaultWindow int
}

// NewBatchService creates a new instance of BatchService.
func NewBatchService(deps StockDeps, alerts AlertService, defaultWindowDays int) BatchService {
	if defaultWindowDays <= 0 {
		defaultWindowDays = 30
	}
	return &batchService{
		stockRepo:     deps.Stock,
		batchRepo:     deps.Batches,
		txnRepo:       deps.Transactions,
		tx:            deps.Tx,
		alerts:        alerts,
		audit:         auditor{repo: deps.Audit},
		metrics:       deps.Metrics,
		now:           deps.clock(),
		defaultWindow: defaultWindowDays,
	}
}

func (s *batchService) ListActiveBatches(ctx context.Context, itemID int64) ([]models.StockBatch, error) {
	exec := s.tx.Executor()
	if _, err := s.stockRepo.GetItem(ctx, exec, itemID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrStockItemNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to get stock item: %w", err)
	}
	batches, err := s.batchRepo.ListActiveBatches(ctx, exec, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}

func (s *batchService) ListExpiring(ctx context.Context, withinDays *int) ([]models.ExpiringBatch, error) {
	days := s.defaultWindow
	if withinDays != nil {
		days = *withinDays
	}
	from, to, err := expiryWindow(s.now(), days)
	if err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.ListExpiring(ctx, s.tx.Executor(), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring batches: %w", err)
	}
	return batches, nil
}

// expiryWindow returns [today, today+days]. Negative windows are rejected.
func expiryWindow(now time.Time, days int) (time.Time, time.Time, error) {
	if days < 0 {
		return time.Time{}, time.Time{}, validationError("days must not be negative")
	}
	from := day(now)
	return from, from.AddDate(0, 0, days), nil
}

func (s *batchService) AdjustRemaining(ctx context.Context, actor models.Principal, batchID int64, req AdjustBatchRequest) (*models.StockBatch, error) {
	if req.Quantity == 0 {
		return nil, validationError("quantity must be non-zero")
	}
	txnType := models.TxnConsumption
	if req.Quantity > 0 {
		txnType = models.TxnReturn
	}

	var batch *models.StockBatch
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		existing, err := s.batchRepo.GetBatch(ctx, exec, batchID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrBatchNotFound, batchID)
			}
			return fmt.Errorf("failed to load batch: %w", err)
		}
		item, err := s.stockRepo.LockItem(ctx, exec, existing.StockItemID)
		if err != nil {
			return fmt.Errorf("failed to lock stock item: %w", err)
		}

		batch, err = s.batchRepo.AdjustRemaining(ctx, exec, batchID, req.Quantity)
		if err != nil {
			if errors.Is(err, repositories.ErrConditionFailed) {
				return fmt.Errorf("%w: batch %d has %s remaining", ErrInsufficientStock, batchID,
					utils.FormatQuantity(existing.RemainingQuantity))
			}
			return fmt.Errorf("failed to adjust batch: %w", err)
		}
		if _, err := s.stockRepo.AddQuantity(ctx, exec, item.ID, req.Quantity); err != nil {
			if errors.Is(err, repositories.ErrConditionFailed) {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, item.Name)
			}
			return fmt.Errorf("failed to update stock quantity: %w", err)
		}

		performer := actor.UserID
		notes := trimmedPtr(req.Notes)
		txn := &models.StockTransaction{
			StockItemID:     item.ID,
			BatchID:         &batchID,
			TransactionType: txnType,
			Quantity:        req.Quantity,
			ReferenceType:   strPtr(models.RefBatch),
			ReferenceID:     &batchID,
			Notes:           notes,
			PerformedBy:     &performer,
		}
		if err := s.txnRepo.CreateTransaction(ctx, exec, txn); err != nil {
			return fmt.Errorf("failed to record batch transaction: %w", err)
		}
		detail := fmt.Sprintf("Batch %d %s: %s", batchID, txnType, utils.FormatQuantity(req.Quantity))
		if notes != nil {
			detail += " - " + strings.TrimSpace(*notes)
		}
		return s.audit.record(ctx, exec, actor, "adjust_batch", "stock_batch", batchID, detail)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.StockMovement(txnType)
	if s.alerts != nil {
		if _, err := s.alerts.Recheck(ctx); err != nil {
			utils.LoggerFromContext(ctx).Error().Err(err).Int64("batch_id", batchID).Msg("Alert recheck after batch adjustment failed")
		}
	}
	return batch, nil
}
