package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"venue_ops_backend/internal/metrics"
	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// --- Delivery DTOs ---

type DeliveryLineRequest struct {
	StockItemID int64            `json:"stock_item_id" binding:"required,gt=0"`
	Quantity    float64          `json:"quantity" binding:"required,gt=0"`
	UnitCost    *decimal.Decimal `json:"unit_cost"`
	ExpiryDate  *string          `json:"expiry_date"`
	BatchNumber *string          `json:"batch_number"`
	Notes       *string          `json:"notes"`
}

type CreateDeliveryRequest struct {
	DeliveryDate  string                `json:"delivery_date" binding:"required"`
	Supplier      string                `json:"supplier" binding:"required"`
	InvoiceNumber *string               `json:"invoice_number"`
	InvoiceAmount *decimal.Decimal      `json:"invoice_amount"`
	Notes         *string               `json:"notes"`
	Items         []DeliveryLineRequest `json:"items" binding:"required,min=1,dive"`
}

// ReceivedLine reports what actually arrived for one delivery line.
type ReceivedLine struct {
	ID              int64   `json:"id" binding:"required,gt=0"`
	Quantity        float64 `json:"quantity" binding:"gte=0"`
	DamagedQuantity float64 `json:"damaged_quantity" binding:"gte=0"`
}

// AcceptDeliveryRequest lists received quantities per line. Lines not listed were not received.
type AcceptDeliveryRequest struct {
	Items []ReceivedLine `json:"items" binding:"dive"`
}

type RejectDeliveryRequest struct {
	Reason string `json:"reason"`
}

// DeliveryService runs the delivery intake workflow.
type DeliveryService interface {
	ListDeliveries(ctx context.Context, filter models.DeliveryFilter) ([]models.StockDelivery, error)
	GetDelivery(ctx context.Context, id int64) (*models.StockDelivery, error)
	CreateDelivery(ctx context.Context, actor models.Principal, req CreateDeliveryRequest) (*models.StockDelivery, error)
	AcceptDelivery(ctx context.Context, actor models.Principal, id int64, req AcceptDeliveryRequest) (*models.StockDelivery, error)
	RejectDelivery(ctx context.Context, actor models.Principal, id int64, req RejectDeliveryRequest) (*models.StockDelivery, error)
}

type deliveryService struct {
	stockRepo    repositories.StockRepository
	batchRepo    repositories.BatchRepository
	txnRepo      repositories.TransactionRepository
	deliveryRepo repositories.DeliveryRepository
	tx           repositories.Transactor
	alerts       AlertService
	audit        auditor
	pub          publisher
	metrics      *metrics.Metrics
	now          Clock
}

// NewDeliveryService creates a new instance of DeliveryService. alerts may be nil.
func NewDeliveryService(deps StockDeps, alerts AlertService) DeliveryService {
	return &deliveryService{
		stockRepo:    deps.Stock,
		batchRepo:    deps.Batches,
		txnRepo:      deps.Transactions,
		deliveryRepo: deps.Deliveries,
		tx:           deps.Tx,
		alerts:       alerts,
		audit:        auditor{repo: deps.Audit},
		pub:          publisher{broadcaster: deps.Broadcaster, metrics: deps.Metrics},
		metrics:      deps.Metrics,
		now:          deps.clock(),
	}
}

func (s *deliveryService) ListDeliveries(ctx context.Context, filter models.DeliveryFilter) ([]models.StockDelivery, error) {
	if filter.Status != nil && *filter.Status != "" {
		switch *filter.Status {
		case models.DeliveryPending, models.DeliveryAccepted, models.DeliveryRejected:
		default:
			return nil, validationError("unknown delivery status %q", *filter.Status)
		}
	}
	deliveries, err := s.deliveryRepo.ListDeliveries(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}

func (s *deliveryService) GetDelivery(ctx context.Context, id int64) (*models.StockDelivery, error) {
	return s.loadDelivery(ctx, s.tx.Executor(), id)
}

func (s *deliveryService) loadDelivery(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.StockDelivery, error) {
	delivery, err := s.deliveryRepo.GetDelivery(ctx, exec, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrDeliveryNotFound, id)
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	delivery.Items, err = s.deliveryRepo.ListDeliveryItems(ctx, exec, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery items: %w", err)
	}
	return delivery, nil
}

func (s *deliveryService) CreateDelivery(ctx context.Context, actor models.Principal, req CreateDeliveryRequest) (*models.StockDelivery, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	supplier := strings.TrimSpace(req.Supplier)
	if supplier == "" {
		return nil, validationError("supplier is required")
	}
	deliveryDate, err := parseDate(req.DeliveryDate)
	if err != nil {
		return nil, err
	}

	creator := actor.UserID
	delivery := &models.StockDelivery{
		DeliveryDate:  deliveryDate,
		Supplier:      supplier,
		InvoiceNumber: trimmedPtr(req.InvoiceNumber),
		Notes:         trimmedPtr(req.Notes),
		Status:        models.DeliveryPending,
		CreatedBy:     &creator,
	}
	if req.InvoiceAmount != nil {
		delivery.InvoiceAmount = decimal.NullDecimal{Decimal: *req.InvoiceAmount, Valid: true}
	}

	lines := make([]models.DeliveryItem, 0, len(req.Items))
	for i, in := range req.Items {
		expiry, err := parseOptionalDate(in.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		line := models.DeliveryItem{
			StockItemID: in.StockItemID,
			Quantity:    in.Quantity,
			ExpiryDate:  expiry,
			BatchNumber: trimmedPtr(in.BatchNumber),
			Notes:       trimmedPtr(in.Notes),
		}
		if in.UnitCost != nil {
			if in.UnitCost.IsNegative() {
				return nil, validationError("items[%d]: unit_cost cannot be negative", i)
			}
			line.UnitCost = decimal.NullDecimal{Decimal: *in.UnitCost, Valid: true}
		}
		lines = append(lines, line)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for i, line := range lines {
			if _, err := s.stockRepo.GetItem(ctx, exec, line.StockItemID); err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return validationError("items[%d]: stock item %d does not exist", i, line.StockItemID)
				}
				return fmt.Errorf("failed to check stock item: %w", err)
			}
		}
		if err := s.deliveryRepo.CreateDelivery(ctx, exec, delivery); err != nil {
			return fmt.Errorf("failed to create delivery: %w", err)
		}
		for i := range lines {
			lines[i].DeliveryID = delivery.ID
			if err := s.deliveryRepo.CreateDeliveryItem(ctx, exec, &lines[i]); err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return validationError("items[%d]: stock item %d does not exist", i, lines[i].StockItemID)
				}
				return fmt.Errorf("failed to create delivery item: %w", err)
			}
		}
		return s.audit.record(ctx, exec, actor, "create_delivery", "stock_delivery", delivery.ID,
			fmt.Sprintf("Created delivery from %s", supplier))
	})
	if err != nil {
		return nil, err
	}
	return s.GetDelivery(ctx, delivery.ID)
}

// notPending explains why a guarded transition out of pending matched nothing.
func (s *deliveryService) notPending(ctx context.Context, exec repositories.SQLExecutor, id int64) error {
	delivery, err := s.deliveryRepo.GetDelivery(ctx, exec, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrDeliveryNotFound, id)
		}
		return fmt.Errorf("failed to get delivery: %w", err)
	}
	return fmt.Errorf("%w: delivery %d is %s", ErrDeliveryAlreadyProcessed, id, delivery.Status)
}

// AcceptDelivery receives the listed lines into stock. The pending guard runs
// first so a concurrent second acceptance fails with a conflict.
func (s *deliveryService) AcceptDelivery(ctx context.Context, actor models.Principal, id int64, req AcceptDeliveryRequest) (*models.StockDelivery, error) {
	ctx, span := tracer.Start(ctx, "DeliveryService.AcceptDelivery",
		trace.WithAttributes(attribute.Int64("delivery.id", id)))
	defer span.End()

	if err := validateRequest(req); err != nil {
		return nil, err
	}
	received := make(map[int64]ReceivedLine, len(req.Items))
	for _, in := range req.Items {
		if _, dup := received[in.ID]; dup {
			return nil, validationError("delivery item %d listed more than once", in.ID)
		}
		received[in.ID] = in
	}

	var supplier string
	batchesCreated := 0
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		now := s.now()
		if err := s.deliveryRepo.TransitionFromPending(ctx, exec, id, models.DeliveryAccepted, actor.UserID, now, nil); err != nil {
			if errors.Is(err, repositories.ErrConditionFailed) {
				return s.notPending(ctx, exec, id)
			}
			return fmt.Errorf("failed to accept delivery: %w", err)
		}
		delivery, err := s.deliveryRepo.GetDelivery(ctx, exec, id)
		if err != nil {
			return fmt.Errorf("failed to reload delivery: %w", err)
		}
		supplier = delivery.Supplier
		lines, err := s.deliveryRepo.ListDeliveryItems(ctx, exec, id)
		if err != nil {
			return fmt.Errorf("failed to load delivery items: %w", err)
		}

		known := make(map[int64]bool, len(lines))
		for _, line := range lines {
			known[line.ID] = true
		}
		for lineID := range received {
			if !known[lineID] {
				return fmt.Errorf("%w: %d", ErrUnknownDeliveryLine, lineID)
			}
		}

		performer := actor.UserID
		deliveryID := id
		for _, line := range lines {
			in, ok := received[line.ID]
			if !ok {
				continue
			}
			if err := s.deliveryRepo.RecordReceipt(ctx, exec, line.ID, in.Quantity, in.DamagedQuantity); err != nil {
				return fmt.Errorf("failed to record receipt: %w", err)
			}
			if in.Quantity <= 0 {
				continue
			}

			lineID := line.ID
			batch := &models.StockBatch{
				StockItemID:       line.StockItemID,
				DeliveryItemID:    &lineID,
				BatchNumber:       line.BatchNumber,
				Quantity:          in.Quantity,
				RemainingQuantity: in.Quantity,
				ExpiryDate:        line.ExpiryDate,
				ReceivedDate:      delivery.DeliveryDate,
				Status:            models.BatchStatusActive,
			}
			if err := s.batchRepo.CreateBatch(ctx, exec, batch); err != nil {
				return fmt.Errorf("failed to create batch: %w", err)
			}
			if _, err := s.stockRepo.AddQuantity(ctx, exec, line.StockItemID, in.Quantity); err != nil {
				return fmt.Errorf("failed to update stock quantity: %w", err)
			}
			batchID := batch.ID
			txn := &models.StockTransaction{
				StockItemID:     line.StockItemID,
				BatchID:         &batchID,
				TransactionType: models.TxnDelivery,
				Quantity:        in.Quantity,
				ReferenceType:   strPtr(models.RefDelivery),
				ReferenceID:     &deliveryID,
				Notes:           strPtr("Delivery accepted: " + delivery.Supplier),
				PerformedBy:     &performer,
				PerformedAt:     now,
			}
			if err := s.txnRepo.CreateTransaction(ctx, exec, txn); err != nil {
				return fmt.Errorf("failed to record delivery transaction: %w", err)
			}
			batchesCreated++
		}

		return s.audit.record(ctx, exec, actor, "accept_delivery", "stock_delivery", id,
			"Accepted delivery from "+delivery.Supplier)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "accept delivery failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("delivery.batches_created", batchesCreated))

	s.metrics.DeliveryProcessed(models.DeliveryAccepted)
	for i := 0; i < batchesCreated; i++ {
		s.metrics.StockMovement(models.TxnDelivery)
	}
	utils.LoggerFromContext(ctx).Info().Int64("delivery_id", id).Str("supplier", supplier).
		Int("batches", batchesCreated).Msg("Delivery accepted")

	if s.alerts != nil {
		if _, err := s.alerts.Recheck(ctx); err != nil {
			utils.LoggerFromContext(ctx).Error().Err(err).Int64("delivery_id", id).Msg("Alert recheck after delivery acceptance failed")
		}
	}

	delivery, err := s.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	s.pub.publish(ctx, models.EventDeliveryAccepted, 0, delivery)
	return delivery, nil
}

// rejectionNotes appends the reason to any existing notes.
func rejectionNotes(existing *string, reason string) string {
	if utils.IsEmpty(utils.DerefString(existing, "")) {
		return "Rejected: " + reason
	}
	return *existing + " | Rejected: " + reason
}

func (s *deliveryService) RejectDelivery(ctx context.Context, actor models.Principal, id int64, req RejectDeliveryRequest) (*models.StockDelivery, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, validationError("rejection reason is required")
	}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		delivery, err := s.deliveryRepo.GetDelivery(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrDeliveryNotFound, id)
			}
			return fmt.Errorf("failed to get delivery: %w", err)
		}
		if delivery.Status != models.DeliveryPending {
			return fmt.Errorf("%w: delivery %d is %s", ErrDeliveryAlreadyProcessed, id, delivery.Status)
		}
		notes := rejectionNotes(delivery.Notes, reason)
		if err := s.deliveryRepo.TransitionFromPending(ctx, exec, id, models.DeliveryRejected, actor.UserID, s.now(), &notes); err != nil {
			if errors.Is(err, repositories.ErrConditionFailed) {
				return s.notPending(ctx, exec, id)
			}
			return fmt.Errorf("failed to reject delivery: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "reject_delivery", "stock_delivery", id,
			fmt.Sprintf("Rejected delivery from %s: %s", delivery.Supplier, reason))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DeliveryProcessed(models.DeliveryRejected)
	delivery, err := s.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	s.pub.publish(ctx, models.EventDeliveryRejected, 0, delivery)
	return delivery, nil
}
