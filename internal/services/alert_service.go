package services

import (
	"context"
	"errors"
	"fmt"

	"venue_ops_backend/internal/metrics"
	"venue_ops_backend/internal/models"
	"venue_ops_backend/internal/repositories"
	"venue_ops_backend/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// AlertSettings are the alert engine knobs.
type AlertSettings struct {
	ExpiringWithinDays int
	LowStockSeverity   string
	OutOfStockSeverity string
	ExpiringSeverity   string
}

// DefaultAlertSettings returns a 7 day expiry window with medium/high/medium severities.
func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		ExpiringWithinDays: 7,
		LowStockSeverity:   models.SeverityMedium,
		OutOfStockSeverity: models.SeverityHigh,
		ExpiringSeverity:   models.SeverityMedium,
	}
}

func (a AlertSettings) normalized() AlertSettings {
	def := DefaultAlertSettings()
	if a.ExpiringWithinDays < 0 {
		a.ExpiringWithinDays = def.ExpiringWithinDays
	}
	if !models.IsValidSeverity(a.LowStockSeverity) {
		a.LowStockSeverity = def.LowStockSeverity
	}
	if !models.IsValidSeverity(a.OutOfStockSeverity) {
		a.OutOfStockSeverity = def.OutOfStockSeverity
	}
	if !models.IsValidSeverity(a.ExpiringSeverity) {
		a.ExpiringSeverity = def.ExpiringSeverity
	}
	return a
}

// AlertService derives and manages stock alerts.
type AlertService interface {
	// Recheck raises low stock, out of stock and expiring alerts that are not
	// already open, and returns the alerts it created.
	Recheck(ctx context.Context) ([]models.StockAlert, error)
	ListAlerts(ctx context.Context, acknowledged *bool) ([]models.StockAlert, error)
	Acknowledge(ctx context.Context, actor models.Principal, id int64) (*models.StockAlert, error)
}

type alertService struct {
	stockRepo repositories.StockRepository
	batchRepo repositories.BatchRepository
	alertRepo repositories.AlertRepository
	tx        repositories.Transactor
	audit     auditor
	pub       publisher
	metrics   *metrics.Metrics
	now       Clock
	settings  AlertSettings
}

// NewAlertService creates a new instance of AlertService.
func NewAlertService(deps StockDeps, settings AlertSettings) AlertService {
	return &alertService{
		stockRepo: deps.Stock,
		batchRepo: deps.Batches,
		alertRepo: deps.Alerts,
		tx:        deps.Tx,
		audit:     auditor{repo: deps.Audit},
		pub:       publisher{broadcaster: deps.Broadcaster, metrics: deps.Metrics},
		metrics:   deps.Metrics,
		now:       deps.clock(),
		settings:  settings.normalized(),
	}
}

var tracer = otel.Tracer("venue_ops_backend/internal/services")

func lowStockMessage(item models.StockItem) string {
	return fmt.Sprintf("%s is running low (%s %s remaining)", item.Name, utils.FormatQuantity(item.CurrentQuantity), item.Unit)
}

func outOfStockMessage(item models.StockItem) string {
	return fmt.Sprintf("%s is out of stock", item.Name)
}

func expiringMessage(batch models.ExpiringBatch) string {
	return fmt.Sprintf("%s batch expires on %s", batch.ItemName, batch.ExpiryDate.Format(dateLayout))
}

func (s *alertService) Recheck(ctx context.Context) ([]models.StockAlert, error) {
	ctx, span := tracer.Start(ctx, "AlertService.Recheck")
	defer span.End()

	from, to, err := expiryWindow(s.now(), s.settings.ExpiringWithinDays)
	if err != nil {
		return nil, err
	}

	var created []models.StockAlert
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		created = created[:0]
		active := true
		items, err := s.stockRepo.ListItems(ctx, exec, models.StockItemFilter{Active: &active})
		if err != nil {
			return fmt.Errorf("failed to load items for alert check: %w", err)
		}

		for _, item := range items {
			var alertType, severity, message string
			switch models.StockStatusOf(item.CurrentQuantity, item.MinimumQuantity) {
			case models.StockStatusOut:
				alertType, severity, message = models.AlertOutOfStock, s.settings.OutOfStockSeverity, outOfStockMessage(item)
			case models.StockStatusLow:
				alertType, severity, message = models.AlertLowStock, s.settings.LowStockSeverity, lowStockMessage(item)
			default:
				continue
			}
			alert := models.StockAlert{
				AlertType:   alertType,
				StockItemID: item.ID,
				Message:     message,
				Severity:    severity,
			}
			name := item.Name
			alert.ItemName = &name
			ok, err := s.raise(ctx, exec, &alert)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, alert)
			}
		}

		batches, err := s.batchRepo.ListExpiring(ctx, exec, from, to)
		if err != nil {
			return fmt.Errorf("failed to load expiring batches: %w", err)
		}
		for _, batch := range batches {
			batchID := batch.ID
			name := batch.ItemName
			alert := models.StockAlert{
				AlertType:   models.AlertExpiringSoon,
				StockItemID: batch.StockItemID,
				ItemName:    &name,
				BatchID:     &batchID,
				Message:     expiringMessage(batch),
				Severity:    s.settings.ExpiringSeverity,
			}
			ok, err := s.raise(ctx, exec, &alert)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, alert)
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "alert recheck failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("alerts.created", len(created)))
	for _, alert := range created {
		s.metrics.AlertCreated(alert.AlertType)
		s.pub.publish(ctx, models.EventStockAlert, 0, alert)
	}
	if len(created) > 0 {
		utils.LoggerFromContext(ctx).Info().Int("count", len(created)).Msg("Stock alerts raised")
	}
	return created, nil
}

// raise inserts alert unless an open one of the same kind exists.
func (s *alertService) raise(ctx context.Context, exec repositories.SQLExecutor, alert *models.StockAlert) (bool, error) {
	open, err := s.alertRepo.HasOpenAlert(ctx, exec, alert.AlertType, alert.StockItemID, alert.BatchID)
	if err != nil {
		return false, fmt.Errorf("failed to check open alerts: %w", err)
	}
	if open {
		return false, nil
	}
	ok, err := s.alertRepo.CreateAlert(ctx, exec, alert)
	if err != nil {
		return false, fmt.Errorf("failed to create %s alert: %w", alert.AlertType, err)
	}
	return ok, nil
}

func (s *alertService) ListAlerts(ctx context.Context, acknowledged *bool) ([]models.StockAlert, error) {
	alerts, err := s.alertRepo.ListAlerts(ctx, acknowledged)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// Acknowledge is idempotent: an already acknowledged alert is returned unchanged.
func (s *alertService) Acknowledge(ctx context.Context, actor models.Principal, id int64) (*models.StockAlert, error) {
	var alert *models.StockAlert
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		alert, err = s.alertRepo.GetAlert(ctx, exec, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrAlertNotFound, id)
			}
			return fmt.Errorf("failed to load alert: %w", err)
		}
		if alert.Acknowledged {
			return nil
		}
		now := s.now()
		if err := s.alertRepo.AcknowledgeAlert(ctx, exec, id, actor.UserID, now); err != nil {
			if !errors.Is(err, repositories.ErrConditionFailed) {
				return fmt.Errorf("failed to acknowledge alert: %w", err)
			}
		}
		alert, err = s.alertRepo.GetAlert(ctx, exec, id)
		if err != nil {
			return fmt.Errorf("failed to reload alert: %w", err)
		}
		return s.audit.record(ctx, exec, actor, "acknowledge_alert", "stock_alert", id, alert.Message)
	})
	if err != nil {
		return nil, err
	}
	return alert, nil
}
