package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"venue_ops_backend/internal/models"
)

func TestRecheckRaisesEachConditionOnce(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()

	empty := mustItem(t, f, admin, "Mint", 2)
	low := mustItem(t, f, admin, "Lemons", 5)
	receive(t, f, admin, low.ID, 3, "")
	fresh := mustItem(t, f, admin, "Milk", 1)
	receive(t, f, admin, fresh.ID, 10, "2024-06-18")

	if _, err := f.alerts.Recheck(ctx); err != nil {
		t.Fatalf("Recheck: %v", err)
	}

	check := func(itemID int64, alertType, severity, message string) {
		t.Helper()
		var found []models.StockAlert
		for _, a := range f.alertsOf(itemID) {
			if a.AlertType == alertType {
				found = append(found, a)
			}
		}
		if len(found) != 1 {
			t.Fatalf("item %d %s alerts = %d, want 1", itemID, alertType, len(found))
		}
		if found[0].Severity != severity || found[0].Message != message {
			t.Errorf("alert = %s %q, want %s %q", found[0].Severity, found[0].Message, severity, message)
		}
	}
	check(empty.ID, models.AlertOutOfStock, models.SeverityHigh, "Mint is out of stock")
	check(low.ID, models.AlertLowStock, models.SeverityMedium, "Lemons is running low (3 bottle remaining)")
	check(fresh.ID, models.AlertExpiringSoon, models.SeverityMedium, "Milk batch expires on 2024-06-18")

	before := len(f.store.alerts)
	created, err := f.alerts.Recheck(ctx)
	if err != nil {
		t.Fatalf("second Recheck: %v", err)
	}
	if len(created) != 0 || len(f.store.alerts) != before {
		t.Fatalf("second Recheck created %d alerts (store %d -> %d)", len(created), before, len(f.store.alerts))
	}
}

func TestAcknowledgeReopensCondition(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Syrup", 2)

	created, err := f.alerts.Recheck(ctx)
	if err != nil || len(created) != 1 {
		t.Fatalf("Recheck = %d alerts, %v", len(created), err)
	}

	ack, err := f.alerts.Acknowledge(ctx, admin, created[0].ID)
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if !ack.Acknowledged || ack.AcknowledgedBy == nil || *ack.AcknowledgedBy != admin.UserID {
		t.Fatalf("acknowledged alert = %+v", ack)
	}
	again, err := f.alerts.Acknowledge(ctx, admin, created[0].ID)
	if err != nil || !again.Acknowledged {
		t.Fatalf("second Acknowledge = %+v, %v", again, err)
	}

	// The item is still out of stock, so a fresh alert opens.
	if created, _ := f.alerts.Recheck(ctx); len(created) != 1 || created[0].StockItemID != item.ID {
		t.Fatalf("Recheck after acknowledge = %+v", created)
	}

	open := false
	alerts, err := f.alerts.ListAlerts(ctx, &open)
	if err != nil || len(alerts) != 1 {
		t.Fatalf("open alerts = %d, %v", len(alerts), err)
	}

	if _, err := f.alerts.Acknowledge(ctx, admin, 9999); !errors.Is(err, ErrAlertNotFound) {
		t.Fatalf("missing alert error = %v", err)
	}
}

func TestRecheckIgnoresInactiveItems(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Retired", 3)
	inactive := false
	if _, err := f.stock.UpdateItem(ctx, admin, item.ID, UpdateStockItemRequest{Active: &inactive}); err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	created, err := f.alerts.Recheck(ctx)
	if err != nil {
		t.Fatalf("Recheck: %v", err)
	}
	if len(created) != 0 {
		t.Fatalf("inactive item raised %+v", created)
	}
}

func TestAlertSettingsNormalized(t *testing.T) {
	got := AlertSettings{ExpiringWithinDays: -1, LowStockSeverity: "urgent", OutOfStockSeverity: models.SeverityLow}.normalized()
	if got.ExpiringWithinDays != 7 || got.LowStockSeverity != models.SeverityMedium ||
		got.OutOfStockSeverity != models.SeverityLow || got.ExpiringSeverity != models.SeverityMedium {
		t.Fatalf("normalized() = %+v", got)
	}
}

func TestExpiryWindow(t *testing.T) {
	now := time.Date(2024, time.June, 15, 23, 59, 0, 0, time.UTC)
	from, to, err := expiryWindow(now, 7)
	if err != nil {
		t.Fatalf("expiryWindow: %v", err)
	}
	if from.Format(dateLayout) != "2024-06-15" || to.Format(dateLayout) != "2024-06-22" {
		t.Fatalf("window = %s..%s", from.Format(dateLayout), to.Format(dateLayout))
	}
	if _, _, err := expiryWindow(now, -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative window error = %v", err)
	}
}

func TestListExpiringWindow(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Yoghurt", 1)

	for _, expiry := range []string{"2024-06-14", "2024-06-15", "2024-06-22", "2024-06-23", ""} {
		receive(t, f, admin, item.ID, 2, expiry)
	}
	// drained batches drop out of the listing
	drained := receive(t, f, admin, item.ID, 1, "2024-06-16")
	for _, b := range f.batchesOf(item.ID) {
		if b.DeliveryItemID != nil && *b.DeliveryItemID == drained.Items[0].ID {
			if _, err := f.batches.AdjustRemaining(ctx, admin, b.ID, AdjustBatchRequest{Quantity: -1}); err != nil {
				t.Fatalf("AdjustRemaining: %v", err)
			}
		}
	}

	tests := []struct {
		days *int
		want []string
	}{
		{intPtr(7), []string{"2024-06-15", "2024-06-22"}},
		{intPtr(0), []string{"2024-06-15"}},
		{nil, []string{"2024-06-15", "2024-06-22", "2024-06-23"}},
	}
	for _, tt := range tests {
		got, err := f.batches.ListExpiring(ctx, tt.days)
		if err != nil {
			t.Fatalf("ListExpiring: %v", err)
		}
		var dates []string
		for _, b := range got {
			dates = append(dates, b.ExpiryDate.Format(dateLayout))
			if b.ItemName != "Yoghurt" {
				t.Errorf("item name = %q", b.ItemName)
			}
		}
		if len(dates) != len(tt.want) {
			t.Fatalf("ListExpiring(%v) = %v, want %v", tt.days, dates, tt.want)
		}
		for i := range dates {
			if dates[i] != tt.want[i] {
				t.Fatalf("ListExpiring(%v) = %v, want %v", tt.days, dates, tt.want)
			}
		}
	}

	if _, err := f.batches.ListExpiring(ctx, intPtr(-3)); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative days error = %v", err)
	}
}

func TestAdjustBatch(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Limes", 1)
	receive(t, f, admin, item.ID, 4, "")
	batch := f.batchesOf(item.ID)[0]

	got, err := f.batches.AdjustRemaining(ctx, admin, batch.ID, AdjustBatchRequest{Quantity: -4})
	if err != nil {
		t.Fatalf("AdjustRemaining: %v", err)
	}
	if got.RemainingQuantity != 0 || got.Status != models.BatchStatusInactive {
		t.Fatalf("drained batch = %+v", got)
	}
	if q := f.item(item.ID).CurrentQuantity; q != 0 {
		t.Fatalf("item quantity = %v, want 0", q)
	}

	got, err = f.batches.AdjustRemaining(ctx, admin, batch.ID, AdjustBatchRequest{Quantity: 1})
	if err != nil {
		t.Fatalf("return to batch: %v", err)
	}
	if got.Status != models.BatchStatusActive {
		t.Fatalf("refilled batch status = %s", got.Status)
	}
	if returns := f.txnsOf(item.ID, models.TxnReturn); len(returns) != 1 {
		t.Fatalf("return ledger rows = %d", len(returns))
	}

	if _, err := f.batches.AdjustRemaining(ctx, admin, batch.ID, AdjustBatchRequest{Quantity: -5}); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("over-draw error = %v", err)
	}
	if _, err := f.batches.AdjustRemaining(ctx, admin, 4040, AdjustBatchRequest{Quantity: -1}); !errors.Is(err, ErrBatchNotFound) {
		t.Fatalf("missing batch error = %v", err)
	}
	if _, err := f.batches.AdjustRemaining(ctx, admin, batch.ID, AdjustBatchRequest{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("zero quantity error = %v", err)
	}
}

func intPtr(n int) *int { return &n }
