package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"venue_ops_backend/internal/models"
)

func TestAcceptDeliveryPartialReceipt(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	a := mustItem(t, f, admin, "Lager", 2)
	b := mustItem(t, f, admin, "Cider", 2)

	d, err := f.deliveries.CreateDelivery(ctx, admin, CreateDeliveryRequest{
		DeliveryDate: "2024-06-14",
		Supplier:     "Brewery Co",
		Items: []DeliveryLineRequest{
			{StockItemID: a.ID, Quantity: 10},
			{StockItemID: b.ID, Quantity: 5},
		},
	})
	if err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}
	if d.Status != models.DeliveryPending || len(d.Items) != 2 {
		t.Fatalf("created delivery = %+v", d)
	}

	accepted, err := f.deliveries.AcceptDelivery(ctx, admin, d.ID, AcceptDeliveryRequest{Items: []ReceivedLine{
		{ID: d.Items[0].ID, Quantity: 8},
		{ID: d.Items[1].ID, Quantity: 5},
	}})
	if err != nil {
		t.Fatalf("AcceptDelivery: %v", err)
	}
	if accepted.Status != models.DeliveryAccepted || accepted.ReceivedBy == nil || *accepted.ReceivedBy != admin.UserID {
		t.Fatalf("accepted delivery = %+v", accepted)
	}

	if q := f.item(a.ID).CurrentQuantity; q != 8 {
		t.Errorf("A quantity = %v, want 8", q)
	}
	if q := f.item(b.ID).CurrentQuantity; q != 5 {
		t.Errorf("B quantity = %v, want 5", q)
	}

	batches := f.batchesOf(a.ID)
	if len(batches) != 1 || batches[0].RemainingQuantity != 8 || batches[0].Quantity != 8 {
		t.Fatalf("A batches = %+v", batches)
	}
	if !batches[0].ReceivedDate.Equal(d.DeliveryDate) {
		t.Errorf("batch received date = %v, want %v", batches[0].ReceivedDate, d.DeliveryDate)
	}

	txns := f.txnsOf(a.ID, models.TxnDelivery)
	if len(txns) != 1 || txns[0].Quantity != 8 {
		t.Fatalf("A delivery ledger = %+v", txns)
	}
	if txns[0].ReferenceID == nil || *txns[0].ReferenceID != d.ID || *txns[0].BatchID != batches[0].ID {
		t.Errorf("ledger references = %+v", txns[0])
	}

	if got := accepted.Items[0].ReceivedQuantity; got == nil || *got != 8 {
		t.Errorf("line A received = %v, want 8", got)
	}
	if len(f.bus.ofType(models.EventDeliveryAccepted)) != 1 {
		t.Errorf("expected one delivery_accepted event")
	}
}

func TestAcceptDeliveryTwiceConflicts(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Prosecco", 1)

	d := receive(t, f, admin, item.ID, 6, "")
	_, err := f.deliveries.AcceptDelivery(ctx, admin, d.ID, AcceptDeliveryRequest{Items: []ReceivedLine{{ID: d.Items[0].ID, Quantity: 6}}})
	if !errors.Is(err, ErrDeliveryAlreadyProcessed) || !errors.Is(err, ErrConflict) {
		t.Fatalf("second accept error = %v, want conflict", err)
	}
	if q := f.item(item.ID).CurrentQuantity; q != 6 {
		t.Fatalf("quantity after second accept = %v, want 6", q)
	}
	if n := len(f.batchesOf(item.ID)); n != 1 {
		t.Fatalf("batches after second accept = %d, want 1", n)
	}
}

func TestAcceptDeliveryConcurrentOnlyOneWins(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Whisky", 1)

	d, err := f.deliveries.CreateDelivery(ctx, admin, CreateDeliveryRequest{
		DeliveryDate: "2024-06-15", Supplier: "Highland", Items: []DeliveryLineRequest{{StockItemID: item.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}
	req := AcceptDeliveryRequest{Items: []ReceivedLine{{ID: d.Items[0].ID, Quantity: 4}}}

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.deliveries.AcceptDelivery(ctx, admin, d.ID, req)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, ErrConflict):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("successful accepts = %d, want 1", wins)
	}
	if q := f.item(item.ID).CurrentQuantity; q != 4 {
		t.Fatalf("quantity = %v, want 4", q)
	}
}

func TestAcceptDeliveryRejectsForeignLine(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Bitters", 1)

	d, err := f.deliveries.CreateDelivery(ctx, admin, CreateDeliveryRequest{
		DeliveryDate: "2024-06-15", Supplier: "Angostura", Items: []DeliveryLineRequest{{StockItemID: item.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}
	_, err = f.deliveries.AcceptDelivery(ctx, admin, d.ID, AcceptDeliveryRequest{Items: []ReceivedLine{{ID: 9999, Quantity: 2}}})
	if !errors.Is(err, ErrUnknownDeliveryLine) {
		t.Fatalf("foreign line error = %v", err)
	}

	got, err := f.deliveries.GetDelivery(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDelivery: %v", err)
	}
	if got.Status != models.DeliveryPending {
		t.Fatalf("status after failed accept = %s, want pending", got.Status)
	}

	_, err = f.deliveries.AcceptDelivery(ctx, admin, d.ID, AcceptDeliveryRequest{Items: []ReceivedLine{
		{ID: d.Items[0].ID, Quantity: 1}, {ID: d.Items[0].ID, Quantity: 1},
	}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("duplicate line error = %v", err)
	}
}

func TestRejectDelivery(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Olives", 1)

	notes := "Morning drop"
	d, err := f.deliveries.CreateDelivery(ctx, admin, CreateDeliveryRequest{
		DeliveryDate: "2024-06-15", Supplier: "Deli", Notes: &notes,
		Items: []DeliveryLineRequest{{StockItemID: item.ID, Quantity: 12}},
	})
	if err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}

	if _, err := f.deliveries.RejectDelivery(ctx, admin, d.ID, RejectDeliveryRequest{Reason: "  "}); !errors.Is(err, ErrValidation) {
		t.Fatalf("blank reason error = %v", err)
	}

	rejected, err := f.deliveries.RejectDelivery(ctx, admin, d.ID, RejectDeliveryRequest{Reason: "damaged pallet"})
	if err != nil {
		t.Fatalf("RejectDelivery: %v", err)
	}
	if rejected.Status != models.DeliveryRejected {
		t.Fatalf("status = %s", rejected.Status)
	}
	if rejected.Notes == nil || *rejected.Notes != "Morning drop | Rejected: damaged pallet" {
		t.Fatalf("notes = %v", rejected.Notes)
	}
	if q := f.item(item.ID).CurrentQuantity; q != 0 {
		t.Fatalf("quantity after reject = %v, want 0", q)
	}
	if n := len(f.batchesOf(item.ID)); n != 0 {
		t.Fatalf("reject created %d batches", n)
	}

	_, err = f.deliveries.RejectDelivery(ctx, admin, d.ID, RejectDeliveryRequest{Reason: "again"})
	if !errors.Is(err, ErrDeliveryAlreadyProcessed) {
		t.Fatalf("second reject error = %v", err)
	}
	_, err = f.deliveries.AcceptDelivery(ctx, admin, d.ID, AcceptDeliveryRequest{})
	if !errors.Is(err, ErrDeliveryAlreadyProcessed) {
		t.Fatalf("accept after reject error = %v", err)
	}
}

func TestRejectionNotes(t *testing.T) {
	empty := " "
	existing := "left at back door"
	tests := []struct {
		existing *string
		want     string
	}{
		{nil, "Rejected: damaged pallet"},
		{&empty, "Rejected: damaged pallet"},
		{&existing, "left at back door | Rejected: damaged pallet"},
	}
	for _, tt := range tests {
		if got := rejectionNotes(tt.existing, "damaged pallet"); got != tt.want {
			t.Errorf("rejectionNotes() = %q, want %q", got, tt.want)
		}
	}
}

func TestCreateDeliveryValidation(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	item := mustItem(t, f, admin, "Sugar", 1)
	bad := "15/06/2024"

	tests := []struct {
		name string
		req  CreateDeliveryRequest
	}{
		{"no lines", CreateDeliveryRequest{DeliveryDate: "2024-06-15", Supplier: "S"}},
		{"bad date", CreateDeliveryRequest{DeliveryDate: "June 15", Supplier: "S", Items: []DeliveryLineRequest{{StockItemID: item.ID, Quantity: 1}}}},
		{"zero quantity", CreateDeliveryRequest{DeliveryDate: "2024-06-15", Supplier: "S", Items: []DeliveryLineRequest{{StockItemID: item.ID}}}},
		{"unknown item", CreateDeliveryRequest{DeliveryDate: "2024-06-15", Supplier: "S", Items: []DeliveryLineRequest{{StockItemID: 4242, Quantity: 1}}}},
		{"bad expiry", CreateDeliveryRequest{DeliveryDate: "2024-06-15", Supplier: "S", Items: []DeliveryLineRequest{{StockItemID: item.ID, Quantity: 1, ExpiryDate: &bad}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.deliveries.CreateDelivery(ctx, admin, tt.req); !errors.Is(err, ErrValidation) {
				t.Fatalf("CreateDelivery() error = %v, want validation", err)
			}
		})
	}
	if ds, _ := f.deliveries.ListDeliveries(ctx, models.DeliveryFilter{}); len(ds) != 0 {
		t.Fatalf("failed creates left %d deliveries", len(ds))
	}

	status := "lost"
	if _, err := f.deliveries.ListDeliveries(ctx, models.DeliveryFilter{Status: &status}); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown status filter error = %v", err)
	}
}

// Vodka 1L: min 5, 20 expected, 18 received with 2 damaged.
func TestVodkaDeliveryScenario(t *testing.T) {
	f := newFixture()
	admin := f.addUser("admin", models.RoleAdmin)
	ctx := context.Background()
	vodka := mustItem(t, f, admin, "Vodka 1L", 5)

	d, err := f.deliveries.CreateDelivery(ctx, admin, CreateDeliveryRequest{
		DeliveryDate: "2024-06-15",
		Supplier:     "Acme Spirits",
		Items:        []DeliveryLineRequest{{StockItemID: vodka.ID, Quantity: 20}},
	})
	if err != nil {
		t.Fatalf("CreateDelivery: %v", err)
	}
	accepted, err := f.deliveries.AcceptDelivery(ctx, admin, d.ID, AcceptDeliveryRequest{Items: []ReceivedLine{
		{ID: d.Items[0].ID, Quantity: 18, DamagedQuantity: 2},
	}})
	if err != nil {
		t.Fatalf("AcceptDelivery: %v", err)
	}
	if accepted.Items[0].DamagedQuantity != 2 {
		t.Errorf("damaged = %v, want 2", accepted.Items[0].DamagedQuantity)
	}

	item, err := f.stock.GetItem(ctx, vodka.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.CurrentQuantity != 18 || item.StockStatus != models.StockStatusOK {
		t.Fatalf("vodka = qty %v status %s, want 18 ok", item.CurrentQuantity, item.StockStatus)
	}
	batches := f.batchesOf(vodka.ID)
	if len(batches) != 1 || batches[0].RemainingQuantity != 18 {
		t.Fatalf("vodka batches = %+v", batches)
	}

	if _, err := f.alerts.Recheck(ctx); err != nil {
		t.Fatalf("Recheck: %v", err)
	}
	if alerts := f.alertsOf(vodka.ID); len(alerts) != 0 {
		t.Fatalf("vodka alerts = %+v, want none", alerts)
	}
	if !strings.Contains(strings.Join(f.auditActions(), ","), "accept_delivery") {
		t.Errorf("accept_delivery not audited: %v", f.auditActions())
	}
}
