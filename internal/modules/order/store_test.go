// README: DB-backed tests for order reads and escalation events.
package order

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fooddispatch/internal/infra"
	"fooddispatch/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("DISPATCH_TEST_DSN")
	if dsn == "" {
		t.Skip("DISPATCH_TEST_DSN not set; skipping DB-backed order tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	path, err := infra.MigrationPath()
	if err != nil {
		t.Fatalf("locate migration: %v", err)
	}
	if err := infra.Migrate(ctx, db, path); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE order_dispatch_events, orders, stores"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO stores (id, name, address, lat, lng) VALUES
			('s1', 'Noodle Bar', '9 Market St', 25.033, 121.565),
			('s2', 'Pop-up Grill', '12 Pier Rd', NULL, NULL)`)
	if err != nil {
		t.Fatalf("seed stores: %v", err)
	}
	_, err = db.Exec(ctx, `
		INSERT INTO orders (id, store_id, delivery_address, delivery_city, total_amount, delivery_fee, currency, status)
		VALUES ('o1', 's1', '1 Main St', 'Springfield', 2599, 450, 'USD', 'confirmed')`)
	if err != nil {
		t.Fatalf("seed orders: %v", err)
	}
	return NewStore(db)
}

func TestStoreGetOrder(t *testing.T) {
	store := setupTestStore(t)
	svc := NewService(store)
	ctx := context.Background()

	o, err := svc.Get(ctx, "o1")
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if o.Status != StatusConfirmed || !o.Status.Dispatchable() {
		t.Fatalf("expected confirmed order, got %s", o.Status)
	}
	if o.DeliveryFee.Amount != 450 || o.DeliveryFee.Currency != "USD" {
		t.Fatalf("unexpected fee %+v", o.DeliveryFee)
	}
	if got := o.FullDeliveryAddress(); got != "1 Main St, Springfield" {
		t.Fatalf("full address = %q", got)
	}

	if _, err := svc.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreGetMerchant(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	m, err := store.GetMerchant(ctx, "s1")
	if err != nil {
		t.Fatalf("get store: %v", err)
	}
	if m.Position == nil || m.Position.Lat != 25.033 {
		t.Fatalf("expected stored coordinates, got %+v", m.Position)
	}

	m, err = store.GetMerchant(ctx, "s2")
	if err != nil {
		t.Fatalf("get store: %v", err)
	}
	if m.Position != nil {
		t.Fatalf("store without coordinates should have nil position, got %+v", m.Position)
	}
}

func TestServiceEscalateAppendsEvent(t *testing.T) {
	store := setupTestStore(t)
	svc := NewService(store)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	assignment := types.ID("a1")
	err := svc.Escalate(ctx, EscalateCommand{
		OrderID:      "o1",
		Kind:         EventDispatchExhausted,
		AssignmentID: &assignment,
		Reason:       "no driver claimed after 2 attempts",
	})
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if err := svc.Escalate(ctx, EscalateCommand{OrderID: "o1", Kind: EventNoDriversAvailable}); err != nil {
		t.Fatalf("escalate: %v", err)
	}

	events, err := svc.Events(ctx, "o1")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != EventDispatchExhausted || events[0].AssignmentID == nil || *events[0].AssignmentID != "a1" {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].AssignmentID != nil {
		t.Fatalf("second event should have no assignment, got %v", *events[1].AssignmentID)
	}
}

func TestEscalateRejectsIncompleteCommand(t *testing.T) {
	svc := NewService(nil)
	if err := svc.Escalate(context.Background(), EscalateCommand{OrderID: "o1"}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestStatusDispatchable(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusPreparing, StatusPickedUp, StatusDelivered, StatusCancelled} {
		if s.Dispatchable() {
			t.Errorf("%s should not be dispatchable", s)
		}
	}
	if !StatusConfirmed.Dispatchable() {
		t.Error("confirmed should be dispatchable")
	}
}
