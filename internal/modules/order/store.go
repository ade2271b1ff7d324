// README: Order/merchant reads and dispatch escalation events backed by PostgreSQL.
package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fooddispatch/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, store_id, delivery_address, delivery_city,
		       total_amount, delivery_fee, currency, status, created_at
		FROM orders
		WHERE id = $1`, string(id),
	)

	var o Order
	var currency string
	err := row.Scan(
		&o.ID, &o.StoreID, &o.DeliveryAddress, &o.DeliveryCity,
		&o.Total.Amount, &o.DeliveryFee.Amount, &currency, &o.Status, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Total.Currency = currency
	o.DeliveryFee.Currency = currency
	return &o, nil
}

func (s *Store) GetMerchant(ctx context.Context, id types.ID) (*Merchant, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, address, lat, lng
		FROM stores
		WHERE id = $1`, string(id),
	)

	var m Merchant
	var lat, lng *float64
	err := row.Scan(&m.ID, &m.Name, &m.Address, &lat, &lng)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		m.Position = &types.Point{Lat: *lat, Lng: *lng}
	}
	return &m, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO order_dispatch_events (
			order_id, kind, assignment_id, reason, created_at
		) VALUES ($1, $2, $3, $4, $5)`,
		string(e.OrderID),
		string(e.Kind),
		toStringPtr(e.AssignmentID),
		e.Reason,
		e.CreatedAt,
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, orderID types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, kind, assignment_id, reason, created_at
		FROM order_dispatch_events
		WHERE order_id = $1
		ORDER BY id`, string(orderID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var assignmentID *string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Kind, &assignmentID, &e.Reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		if assignmentID != nil {
			id := types.ID(*assignmentID)
			e.AssignmentID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
