// README: Assignment persistence contract and its PostgreSQL implementation.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"fooddispatch/internal/types"
)

// Store persists assignments. Transition must be atomic: of two concurrent
// calls with the same From, at most one reports true. Create rejects a second
// open assignment for the same order with ErrInvalidState.
type Store interface {
	Create(ctx context.Context, a *Assignment) error
	Transition(ctx context.Context, t Transition) (bool, error)
	Get(ctx context.Context, id types.ID) (*Assignment, error)
	ScanOpenBefore(ctx context.Context, ts time.Time, limit int) ([]Assignment, error)
	ListByOrder(ctx context.Context, orderID types.ID) ([]Assignment, error)
}

const (
	uniqueViolation = "23505"
	openUniqueIndex = "dispatch_assignments_open_uniq"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, a *Assignment) error {
	candidates, err := json.Marshal(a.Candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO dispatch_assignments (
			id, order_id, store_id, attempt, radius_km, candidates, notified,
			amount, delivery_fee, currency, status, claimed_by,
			created_at, expires_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		string(a.ID),
		string(a.OrderID),
		string(a.StoreID),
		a.Attempt,
		a.RadiusKm,
		candidates,
		idStrings(a.Notified),
		a.Amount.Amount,
		a.DeliveryFee.Amount,
		a.Amount.Currency,
		string(a.Status),
		idPtr(a.ClaimedBy),
		a.CreatedAt,
		a.ExpiresAt,
		a.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == openUniqueIndex {
			return fmt.Errorf("order %s already has an open assignment: %w", a.OrderID, ErrInvalidState)
		}
		return ErrStoreWriteConflict
	}
	return err
}

func (s *PGStore) Transition(ctx context.Context, t Transition) (bool, error) {
	if t.From.Terminal() {
		return false, nil
	}
	var notified []string
	if t.Notified != nil {
		notified = idStrings(t.Notified)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE dispatch_assignments
		SET status = $1,
		    updated_at = $2,
		    claimed_by = COALESCE($3, claimed_by),
		    notified = COALESCE($4::text[], notified)
		WHERE id = $5
		  AND status = $6
		  AND ($7::timestamptz IS NULL OR expires_at > $7)
		  AND ($8::timestamptz IS NULL OR expires_at <= $8)`,
		string(t.To),
		t.At,
		idPtr(t.ClaimedBy),
		notified,
		string(t.ID),
		string(t.From),
		t.LiveAt,
		t.DueAt,
	)
	if err != nil {
		// The partial unique index rejects a second claimed row per order.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

const selectAssignment = `
	SELECT id, order_id, store_id, attempt, radius_km, candidates, notified,
	       amount, delivery_fee, currency, status, claimed_by,
	       created_at, expires_at, updated_at
	FROM dispatch_assignments`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Assignment, error) {
	row := s.db.QueryRow(ctx, selectAssignment+` WHERE id = $1`, string(id))
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *PGStore) ScanOpenBefore(ctx context.Context, ts time.Time, limit int) ([]Assignment, error) {
	return s.query(ctx, selectAssignment+`
		WHERE status IN ('notifying', 'pending') AND expires_at <= $1
		ORDER BY expires_at
		LIMIT $2`, ts, limit)
}

func (s *PGStore) ListByOrder(ctx context.Context, orderID types.ID) ([]Assignment, error) {
	return s.query(ctx, selectAssignment+`
		WHERE order_id = $1
		ORDER BY attempt, created_at`, string(orderID))
}

func (s *PGStore) query(ctx context.Context, sql string, args ...any) ([]Assignment, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	var candidates []byte
	var notified []string
	var currency string
	var claimedBy *string
	err := row.Scan(
		&a.ID, &a.OrderID, &a.StoreID, &a.Attempt, &a.RadiusKm, &candidates, &notified,
		&a.Amount.Amount, &a.DeliveryFee.Amount, &currency, &a.Status, &claimedBy,
		&a.CreatedAt, &a.ExpiresAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(candidates, &a.Candidates); err != nil {
		return nil, fmt.Errorf("decode candidates for %s: %w", a.ID, err)
	}
	a.Notified = make([]types.ID, len(notified))
	for i, id := range notified {
		a.Notified[i] = types.ID(id)
	}
	a.Amount.Currency = currency
	a.DeliveryFee.Currency = currency
	if claimedBy != nil {
		id := types.ID(*claimedBy)
		a.ClaimedBy = &id
	}
	return &a, nil
}

func idStrings(ids []types.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func idPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
