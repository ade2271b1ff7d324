// README: Order service exposes the read side and escalation hook used by dispatch.
package order

import (
	"context"
	"errors"
	"time"

	"fooddispatch/internal/types"
)

var (
	ErrNotFound   = errors.New("order not found")
	ErrBadRequest = errors.New("bad request")
)

type Service struct {
	store *Store
	now   func() time.Time
}

func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.store.Get(ctx, id)
}

func (s *Service) GetMerchant(ctx context.Context, id types.ID) (*Merchant, error) {
	if id == "" {
		return nil, ErrBadRequest
	}
	return s.store.GetMerchant(ctx, id)
}

type EscalateCommand struct {
	OrderID      types.ID
	Kind         EventKind
	AssignmentID *types.ID
	Reason       string
}

// Escalate hands an order that dispatch could not place back to order
// management for retry, manual dispatch or cancellation.
func (s *Service) Escalate(ctx context.Context, cmd EscalateCommand) error {
	if cmd.OrderID == "" || cmd.Kind == "" {
		return ErrBadRequest
	}
	return s.store.AppendEvent(ctx, &Event{
		OrderID:      cmd.OrderID,
		Kind:         cmd.Kind,
		AssignmentID: cmd.AssignmentID,
		Reason:       cmd.Reason,
		CreatedAt:    s.now(),
	})
}

func (s *Service) Events(ctx context.Context, orderID types.ID) ([]Event, error) {
	return s.store.ListEvents(ctx, orderID)
}
