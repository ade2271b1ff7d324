// README: Location service validates driver location and availability updates.
package location

import (
	"context"
	"errors"

	"fooddispatch/internal/types"
)

var ErrBadRequest = errors.New("bad request")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) UpdateLocation(ctx context.Context, u LocationUpdate) error {
	if u.DriverID == "" || !u.Position.Valid() {
		return ErrBadRequest
	}
	return s.store.SetLocation(ctx, u.DriverID, u.Position)
}

func (s *Service) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	if id == "" {
		return ErrBadRequest
	}
	return s.store.SetAvailability(ctx, id, available)
}

func (s *Service) RegisterDriver(ctx context.Context, p Profile) error {
	if p.ID == "" || p.Rating < 0 || p.Rating > 5 || p.CompletedDeliveries < 0 {
		return ErrBadRequest
	}
	return s.store.UpsertProfile(ctx, p)
}

// Available is the read-only pool view consumed by dispatch.
func (s *Service) Available(ctx context.Context) ([]Driver, error) {
	return s.store.Available(ctx)
}
