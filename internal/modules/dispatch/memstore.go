// README: In-memory assignment store with the same compare-and-set semantics as PGStore.
package dispatch

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"fooddispatch/internal/types"
)

type MemoryStore struct {
	mu   sync.Mutex
	byID map[types.ID]*Assignment
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[types.ID]*Assignment)}
}

func (s *MemoryStore) Create(_ context.Context, a *Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[a.ID]; ok {
		return ErrStoreWriteConflict
	}
	if a.Status.Open() {
		for _, other := range s.byID {
			if other.OrderID == a.OrderID && other.Status.Open() {
				return fmt.Errorf("order %s already has an open assignment: %w", a.OrderID, ErrInvalidState)
			}
		}
	}
	s.byID[a.ID] = cloneAssignment(a)
	return nil
}

func (s *MemoryStore) Transition(_ context.Context, t Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[t.ID]
	if !ok || a.Status != t.From || a.Status.Terminal() {
		return false, nil
	}
	if t.LiveAt != nil && !a.ExpiresAt.After(*t.LiveAt) {
		return false, nil
	}
	if t.DueAt != nil && a.ExpiresAt.After(*t.DueAt) {
		return false, nil
	}
	if t.To == StatusClaimed {
		for _, other := range s.byID {
			if other.OrderID == a.OrderID && other.Status == StatusClaimed {
				return false, nil
			}
		}
	}

	a.Status = t.To
	a.UpdatedAt = t.At
	if t.ClaimedBy != nil {
		id := *t.ClaimedBy
		a.ClaimedBy = &id
	}
	if t.Notified != nil {
		a.Notified = slices.Clone(t.Notified)
	}
	return true, nil
}

func (s *MemoryStore) Get(_ context.Context, id types.ID) (*Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneAssignment(a), nil
}

func (s *MemoryStore) ScanOpenBefore(_ context.Context, ts time.Time, limit int) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for _, a := range s.byID {
		if a.Status.Open() && !a.ExpiresAt.After(ts) {
			out = append(out, *cloneAssignment(a))
		}
	}
	slices.SortFunc(out, func(x, y Assignment) int { return x.ExpiresAt.Compare(y.ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListByOrder(_ context.Context, orderID types.ID) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for _, a := range s.byID {
		if a.OrderID == orderID {
			out = append(out, *cloneAssignment(a))
		}
	}
	slices.SortFunc(out, func(x, y Assignment) int {
		if x.Attempt != y.Attempt {
			return x.Attempt - y.Attempt
		}
		return x.CreatedAt.Compare(y.CreatedAt)
	})
	return out, nil
}

func cloneAssignment(a *Assignment) *Assignment {
	c := *a
	c.Candidates = slices.Clone(a.Candidates)
	c.Notified = slices.Clone(a.Notified)
	if a.ClaimedBy != nil {
		id := *a.ClaimedBy
		c.ClaimedBy = &id
	}
	return &c
}
