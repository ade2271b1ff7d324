// README: Expiry sweep; expires or exhausts overdue assignments and re-dispatches with a wider radius.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fooddispatch/internal/modules/order"
)

const sweepBatch = 100

type SweepReport struct {
	Expired      int
	Exhausted    int
	Redispatched int
	// Skipped counts overdue assignments another instance handled first.
	Skipped int
}

// Sweep handles every open assignment whose claim window has closed. Only
// the caller whose compare-and-set wins acts on an assignment, so running
// it concurrently on several instances is safe.
func (s *Service) Sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport
	now := s.clock.Now()

	for {
		due, err := s.store.ScanOpenBefore(ctx, now, sweepBatch)
		if err != nil {
			return report, fmt.Errorf("scan overdue assignments: %w", err)
		}
		if len(due) == 0 {
			return report, nil
		}
		progressed := false
		for i := range due {
			moved, err := s.expire(ctx, &due[i], now, &report)
			if err != nil {
				return report, err
			}
			progressed = progressed || moved
		}
		if !progressed || len(due) < sweepBatch {
			return report, nil
		}
	}
}

func (s *Service) expire(ctx context.Context, a *Assignment, now time.Time, report *SweepReport) (bool, error) {
	to := StatusExpired
	if a.Attempt >= s.cfg.MaxAttempts {
		to = StatusExhausted
	}
	ok, err := s.store.Transition(ctx, Transition{
		ID:    a.ID,
		From:  a.Status,
		To:    to,
		At:    now,
		DueAt: &now,
	})
	if err != nil {
		return false, fmt.Errorf("expire assignment %s: %w", a.ID, err)
	}
	if !ok {
		report.Skipped++
		return false, nil
	}
	s.metrics.Swept(string(to))

	log := s.log.With().
		Str("order_id", string(a.OrderID)).
		Str("assignment_id", string(a.ID)).
		Int("attempt", a.Attempt).
		Logger()

	if to == StatusExhausted {
		report.Exhausted++
		log.Info().Msg("assignment exhausted")
		s.escalateKind(ctx, a.OrderID, a, order.EventDispatchExhausted,
			fmt.Sprintf("no driver claimed after %d attempts", a.Attempt))
		return true, nil
	}

	report.Expired++
	next := a.Attempt + 1
	radius := s.radiusFor(next)
	log.Info().Float64("radius_km", radius).Msg("assignment expired, re-dispatching")

	redispatched, err := s.attempt(ctx, a.OrderID, next, radius)
	s.recordOutcome(err)
	switch {
	case err == nil:
		report.Redispatched++
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrCancelled):
		// The order moved on (cancelled, or dispatched elsewhere).
		log.Info().Err(err).Msg("re-dispatch skipped")
	case errors.Is(err, ErrNoDriversAvailable),
		errors.Is(err, ErrNotificationDeliveryFailed),
		errors.Is(err, ErrGeocodingFailed):
		if redispatched == nil {
			redispatched = a
		}
		s.escalate(ctx, a.OrderID, redispatched, err)
	default:
		log.Error().Err(err).Msg("re-dispatch failed")
		s.escalateKind(ctx, a.OrderID, a, order.EventDispatchFailed, err.Error())
	}
	return true, nil
}

// RunSweeper sweeps on every tick until ctx is cancelled.
func (s *Service) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := s.Sweep(ctx)
			if err != nil {
				s.log.Error().Err(err).Msg("sweep failed")
				continue
			}
			if report != (SweepReport{}) {
				s.log.Info().
					Int("expired", report.Expired).
					Int("exhausted", report.Exhausted).
					Int("redispatched", report.Redispatched).
					Int("skipped", report.Skipped).
					Msg("sweep done")
			}
		}
	}
}
