// README: Concurrent offer fanout with a per-send timeout and per-recipient results.
package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"fooddispatch/internal/modules/matching"
	"fooddispatch/internal/modules/notify"
	"fooddispatch/internal/types"
)

// fanout sends one offer per candidate and waits for every send. Each
// result slot is written by exactly one goroutine.
func (s *Service) fanout(ctx context.Context, offer notify.Offer, candidates []matching.DriverCandidate) []SendResult {
	results := make([]SendResult, len(candidates))
	if len(candidates) == 0 {
		return results
	}

	var g errgroup.Group
	g.SetLimit(min(len(candidates), s.cfg.TopN))
	for i, c := range candidates {
		g.Go(func() error {
			results[i] = SendResult{DriverID: c.DriverID, Err: s.send(ctx, offer, c)}
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		s.metrics.Send(r.Err == nil)
		if r.Err != nil {
			s.log.Warn().
				Err(r.Err).
				Str("order_id", string(offer.OrderID)).
				Str("assignment_id", string(offer.AssignmentID)).
				Str("driver_id", string(r.DriverID)).
				Msg("offer notification failed")
		}
	}
	return results
}

func (s *Service) send(ctx context.Context, offer notify.Offer, c matching.DriverCandidate) error {
	if c.NotifyToken == "" {
		return notify.ErrEmptyToken
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	offer.DriverID = c.DriverID
	offer.DistanceKm = c.RoundedKm()
	return s.notifier.Send(ctx, notify.NewOfferMessage(c.NotifyToken, offer))
}

// delivered returns the drivers whose send succeeded, in candidate order.
func delivered(results []SendResult) []types.ID {
	out := make([]types.ID, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.DriverID)
		}
	}
	return out
}
