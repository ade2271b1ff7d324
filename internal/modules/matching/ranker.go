// README: Candidate ranker; radius filter, network distance with haversine fallback, rating tie-break.
package matching

import (
	"cmp"
	"context"
	"math"
	"slices"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"fooddispatch/internal/maps"
	"fooddispatch/internal/modules/location"
	"fooddispatch/internal/types"
)

type DistanceEstimator interface {
	Distance(ctx context.Context, origin, destination types.Point) (maps.Route, error)
}

type Ranker struct {
	estimator DistanceEstimator
	log       zerolog.Logger
}

// NewRanker builds a ranker. A nil estimator ranks on great-circle distance only.
func NewRanker(estimator DistanceEstimator, log zerolog.Logger) *Ranker {
	return &Ranker{estimator: estimator, log: log}
}

// Rank returns the drivers within maxRadiusKm of delivery, nearest first.
// An empty result means no driver is eligible; it is not an error.
func (r *Ranker) Rank(ctx context.Context, drivers []location.Driver, delivery types.Point, maxRadiusKm float64) []DriverCandidate {
	if maxRadiusKm <= 0 {
		maxRadiusKm = DefaultMaxRadiusKm
	}

	// Road distance is never shorter than great-circle distance, so drivers
	// already out of range by haversine are dropped without a provider call.
	located := make([]location.Driver, 0, len(drivers))
	for _, d := range drivers {
		if d.Position == nil || !d.Position.Valid() {
			continue
		}
		if location.HaversineKm(*d.Position, delivery) > maxRadiusKm {
			continue
		}
		located = append(located, d)
	}

	measured := make([]DriverCandidate, len(located))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rankConcurrency)
	for i, d := range located {
		g.Go(func() error {
			measured[i] = r.measure(gctx, d, delivery)
			return nil
		})
	}
	_ = g.Wait()

	out := make([]DriverCandidate, 0, len(measured))
	for _, c := range measured {
		if c.DistanceKm > maxRadiusKm {
			continue
		}
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b DriverCandidate) int {
		if c := cmp.Compare(a.DistanceKm, b.DistanceKm); c != 0 {
			return c
		}
		return cmp.Compare(a.DriverID, b.DriverID)
	})
	insertionSort(out, rankBefore)
	return out
}

func (r *Ranker) measure(ctx context.Context, d location.Driver, delivery types.Point) DriverCandidate {
	c := DriverCandidate{
		DriverID:            d.ID,
		Name:                d.Name,
		Phone:               d.Phone,
		Position:            *d.Position,
		NotifyToken:         d.NotifyToken,
		Rating:              d.Rating,
		CompletedDeliveries: d.CompletedDeliveries,
	}

	if r.estimator != nil {
		route, err := r.estimator.Distance(ctx, *d.Position, delivery)
		if err == nil && route.DistanceKm >= 0 && !math.IsNaN(route.DistanceKm) {
			c.DistanceKm = route.DistanceKm
			c.DurationMin = route.DurationMin
			return c
		}
		r.log.Debug().Err(err).Str("driver_id", string(d.ID)).Msg("network distance unavailable, using haversine")
	}

	c.DistanceKm = location.HaversineKm(*d.Position, delivery)
	c.Estimated = true
	return c
}

// rankBefore reports whether a should be offered before b: when the two are
// within tieThresholdKm the better-rated driver wins.
func rankBefore(a, b DriverCandidate) bool {
	if math.Abs(a.DistanceKm-b.DistanceKm) < tieThresholdKm && a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	return false
}

// insertionSort is stable and deterministic for any less, including the
// non-transitive near-tie rule.
func insertionSort[T any](items []T, less func(a, b T) bool) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && less(key, items[j]) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
