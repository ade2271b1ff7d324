// README: Ranked driver candidates for a single delivery point.
package matching

import (
	"fooddispatch/internal/modules/location"
	"fooddispatch/internal/types"
)

const (
	// DefaultMaxRadiusKm is the search radius used when the caller passes none.
	DefaultMaxRadiusKm = 15.0
	// tieThresholdKm is the distance gap under which rating decides the order.
	tieThresholdKm = 1.0
	// rankConcurrency bounds in-flight distance lookups per Rank call.
	rankConcurrency = 8
)

// DriverCandidate is computed per ranking and never persisted.
type DriverCandidate struct {
	DriverID            types.ID
	Name                string
	Phone               string
	Position            types.Point
	NotifyToken         string
	Rating              float64
	CompletedDeliveries int
	DistanceKm          float64
	DurationMin         float64
	// Estimated is true when DistanceKm came from the great-circle fallback.
	Estimated bool
}

// RoundedKm is the distance shown to drivers.
func (c DriverCandidate) RoundedKm() float64 {
	return location.RoundKm(c.DistanceKm)
}
