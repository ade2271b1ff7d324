// README: Driver pool entries as read by dispatch.
package location

import (
	"time"

	"fooddispatch/internal/types"
)

// Driver is an active driver as known to the pool. Position is nil until the
// driver has reported a location.
type Driver struct {
	ID                  types.ID
	Name                string
	Phone               string
	Position            *types.Point
	NotifyToken         string
	Rating              float64
	CompletedDeliveries int
	Available           bool
}

// Profile is the slow-changing part of a driver record.
type Profile struct {
	ID                  types.ID
	Name                string
	Phone               string
	NotifyToken         string
	Rating              float64
	CompletedDeliveries int
}

type LocationUpdate struct {
	DriverID   types.ID
	Position   types.Point
	RecordedAt time.Time
}
