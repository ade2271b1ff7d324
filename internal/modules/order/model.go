// README: Order and merchant views consumed by dispatch (owned by order management).
package order

import (
	"time"

	"fooddispatch/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusPickedUp  Status = "picked_up"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Dispatchable reports whether drivers may be sought for an order in this status.
func (s Status) Dispatchable() bool {
	return s == StatusConfirmed
}

type Order struct {
	ID              types.ID
	StoreID         types.ID
	DeliveryAddress string
	DeliveryCity    string
	Total           types.Money
	DeliveryFee     types.Money
	Status          Status
	CreatedAt       time.Time
}

// FullDeliveryAddress joins address and city for geocoding.
func (o *Order) FullDeliveryAddress() string {
	if o.DeliveryCity == "" {
		return o.DeliveryAddress
	}
	return o.DeliveryAddress + ", " + o.DeliveryCity
}

// Merchant is the store an order is picked up from. Position is nil when the
// store has no stored coordinates.
type Merchant struct {
	ID       types.ID
	Name     string
	Address  string
	Position *types.Point
}

type EventKind string

const (
	EventDispatchExhausted  EventKind = "dispatch_exhausted"
	EventNoDriversAvailable EventKind = "no_drivers_available"
	EventDispatchFailed     EventKind = "dispatch_failed"
)

// Event is an escalation record for order management to act on.
type Event struct {
	ID           int64
	OrderID      types.ID
	Kind         EventKind
	AssignmentID *types.ID
	Reason       string
	CreatedAt    time.Time
}
