// README: Assignment model, lifecycle states and dispatch errors.
package dispatch

import (
	"errors"
	"slices"
	"time"

	"fooddispatch/internal/modules/matching"
	"fooddispatch/internal/types"
)

type Status string

const (
	StatusNotifying Status = "notifying"
	StatusPending   Status = "pending"
	StatusClaimed   Status = "claimed"
	StatusExpired   Status = "expired"
	StatusExhausted Status = "exhausted"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Open reports whether the assignment can still change hands.
func (s Status) Open() bool {
	return s == StatusNotifying || s == StatusPending
}

// Terminal statuses are never left again.
func (s Status) Terminal() bool {
	switch s {
	case StatusClaimed, StatusExpired, StatusExhausted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

var (
	ErrInvalidState               = errors.New("invalid state")
	ErrNotFound                   = errors.New("not found")
	ErrGeocodingFailed            = errors.New("geocoding failed")
	ErrNoDriversAvailable         = errors.New("no drivers available")
	ErrNotificationDeliveryFailed = errors.New("notification delivery failed")
	ErrAlreadyClaimed             = errors.New("assignment already claimed")
	ErrExpired                    = errors.New("assignment expired")
	ErrCancelled                  = errors.New("assignment cancelled")
	ErrNotCandidate               = errors.New("driver was not offered this assignment")
	ErrStoreWriteConflict         = errors.New("assignment store write conflict")
)

// Candidate is the persisted snapshot of one ranked driver.
type Candidate struct {
	DriverID    types.ID `json:"driver_id"`
	DistanceKm  float64  `json:"distance_km"`
	DurationMin float64  `json:"duration_min,omitempty"`
	Rating      float64  `json:"rating"`
	Estimated   bool     `json:"estimated,omitempty"`
}

func candidatesFrom(ranked []matching.DriverCandidate) []Candidate {
	out := make([]Candidate, len(ranked))
	for i, c := range ranked {
		out[i] = Candidate{
			DriverID:    c.DriverID,
			DistanceKm:  c.DistanceKm,
			DurationMin: c.DurationMin,
			Rating:      c.Rating,
			Estimated:   c.Estimated,
		}
	}
	return out
}

// Assignment is one dispatch attempt for an order. Candidates never change
// after creation; a retry creates a new Assignment.
type Assignment struct {
	ID          types.ID    `json:"id"`
	OrderID     types.ID    `json:"order_id"`
	StoreID     types.ID    `json:"store_id"`
	Attempt     int         `json:"attempt"`
	RadiusKm    float64     `json:"radius_km"`
	Candidates  []Candidate `json:"candidates"`
	Notified    []types.ID  `json:"notified"`
	Amount      types.Money `json:"amount"`
	DeliveryFee types.Money `json:"delivery_fee"`
	Status      Status      `json:"status"`
	ClaimedBy   *types.ID   `json:"claimed_by,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (a *Assignment) WasNotified(driverID types.ID) bool {
	return slices.Contains(a.Notified, driverID)
}

// ExpiredAt reports whether the claim window has closed at now.
func (a *Assignment) ExpiredAt(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Transition is a compare-and-set status change. It applies only when the
// stored status equals From and every non-nil guard holds.
type Transition struct {
	ID   types.ID
	From Status
	To   Status
	At   time.Time

	ClaimedBy *types.ID
	// Notified replaces the notified list when non-nil.
	Notified []types.ID
	// LiveAt requires expires_at > *LiveAt.
	LiveAt *time.Time
	// DueAt requires expires_at <= *DueAt.
	DueAt *time.Time
}

// SendResult is the outcome of one offer notification.
type SendResult struct {
	DriverID types.ID `json:"driver_id"`
	Err      error    `json:"-"`
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = systemClock{}
