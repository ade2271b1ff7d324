// README: Driver offer notifications and their wire payload.
package notify

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"fooddispatch/internal/types"
)

var ErrEmptyToken = errors.New("empty notification token")

// Message is one offer sent to one driver device.
type Message struct {
	Token string
	Title string
	Body  string
	Data  Offer
}

// Offer carries everything a driver client needs to render accept/reject.
type Offer struct {
	OrderID         types.ID     `json:"order_id"`
	AssignmentID    types.ID     `json:"assignment_id"`
	DriverID        types.ID     `json:"driver_id"`
	StoreName       string       `json:"store_name"`
	StoreAddress    string       `json:"store_address"`
	StorePosition   *types.Point `json:"store_position,omitempty"`
	DeliveryAddress string       `json:"delivery_address"`
	DistanceKm      float64      `json:"distance_km"`
	Amount          types.Money  `json:"amount"`
	DeliveryFee     types.Money  `json:"delivery_fee"`
	ExpiresAt       time.Time    `json:"expires_at"`
}

// NewOfferMessage formats the title/body shown in the system tray.
func NewOfferMessage(token string, o Offer) Message {
	return Message{
		Token: token,
		Title: "New delivery request",
		Body:  fmt.Sprintf("%s · %.2f km · fee %.2f %s", o.StoreName, o.DistanceKm, o.DeliveryFee.Major(), o.DeliveryFee.Currency),
		Data:  o,
	}
}

// Fields flattens the offer into string key/values for data-only transports.
func (o Offer) Fields() map[string]string {
	fields := map[string]string{
		"type":             "new_delivery",
		"order_id":         string(o.OrderID),
		"assignment_id":    string(o.AssignmentID),
		"driver_id":        string(o.DriverID),
		"store_name":       o.StoreName,
		"store_address":    o.StoreAddress,
		"delivery_address": o.DeliveryAddress,
		"distance_km":      strconv.FormatFloat(o.DistanceKm, 'f', 2, 64),
		"amount":           strconv.FormatInt(o.Amount.Amount, 10),
		"delivery_fee":     strconv.FormatInt(o.DeliveryFee.Amount, 10),
		"currency":         o.Amount.Currency,
		"expires_at":       o.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if o.StorePosition != nil {
		fields["store_lat"] = strconv.FormatFloat(o.StorePosition.Lat, 'f', 6, 64)
		fields["store_lng"] = strconv.FormatFloat(o.StorePosition.Lng, 'f', 6, 64)
	}
	return fields
}
