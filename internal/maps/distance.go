package maps

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"googlemaps.github.io/maps"

	"fooddispatch/internal/types"
)

// Route is a road-network estimate between two points.
type Route struct {
	DistanceKm  float64
	DurationMin float64
}

// DistanceService queries the Google Distance Matrix API for driving distance.
type DistanceService struct {
	client  *maps.Client
	timeout time.Duration
}

func NewDistanceService(client *maps.Client, timeout time.Duration) *DistanceService {
	return &DistanceService{client: client, timeout: timeout}
}

func (s *DistanceService) Distance(ctx context.Context, origin, destination types.Point) (Route, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	r := &maps.DistanceMatrixRequest{
		Origins:      []string{latLng(origin)},
		Destinations: []string{latLng(destination)},
		Mode:         maps.TravelModeDriving,
		Units:        maps.UnitsMetric,
	}

	resp, err := s.client.DistanceMatrix(ctx, r)
	if err != nil {
		return Route{}, classify(err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return Route{}, fmt.Errorf("%w: empty distance matrix", ErrMalformedResponse)
	}

	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return Route{}, fmt.Errorf("%w: element status %s", ErrMalformedResponse, el.Status)
	}
	if el.Distance.Meters < 0 {
		return Route{}, fmt.Errorf("%w: negative distance", ErrMalformedResponse)
	}
	return Route{
		DistanceKm:  float64(el.Distance.Meters) / 1000,
		DurationMin: el.Duration.Minutes(),
	}, nil
}

func latLng(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}
