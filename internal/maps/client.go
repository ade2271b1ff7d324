package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"
)

var (
	// ErrNotFound means the provider understood the request but has no answer for it.
	ErrNotFound = errors.New("maps: not found")
	// ErrUnavailable covers outages, quota exhaustion and timeouts.
	ErrUnavailable = errors.New("maps: provider unavailable")
	// ErrMalformedResponse means the provider answered with something unusable.
	ErrMalformedResponse = errors.New("maps: malformed response")
)

// NewClient creates a Google Maps client shared by the geocoder and the
// distance estimator. qps <= 0 keeps the library default.
func NewClient(apiKey string, qps int, opts ...maps.ClientOption) (*maps.Client, error) {
	all := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if qps > 0 {
		all = append(all, maps.WithRateLimit(qps))
	}
	all = append(all, opts...)
	client, err := maps.NewClient(all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

// classify maps a client error onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "INVALID_REQUEST"), strings.Contains(msg, "NOT_FOUND"), strings.Contains(msg, "ZERO_RESULTS"):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}
