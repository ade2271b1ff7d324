package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"fooddispatch/internal/types"
)

// Geocoder resolves postal addresses through the Google Geocoding API.
type Geocoder struct {
	client  *maps.Client
	timeout time.Duration
}

func NewGeocoder(client *maps.Client, timeout time.Duration) *Geocoder {
	return &Geocoder{client: client, timeout: timeout}
}

// Geocode returns the first match for address. An outage is retried once;
// an unresolvable address is not.
func (g *Geocoder) Geocode(ctx context.Context, address, countryHint string) (types.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return types.Point{}, fmt.Errorf("%w: empty address", ErrNotFound)
	}

	p, err := g.geocodeOnce(ctx, address, countryHint)
	if errors.Is(err, ErrUnavailable) && ctx.Err() == nil {
		p, err = g.geocodeOnce(ctx, address, countryHint)
	}
	return p, err
}

func (g *Geocoder) geocodeOnce(ctx context.Context, address, countryHint string) (types.Point, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	r := &maps.GeocodingRequest{Address: address}
	if countryHint != "" {
		r.Components = map[maps.Component]string{maps.ComponentCountry: countryHint}
	}

	results, err := g.client.Geocode(ctx, r)
	if err != nil {
		return types.Point{}, classify(err)
	}
	if len(results) == 0 {
		return types.Point{}, fmt.Errorf("%w: no geocode results for %q", ErrNotFound, address)
	}

	loc := results[0].Geometry.Location
	p := types.Point{Lat: loc.Lat, Lng: loc.Lng}
	if !p.Valid() {
		return types.Point{}, fmt.Errorf("%w: invalid coordinates for %q", ErrMalformedResponse, address)
	}
	return p, nil
}
