package maps

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fooddispatch/internal/types"
)

const (
	geocodeKeyPrefix = "geocode:%s:%s"
	geocodeTTL       = 30 * 24 * time.Hour
)

type resolver interface {
	Geocode(ctx context.Context, address, countryHint string) (types.Point, error)
}

// CachedGeocoder keeps successful geocode results in Redis. Cache failures
// never fail a lookup; they fall through to the provider.
type CachedGeocoder struct {
	next  resolver
	redis *redis.Client
	log   zerolog.Logger
}

func NewCachedGeocoder(next resolver, redis *redis.Client, log zerolog.Logger) *CachedGeocoder {
	return &CachedGeocoder{next: next, redis: redis, log: log}
}

func (c *CachedGeocoder) Geocode(ctx context.Context, address, countryHint string) (types.Point, error) {
	key := geocodeKey(address, countryHint)

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		if p, perr := parsePoint(val); perr == nil {
			return p, nil
		}
		c.log.Warn().Str("key", key).Msg("dropping unparsable geocode cache entry")
	case !errors.Is(err, redis.Nil):
		c.log.Warn().Err(err).Msg("geocode cache read failed")
	}

	p, err := c.next.Geocode(ctx, address, countryHint)
	if err != nil {
		return types.Point{}, err
	}
	if err := c.redis.Set(ctx, key, formatPoint(p), geocodeTTL).Err(); err != nil {
		c.log.Warn().Err(err).Msg("geocode cache write failed")
	}
	return p, nil
}

func geocodeKey(address, countryHint string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(address)), " ")
	return fmt.Sprintf(geocodeKeyPrefix, strings.ToLower(countryHint), norm)
}

func formatPoint(p types.Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

func parsePoint(s string) (types.Point, error) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return types.Point{}, fmt.Errorf("bad point %q", s)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return types.Point{}, err
	}
	ln, err := strconv.ParseFloat(lng, 64)
	if err != nil {
		return types.Point{}, err
	}
	return types.Point{Lat: la, Lng: ln}, nil
}
