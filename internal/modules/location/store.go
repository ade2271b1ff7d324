// README: Driver pool store backed by Redis GEO, sets and hashes.
package location

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"

	"fooddispatch/internal/types"
)

const (
	driverGeoKey       = "drivers:geo"
	driverAvailableKey = "drivers:available"
	driverProfilePfx   = "drivers:profile:%s"
)

var ErrUnknownDriver = errors.New("unknown driver")

type Store struct {
	redis *redis.Client
}

func NewStore(redis *redis.Client) *Store {
	return &Store{redis: redis}
}

func (s *Store) UpsertProfile(ctx context.Context, p Profile) error {
	return s.redis.HSet(ctx, profileKey(p.ID),
		"name", p.Name,
		"phone", p.Phone,
		"token", p.NotifyToken,
		"rating", strconv.FormatFloat(p.Rating, 'f', -1, 64),
		"completed", strconv.Itoa(p.CompletedDeliveries),
	).Err()
}

func (s *Store) SetLocation(ctx context.Context, id types.ID, pos types.Point) error {
	return s.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: pos.Lng,
		Latitude:  pos.Lat,
	}).Err()
}

// SetAvailability adds or removes the driver from the available set. Only
// drivers with a stored profile can be made available.
func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	if !available {
		return s.redis.SRem(ctx, driverAvailableKey, string(id)).Err()
	}
	n, err := s.redis.Exists(ctx, profileKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownDriver
	}
	return s.redis.SAdd(ctx, driverAvailableKey, string(id)).Err()
}

// Available returns available drivers that have both a profile and a known
// position, ordered by driver id.
func (s *Store) Available(ctx context.Context) ([]Driver, error) {
	ids, err := s.redis.SMembers(ctx, driverAvailableKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list available drivers: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	slices.Sort(ids)

	pipe := s.redis.Pipeline()
	profiles := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		profiles[i] = pipe.HGetAll(ctx, profileKey(types.ID(id)))
	}
	positions := pipe.GeoPos(ctx, driverGeoKey, ids...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("load driver records: %w", err)
	}

	pos := positions.Val()
	drivers := make([]Driver, 0, len(ids))
	for i, id := range ids {
		fields := profiles[i].Val()
		if len(fields) == 0 || i >= len(pos) || pos[i] == nil {
			continue
		}
		rating, _ := strconv.ParseFloat(fields["rating"], 64)
		completed, _ := strconv.Atoi(fields["completed"])
		drivers = append(drivers, Driver{
			ID:                  types.ID(id),
			Name:                fields["name"],
			Phone:               fields["phone"],
			Position:            &types.Point{Lat: pos[i].Latitude, Lng: pos[i].Longitude},
			NotifyToken:         fields["token"],
			Rating:              rating,
			CompletedDeliveries: completed,
			Available:           true,
		})
	}
	return drivers, nil
}

func profileKey(id types.ID) string {
	return fmt.Sprintf(driverProfilePfx, string(id))
}
