package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/safeguardhq/safeguard/internal/geo"
)

const geoKey = "responders:geo"

// RedisStore keeps responder presence in a Redis geo set so multiple server
// instances share one view. Staleness is tracked with a per-responder key
// that Redis expires on its own; geo-set members whose seen key is gone are
// removed lazily during queries.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func seenKey(responderID string) string {
	return "responders:seen:" + responderID
}

func (r *RedisStore) Heartbeat(ctx context.Context, responderID string, p geo.Point) error {
	pipe := r.client.TxPipeline()
	pipe.GeoAdd(ctx, geoKey, &redis.GeoLocation{
		Name:      responderID,
		Longitude: p.Lng,
		Latitude:  p.Lat,
	})
	pipe.Set(ctx, seenKey(responderID), time.Now().UnixMilli(), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}
	return nil
}

func (r *RedisStore) Nearby(ctx context.Context, p geo.Point, radiusKm float64) ([]Responder, error) {
	locs, err := r.client.GeoSearchLocation(ctx, geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  p.Lng,
			Latitude:   p.Lat,
			Radius:     radiusKm,
			RadiusUnit: "km",
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("querying presence: %w", err)
	}

	out := make([]Responder, 0, len(locs))
	for _, loc := range locs {
		alive, err := r.client.Exists(ctx, seenKey(loc.Name)).Result()
		if err != nil {
			return nil, err
		}
		if alive == 0 {
			// Heartbeat expired; drop the stale geo member.
			r.client.ZRem(ctx, geoKey, loc.Name)
			continue
		}
		out = append(out, Responder{
			ID:         loc.Name,
			Point:      geo.Point{Lat: loc.Latitude, Lng: loc.Longitude},
			DistanceKm: loc.Dist,
		})
	}
	return out, nil
}
