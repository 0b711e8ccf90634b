package distance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"fulfillment/internal/core/domain/model/delivery"
	"fulfillment/internal/core/domain/model/kernel"
	"fulfillment/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// Connect builds a Redis client from a redis:// URL or a bare host:port.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// CachedEstimator memoizes estimates in Redis. Points are snapped to a grid of
// about 100 m, so an agent moving within a block reuses the same entry. Cache
// failures fall through to the wrapped estimator.
type CachedEstimator struct {
	next   ports.DistanceEstimator
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedEstimator(next ports.DistanceEstimator, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedEstimator {
	return &CachedEstimator{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger.With("component", "distance_cache"),
	}
}

func (c *CachedEstimator) Estimate(ctx context.Context, from, to kernel.GeoPoint) (delivery.Estimate, error) {
	key := cacheKey(from, to)

	data, err := c.client.HGetAll(ctx, key).Result()
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "distance cache read failed", "key", key, "error", err)
	case len(data) > 0:
		if estimate, ok := decode(data); ok {
			return estimate, nil
		}
	}

	estimate, err := c.next.Estimate(ctx, from, to)
	if err != nil {
		return delivery.Estimate{}, err
	}

	_, err = c.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"distance_km", estimate.DistanceKm,
			"eta_minutes", estimate.EtaMinutes)
		p.Expire(ctx, key, c.ttl)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.WarnContext(ctx, "distance cache write failed", "key", key, "error", err)
	}
	return estimate, nil
}

func cacheKey(from, to kernel.GeoPoint) string {
	return "fulfillment:distance:" + snap(from) + ":" + snap(to)
}

func snap(p kernel.GeoPoint) string {
	return strconv.FormatFloat(math.Round(p.Lat()*1000)/1000, 'f', 3, 64) + "," +
		strconv.FormatFloat(math.Round(p.Lng()*1000)/1000, 'f', 3, 64)
}

func decode(data map[string]string) (delivery.Estimate, bool) {
	km, err := strconv.ParseFloat(data["distance_km"], 64)
	if err != nil {
		return delivery.Estimate{}, false
	}
	eta, err := strconv.ParseFloat(data["eta_minutes"], 64)
	if err != nil {
		return delivery.Estimate{}, false
	}
	estimate := delivery.Estimate{DistanceKm: km, EtaMinutes: eta}
	return estimate, estimate.Validate() == nil
}
