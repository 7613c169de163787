// Package cache keeps computed KPI snapshots in Redis keyed by version.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/kpi"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when no snapshot is cached for a version.
var ErrMiss = errors.New("kpi cache miss")

const keyPrefix = "portfolio:kpi:"

// KPICache stores KPI snapshots. Completed versions are immutable, so
// entries never need invalidation; the TTL only bounds memory.
type KPICache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisClient opens a client for the given address.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// NewKPICache wraps a redis client.
func NewKPICache(rdb *redis.Client, ttl time.Duration) *KPICache {
	return &KPICache{rdb: rdb, ttl: ttl}
}

func key(versionID uuid.UUID) string {
	return keyPrefix + versionID.String()
}

// Get returns the cached snapshot of a version or ErrMiss.
func (c *KPICache) Get(ctx context.Context, versionID uuid.UUID) (kpi.Snapshot, error) {
	payload, err := c.rdb.Get(ctx, key(versionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return kpi.Snapshot{}, ErrMiss
	}
	if err != nil {
		return kpi.Snapshot{}, fmt.Errorf("failed to read kpi cache: %w", err)
	}

	var snapshot kpi.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return kpi.Snapshot{}, fmt.Errorf("failed to decode cached kpis: %w", err)
	}
	return snapshot, nil
}

// Set caches the snapshot of a version.
func (c *KPICache) Set(ctx context.Context, versionID uuid.UUID, snapshot kpi.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode kpis: %w", err)
	}
	if err := c.rdb.Set(ctx, key(versionID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write kpi cache: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (c *KPICache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (c *KPICache) Close() error {
	return c.rdb.Close()
}
