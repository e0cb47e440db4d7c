package vocabulary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"terrasync/pkg/platform/sentinel"
)

const snapshotKey = "vocab:snapshot"

// SnapshotCache keeps the assembled vocabulary snapshot in Redis so
// assignment downloads from a fleet of devices do not hit the store each
// time. Misses fall through to the store; the cache is advisory.
type SnapshotCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewSnapshotCache(client redis.Cmdable, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns the cached snapshot or sentinel.ErrNotFound.
func (c *SnapshotCache) Get(ctx context.Context) (*Snapshot, error) {
	raw, err := c.client.Get(ctx, snapshotKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get vocabulary snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal cached snapshot: %w", err)
	}
	return &snap, nil
}

// Put stores the snapshot with the configured TTL.
func (c *SnapshotCache) Put(ctx context.Context, snap *Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache snapshot: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot after a vocabulary change.
func (c *SnapshotCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, snapshotKey).Err(); err != nil {
		return fmt.Errorf("invalidate snapshot: %w", err)
	}
	return nil
}
