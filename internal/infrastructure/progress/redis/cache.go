// Package redis implements the advisory progress cache. Entries expire on
// their own; a missing or unreadable entry is treated as a cache miss, never
// as a pipeline error.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

const keyPrefix = "evidence_progress:"

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(addr, password string, db int, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		ttl: ttl,
	}
}

func (c *Cache) Set(ctx context.Context, progress domain.Progress) error {
	payload, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+progress.EvidenceID, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set progress: %w", err)
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, evidenceID string) (domain.Progress, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+evidenceID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Progress{}, false, nil
		}
		return domain.Progress{}, false, fmt.Errorf("get progress: %w", err)
	}

	var progress domain.Progress
	if err := json.Unmarshal(raw, &progress); err != nil {
		// A corrupt entry is as good as no entry.
		return domain.Progress{}, false, nil
	}
	return progress, true, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
