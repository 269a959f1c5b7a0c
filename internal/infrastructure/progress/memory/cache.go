// Package memory is the progress cache used for single-process deployments
// and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

type entry struct {
	progress  domain.Progress
	expiresAt time.Time
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *Cache) Set(_ context.Context, progress domain.Progress) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[progress.EvidenceID] = entry{
		progress:  progress,
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

func (c *Cache) Get(_ context.Context, evidenceID string) (domain.Progress, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[evidenceID]
	if !ok {
		return domain.Progress{}, false, nil
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, evidenceID)
		return domain.Progress{}, false, nil
	}
	return e.progress, true, nil
}
