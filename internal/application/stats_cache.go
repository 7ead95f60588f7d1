package application

import (
	"sync"
	"time"

	"github.com/printflow/job-lifecycle/internal/domain"
)

// statsCache holds the last department stats for a short TTL. A zero TTL
// disables caching. Every invalidate bumps the generation, and put drops a
// value computed under an older generation.
type statsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	gen     uint64
	value   *domain.DepartmentStats
	expires time.Time
}

func newStatsCache(ttl time.Duration) *statsCache {
	return &statsCache{ttl: ttl}
}

func (c *statsCache) get(now time.Time) (*domain.DepartmentStats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == nil || !now.Before(c.expires) {
		return nil, false
	}
	return c.value, true
}

// generation is read before loading the jobs the stats are computed from
func (c *statsCache) generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *statsCache) put(stats *domain.DepartmentStats, now time.Time, gen uint64) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.value = stats
	c.expires = now.Add(c.ttl)
}

func (c *statsCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.value = nil
}
