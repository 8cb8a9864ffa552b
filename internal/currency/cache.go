package currency

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Date selects the day a rate is quoted for: Latest or a YYYY-MM-DD day.
type Date string

// Latest requests the most recent published rate.
const Latest Date = "latest"

// On returns the Date for the calendar day of t.
func On(t time.Time) Date { return Date(t.Format(time.DateOnly)) }

// Key identifies a memoized rate. Two lookups with equal keys always yield
// the same result.
type Key struct {
	From       string
	To         string
	Date       Date
	HasDefault bool
	Default    float64
}

// NewKey builds a Key with normalized currency codes.
func NewKey(from, to string, on Date, def *float64) Key {
	k := Key{
		From: normalizeCode(from),
		To:   normalizeCode(to),
		Date: on,
	}
	if def != nil {
		k.HasDefault, k.Default = true, *def
	}
	return k
}

func (k Key) String() string {
	def := "-"
	if k.HasDefault {
		def = strconv.FormatFloat(k.Default, 'g', -1, 64)
	}
	return fmt.Sprintf("%s:%s:%s:%s", k.From, k.To, k.Date, def)
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}

// Cache memoizes resolved rates. Entries never expire.
type Cache interface {
	Get(ctx context.Context, k Key) (rate float64, ok bool, err error)
	Set(ctx context.Context, k Key, rate float64) error
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	rates map[Key]float64
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{rates: make(map[Key]float64)}
}

func (c *MemoryCache) Get(_ context.Context, k Key) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rates[k]
	return r, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, k Key, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rates[k] = rate
	return nil
}

// Len returns the number of memoized rates.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rates)
}
