// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"sync"
	"time"
)

// CacheEntry represents a cached value with expiration
type CacheEntry[T any] struct {
	Value      T
	ExpiresAt  time.Time
	LastUpdate time.Time
}

// IsExpired checks if the cache entry has expired at now
func (e *CacheEntry[T]) IsExpired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStats tracks cache performance
type CacheStats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	LastEviction time.Time
}

// TTLCache is a thread-safe keyed cache whose entries expire after a fixed TTL
type TTLCache[T any] struct {
	entries map[string]*CacheEntry[T]
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	stats   CacheStats
}

// NewTTLCache creates a cache with the given TTL (default 5 minutes)
func NewTTLCache[T any](ttl time.Duration) *TTLCache[T] {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TTLCache[T]{
		entries: make(map[string]*CacheEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value for key if present and not expired
func (c *TTLCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok || entry.IsExpired(c.now()) {
		c.stats.Misses++
		var zero T
		return zero, false
	}
	c.stats.Hits++
	return entry.Value, true
}

// Set stores value under key
func (c *TTLCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &CacheEntry[T]{
		Value:      value,
		ExpiresAt:  now.Add(c.ttl),
		LastUpdate: now,
	}
}

// Invalidate removes key
func (c *TTLCache[T]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.recordEviction(1)
	}
}

// InvalidateAll clears the cache
func (c *TTLCache[T]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.entries)
	c.entries = make(map[string]*CacheEntry[T])
	c.recordEviction(n)
}

// CleanupExpired removes expired entries and returns how many were dropped
func (c *TTLCache[T]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if e.IsExpired(now) {
			delete(c.entries, k)
			n++
		}
	}
	c.recordEviction(n)
	return n
}

// Stats returns a snapshot of the cache statistics
func (c *TTLCache[T]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// must hold c.mu
func (c *TTLCache[T]) recordEviction(n int) {
	if n == 0 {
		return
	}
	c.stats.Evictions += int64(n)
	c.stats.LastEviction = c.now()
}
