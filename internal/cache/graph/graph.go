// Package graph caches a serialized code graph keyed by PR number and head
// commit, so an unchanged PR doesn't re-walk the repository on every run.
package graph

import (
	"fmt"
	"time"

	"github.com/mprcore/reviewd/internal/cache/filecache"
)

// CacheVersion is bumped whenever the serialized graph shape changes.
const CacheVersion = 1

// DefaultTTL is how long a cached graph remains usable.
const DefaultTTL = 24 * time.Hour

// Store caches an opaque serialized graph (internal/codegraph owns the
// actual schema; this package only knows how to key and envelope it).
type Store[T any] struct {
	inner *filecache.Store[T]
}

// New creates a graph cache store rooted at dir.
func New[T any](dir string, ttl time.Duration) *Store[T] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store[T]{inner: filecache.New[T](dir, CacheVersion, ttl)}
}

// Key returns the cache key for a PR number and head commit.
func Key(prNumber int, headSHA string) string {
	return fmt.Sprintf("code-graph-%d-%s", prNumber, headSHA)
}

// Get returns the cached graph for key, or a miss on absent/stale/
// version-mismatched entries.
func (s *Store[T]) Get(key string) (T, bool) {
	return s.inner.Get(key)
}

// Put stores graph under key.
func (s *Store[T]) Put(key string, graph T) error {
	return s.inner.Put(key, graph)
}
