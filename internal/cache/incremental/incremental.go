// Package incremental tracks, per pull request, the last commit that was
// reviewed, so a subsequent run can review only what changed since then.
package incremental

import (
	"context"
	"fmt"
	"time"

	"github.com/mprcore/reviewd/internal/cache/filecache"
	"github.com/mprcore/reviewd/internal/domain"
)

// CacheVersion is bumped whenever the Record shape changes.
const CacheVersion = 1

// DefaultTTL bounds how long an incremental record is still considered
// recent enough to incrementalize against.
const DefaultTTL = 7 * 24 * time.Hour

// Record is the persisted state for one PR's incremental review history.
type Record struct {
	PRNumber           int              `json:"prNumber"`
	LastReviewedCommit string           `json:"lastReviewedCommit"`
	Timestamp          int64            `json:"timestamp"`
	Findings           []domain.Finding `json:"findings"`
	ReviewSummary      string           `json:"reviewSummary"`
}

// VCS is the collaborator incremental needs to resolve which files changed
// between two commits.
type VCS interface {
	ListChangedFiles(ctx context.Context, fromSHA, toSHA string) ([]string, error)
}

// Store is the incremental-review record store.
type Store struct {
	inner *filecache.Store[Record]
}

// New creates an incremental store rooted at dir. enabledTTL bounds how
// stale a record can be and still count as usable; pass <= 0 for
// DefaultTTL.
func New(dir string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{inner: filecache.New[Record](dir, CacheVersion, ttl)}
}

// Key returns the cache key for a PR number.
func Key(prNumber int) string {
	return fmt.Sprintf("incremental-review-pr-%d", prNumber)
}

// Get returns the stored record for prNumber, or a miss.
func (s *Store) Get(prNumber int) (Record, bool) {
	return s.inner.Get(Key(prNumber))
}

// Put stores rec for its PR number.
func (s *Store) Put(rec Record) error {
	rec.Timestamp = time.Now().UnixMilli()
	return s.inner.Put(Key(rec.PRNumber), rec)
}

// ShouldUseIncremental reports whether an incremental diff should be used
// for pr: incrementalEnabled is true, a stored record exists for this PR,
// the PR's head commit differs from the record's last reviewed commit
// (otherwise there is nothing new to review), and the record is not older
// than cacheTTLDays.
func (s *Store) ShouldUseIncremental(pr domain.PRContext, incrementalEnabled bool, cacheTTLDays int) (Record, bool) {
	if !incrementalEnabled {
		return Record{}, false
	}

	rec, ok := s.Get(pr.Number)
	if !ok {
		return Record{}, false
	}

	if pr.HeadSHA == rec.LastReviewedCommit {
		return Record{}, false
	}

	maxAge := time.Duration(cacheTTLDays) * 24 * time.Hour
	if maxAge > 0 && time.Since(time.UnixMilli(rec.Timestamp)) > maxAge {
		return Record{}, false
	}

	return rec, true
}

// GetChangedFilesSince asks vcs which files changed between sha and
// pr.HeadSHA. On any VCS failure it fails open, returning every file
// already present in pr.Files rather than blocking the review.
func GetChangedFilesSince(ctx context.Context, vcs VCS, pr domain.PRContext, sha string) []string {
	changed, err := vcs.ListChangedFiles(ctx, sha, pr.HeadSHA)
	if err != nil {
		all := make([]string, 0, len(pr.Files))
		for _, f := range pr.Files {
			all = append(all, f.Filename)
		}
		return all
	}
	return changed
}
