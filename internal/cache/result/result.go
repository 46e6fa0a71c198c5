// Package result implements the content-addressed result cache: a
// versioned, TTL-bound store keyed by the commit range and the subset of
// configuration that can change which findings a review produces.
package result

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/mprcore/reviewd/internal/cache/filecache"
	"github.com/mprcore/reviewd/internal/domain"
)

// CacheVersion is bumped whenever a new toggle is added to RelevantConfig,
// invalidating every previously written envelope.
const CacheVersion = 1

// DefaultTTL is how long a cached result remains usable.
const DefaultTTL = 24 * time.Hour

// RelevantConfig enumerates exactly the toggles that can change which
// findings a review run produces. Anything not listed here must not be
// folded into the cache key: a config change that can't affect findings
// shouldn't invalidate the cache.
type RelevantConfig struct {
	EnableASTAnalysis     bool              `json:"enableAstAnalysis"`
	EnableSecurity        bool              `json:"enableSecurity"`
	EnableTestHints       bool              `json:"enableTestHints"`
	EnableAIDetection     bool              `json:"enableAiDetection"`
	GraphEnabled          bool              `json:"graphEnabled"`
	GraphMaxDepth         int               `json:"graphMaxDepth"`
	TrivialPatterns       []string          `json:"trivialPatterns"`
	InlineMinSeverity     string            `json:"inlineMinSeverity"`
	InlineMinAgreement    int               `json:"inlineMinAgreement"`
	PathBasedIntensity    bool              `json:"pathBasedIntensity"`
	PathIntensityPatterns map[string]string `json:"pathIntensityPatterns"`
	PathDefaultIntensity  string            `json:"pathDefaultIntensity"`
}

// Data is the cached payload: the findings produced by the run, plus the
// wall-clock time they were produced (redundant with the envelope
// timestamp but part of the spec's documented shape).
type Data struct {
	Findings  []domain.Finding `json:"findings"`
	Timestamp int64            `json:"timestamp"`
}

// Store is the result cache: a filecache.Store specialized to Data.
type Store struct {
	inner *filecache.Store[Data]
}

// New creates a result cache store rooted at dir.
func New(dir string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{inner: filecache.New[Data](dir, CacheVersion, ttl)}
}

// Key computes the content-addressed cache key for a commit range and
// relevant configuration: "mpr-" + sha1(base:head)[:12], with a
// "-"+configHash suffix when cfg is non-nil.
func Key(baseSHA, headSHA string, cfg *RelevantConfig) string {
	sum := sha1.Sum([]byte(baseSHA + ":" + headSHA))
	key := "mpr-" + hex.EncodeToString(sum[:])[:12]
	if cfg != nil {
		key += "-" + ConfigHash(*cfg)
	}
	return key
}

// ConfigHash returns the first 16 hex characters of sha256(stableJSON(cfg)).
// Because stableJSON sorts object keys recursively, the hash is invariant
// under permutation of object keys in cfg.
func ConfigHash(cfg RelevantConfig) string {
	stable := stableJSON(cfg)
	sum := sha256.Sum256([]byte(stable))
	return hex.EncodeToString(sum[:])[:16]
}

// stableJSON marshals v to JSON with every object's keys sorted
// recursively, so semantically-identical configs always hash the same.
func stableJSON(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return string(raw)
	}

	var buf []byte
	buf = appendStable(buf, generic)
	return string(buf)
}

func appendStable(buf []byte, v interface{}) []byte {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf = append(buf, '{')
		for i, k := range keys {
			if i > 0 {
				buf = append(buf, ',')
			}
			keyJSON, _ := json.Marshal(k)
			buf = append(buf, keyJSON...)
			buf = append(buf, ':')
			buf = appendStable(buf, val[k])
		}
		buf = append(buf, '}')
	case []interface{}:
		buf = append(buf, '[')
		for i, item := range val {
			if i > 0 {
				buf = append(buf, ',')
			}
			buf = appendStable(buf, item)
		}
		buf = append(buf, ']')
	default:
		itemJSON, _ := json.Marshal(val)
		buf = append(buf, itemJSON...)
	}
	return buf
}

// Get returns the cached findings for key, or a miss.
func (s *Store) Get(key string) ([]domain.Finding, bool) {
	data, ok := s.inner.Get(key)
	if !ok {
		return nil, false
	}
	return data.Findings, true
}

// Put stores findings under key.
func (s *Store) Put(key string, findings []domain.Finding) error {
	return s.inner.Put(key, Data{Findings: findings, Timestamp: time.Now().UnixMilli()})
}
