package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/lychee-technology/tempora"
)

// PlanCacheKey is the §4.10 cache key tuple: everything about a merge call
// that determines the shape of the generated plan SQL, independent of the
// actual row values being merged.
type PlanCacheKey struct {
	TargetSchema     string
	TargetTable      string
	IdentityColumns  []string
	EphemeralColumns []string
	Mode             tempora.MergeMode
	EraName          string
	RowIDColumn      string
	FoundingIDColumn string
	RangeConstructor string
	DeleteMode       tempora.DeleteMode
	LookupKeys       [][]string
	LogTrace         bool
}

// String renders a stable, deterministic cache key string.
func (k PlanCacheKey) String() string {
	b, _ := json.Marshal(k)
	return string(b)
}

// CachedPlanEntry is what an L1/L2 hit returns: the column signature the
// entry was computed against, and opaque plan payload the caller produced
// (e.g. rendered SQL templates, column-binding metadata).
type CachedPlanEntry struct {
	SourceColumnsHash string
	Payload           []byte
}

// planCache is the per-process L1 cache: unbounded within a session,
// cleared when the process/session ends. Mirrors the teacher's
// RWMutex-guarded lazy-load-on-miss cache shape.
type planCache struct {
	mu      sync.RWMutex
	entries map[string]CachedPlanEntry
}

func newPlanCache() *planCache {
	return &planCache{entries: make(map[string]CachedPlanEntry)}
}

func (c *planCache) get(key PlanCacheKey, sourceColumnsHash string) (CachedPlanEntry, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key.String()]
	c.mu.RUnlock()
	if !ok || entry.SourceColumnsHash != sourceColumnsHash {
		return CachedPlanEntry{}, false
	}
	return entry, true
}

func (c *planCache) put(key PlanCacheKey, entry CachedPlanEntry) {
	c.mu.Lock()
	c.entries[key.String()] = entry
	c.mu.Unlock()
}

func (c *planCache) invalidateTable(schema, table string) {
	prefix := fmt.Sprintf(`"TargetSchema":"%s","TargetTable":"%s"`, schema, table)
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.Contains(k, prefix) {
			delete(c.entries, k)
		}
	}
}

// HashSourceColumns builds the comparable column-signature hash used to
// detect a stale L1/L2 entry after a source-table schema change: sorted
// "name:type" pairs, sha256-hashed.
func HashSourceColumns(columns map[string]string) string {
	names := make([]string, 0, len(columns))
	for n := range columns {
		names = append(names, n)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, n := range names {
		h.Write([]byte(n))
		h.Write([]byte{0})
		h.Write([]byte(columns[n]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
