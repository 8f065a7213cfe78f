package internal

import (
	"testing"

	"github.com/lychee-technology/tempora"
)

func testCacheKey(table string) PlanCacheKey {
	return PlanCacheKey{
		TargetSchema:    "public",
		TargetTable:     table,
		IdentityColumns: []string{"employee_id"},
		Mode:            tempora.ModeMergeEntityUpsert,
		EraName:         "valid",
	}
}

func TestPlanCacheGetMissWhenEmpty(t *testing.T) {
	c := newPlanCache()
	_, ok := c.get(testCacheKey("employees"), "hash-1")
	if ok {
		t.Fatalf("expected a miss on an empty cache")
	}
}

func TestPlanCachePutThenGet(t *testing.T) {
	c := newPlanCache()
	key := testCacheKey("employees")
	c.put(key, CachedPlanEntry{SourceColumnsHash: "hash-1", Payload: []byte("plan-sql")})

	entry, ok := c.get(key, "hash-1")
	if !ok {
		t.Fatalf("expected a hit after put")
	}
	if string(entry.Payload) != "plan-sql" {
		t.Fatalf("expected payload 'plan-sql', got %q", entry.Payload)
	}
}

func TestPlanCacheMissOnColumnSignatureChange(t *testing.T) {
	c := newPlanCache()
	key := testCacheKey("employees")
	c.put(key, CachedPlanEntry{SourceColumnsHash: "hash-1", Payload: []byte("plan-sql")})

	_, ok := c.get(key, "hash-2")
	if ok {
		t.Fatalf("expected a miss after the source column signature changed")
	}
}

func TestPlanCacheInvalidateTable(t *testing.T) {
	c := newPlanCache()
	keyA := testCacheKey("employees")
	keyB := testCacheKey("departments")
	c.put(keyA, CachedPlanEntry{SourceColumnsHash: "hash-1", Payload: []byte("a")})
	c.put(keyB, CachedPlanEntry{SourceColumnsHash: "hash-1", Payload: []byte("b")})

	c.invalidateTable("public", "employees")

	if _, ok := c.get(keyA, "hash-1"); ok {
		t.Fatalf("expected invalidated table's entry to be gone")
	}
	if _, ok := c.get(keyB, "hash-1"); !ok {
		t.Fatalf("expected unrelated table's entry to survive invalidation")
	}
}

func TestHashSourceColumnsIsOrderIndependent(t *testing.T) {
	a := HashSourceColumns(map[string]string{"name": "text", "age": "int"})
	b := HashSourceColumns(map[string]string{"age": "int", "name": "text"})
	if a != b {
		t.Fatalf("expected column signature hash to be insertion-order independent, got %q vs %q", a, b)
	}
}

func TestHashSourceColumnsDiffersOnTypeChange(t *testing.T) {
	a := HashSourceColumns(map[string]string{"age": "int"})
	b := HashSourceColumns(map[string]string{"age": "bigint"})
	if a == b {
		t.Fatalf("expected hash to change when a column's type changes")
	}
}
