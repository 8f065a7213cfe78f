package internal

import (
	"testing"

	"github.com/lychee-technology/tempora"
)

func testEra() *tempora.EraDescriptor {
	return &tempora.EraDescriptor{
		Schema:     "public",
		Table:      "employees",
		EraName:    "valid",
		Identity:   []string{"employee_id"},
		Domain:     tempora.RangeDomainBigint,
		ValidFrom:  "valid_from",
		ValidUntil: "valid_until",
		Ephemeral:  []string{"updated_at"},
	}
}

func TestReduceLastRowWins(t *testing.T) {
	rows := []tempora.SourceRow{
		{RowID: 1, Payload: map[string]any{"name": "Alex", "dept": "sales"}},
		{RowID: 2, Payload: map[string]any{"name": "Alexandra"}},
	}

	got := reduce(testEra(), rows)

	if got["name"] != "Alexandra" {
		t.Fatalf("expected last row to win for 'name', got %v", got["name"])
	}
	if got["dept"] != "sales" {
		t.Fatalf("expected 'dept' preserved from earlier row, got %v", got["dept"])
	}
}

func TestReduceDropsEphemeralColumns(t *testing.T) {
	rows := []tempora.SourceRow{
		{RowID: 1, Payload: map[string]any{"name": "Alex", "updated_at": "2024-01-01"}},
	}

	got := reduce(testEra(), rows)

	if _, ok := got["updated_at"]; ok {
		t.Fatalf("expected ephemeral column to be dropped, got %+v", got)
	}
}

func TestReduceIgnoringNullPreservesEarlierValue(t *testing.T) {
	rows := []tempora.SourceRow{
		{RowID: 1, Payload: map[string]any{"name": "Alex"}},
		{RowID: 2, Payload: map[string]any{"name": nil}},
	}

	got := reduceIgnoringNull(testEra(), rows)
	if got["name"] != "Alex" {
		t.Fatalf("expected null to leave earlier value intact, got %v", got["name"])
	}

	plain := reduce(testEra(), rows)
	if plain["name"] != nil {
		t.Fatalf("expected plain reduce to let a later explicit nil win, got %v", plain["name"])
	}
}

func TestApplyOverride(t *testing.T) {
	target := map[string]any{"name": "Alex", "dept": "sales"}
	patch := map[string]any{"dept": "engineering", "title": nil}

	full := applyOverride(target, patch, false)
	if full["dept"] != "engineering" || full["title"] != nil {
		t.Fatalf("expected full override to clear and set columns, got %+v", full)
	}

	patchOnly := applyOverride(target, patch, true)
	if patchOnly["dept"] != "engineering" {
		t.Fatalf("expected patch override to still apply non-null columns, got %+v", patchOnly)
	}
	if _, ok := patchOnly["title"]; ok {
		t.Fatalf("expected patch override to skip a nil patch value, got %+v", patchOnly)
	}
}

func TestPayloadEqualsIgnoresEphemeralColumns(t *testing.T) {
	era := testEra()
	a := map[string]any{"name": "Alex", "updated_at": "2024-01-01"}
	b := map[string]any{"name": "Alex", "updated_at": "2024-06-01"}

	if !PayloadEquals(era, a, b) {
		t.Fatalf("expected payloads to be equal ignoring the ephemeral column")
	}

	c := map[string]any{"name": "Alexandra", "updated_at": "2024-01-01"}
	if PayloadEquals(era, a, c) {
		t.Fatalf("expected payloads to differ on a non-ephemeral column")
	}
}
