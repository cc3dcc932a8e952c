package medley

import (
	"context"
	"errors"
	"testing"
)

func buildTestIndex(t *testing.T, opener *memOpener, records []SourceRecord, plan Plan, maxEditDistance int) {
	t.Helper()
	writer := NewIndexWriter(opener)
	var lookups []LookupPair
	for _, r := range records {
		lookups = append(lookups, HashRecord(r, plan, maxEditDistance)...)
	}
	matches, err := BuildClusters(lookups, 0)
	if err != nil {
		t.Fatalf("build clusters: %v", err)
	}
	if err := writer.PublishAll(context.Background(), testPaths(), lookups, matches); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestQueryEngine_FindRelatedByIds_SelfMatch(t *testing.T) {
	plan, _ := ParsePlan("&fname,lname")
	opener := newMemOpener()
	records := []SourceRecord{
		rec(1, map[string]string{"fname": "Alice", "lname": "Smith"}),
		rec(2, map[string]string{"fname": "Bob", "lname": "Jones"}),
	}
	buildTestIndex(t, opener, records, plan, 0)

	qe, err := NewQueryEngine(opener, 0, 0)
	if err != nil {
		t.Fatalf("new query engine: %v", err)
	}
	rows, _, err := qe.FindRelatedByIds(context.Background(), []ID{1}, testPaths())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	selfFound := false
	for _, r := range rows {
		if r.GivenID == 1 && r.ID == 1 {
			selfFound = true
		}
	}
	if !selfFound {
		t.Error("expected P1 self-match: FindRelatedByIds([1]) must include {1,1}")
	}
}

func TestQueryEngine_FindRelatedByIds_RelatesSharedCluster(t *testing.T) {
	plan, _ := ParsePlan("&fname,lname")
	opener := newMemOpener()
	records := []SourceRecord{
		rec(1, map[string]string{"fname": "Alice", "lname": "Smith"}),
		rec(2, map[string]string{"fname": "Alice", "lname": "Smith"}),
		rec(3, map[string]string{"fname": "Bob", "lname": "Jones"}),
	}
	buildTestIndex(t, opener, records, plan, 0)

	qe, err := NewQueryEngine(opener, 16, 0)
	if err != nil {
		t.Fatalf("new query engine: %v", err)
	}
	rows, _, err := qe.FindRelatedByIds(context.Background(), []ID{1}, testPaths())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	related := map[ID]bool{}
	for _, r := range rows {
		related[r.ID] = true
	}
	if !related[2] {
		t.Error("expected id 2 related to id 1 (same required content)")
	}
	if related[3] {
		t.Error("did not expect id 3 related to id 1 (different required content)")
	}
}

func TestQueryEngine_FindRelatedByExample(t *testing.T) {
	// S6 — query with a partial example record containing only a subset
	// of the indexed fields.
	plan, _ := ParsePlan("&postal;fname;lname;city")
	opener := newMemOpener()
	records := []SourceRecord{
		rec(1, map[string]string{"postal": "00501", "fname": "Alice", "lname": "Smith", "city": "Reno"}),
		rec(2, map[string]string{"postal": "00501", "fname": "Alice", "lname": "Jones", "city": "Austin"}),
		rec(3, map[string]string{"postal": "99999", "fname": "Alice", "lname": "Smith", "city": "Reno"}),
	}
	buildTestIndex(t, opener, records, plan, 0)

	qe, err := NewQueryEngine(opener, 0, 0)
	if err != nil {
		t.Fatalf("new query engine: %v", err)
	}
	example := []SourceRecord{rec(0, map[string]string{"postal": "00501", "fname": "Alice"})}
	ids, _, err := qe.FindRelatedByExample(context.Background(), example, plan, 0, testPaths())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[ID]bool{}
	for _, id := range ids {
		got[id] = true
	}
	if !got[1] || !got[2] {
		t.Errorf("expected ids 1 and 2 (sharing postal+fname) in result, got %v", ids)
	}
	if got[3] {
		t.Errorf("did not expect id 3 (different postal) in result, got %v", ids)
	}
}

func TestQueryEngine_MissingIndex(t *testing.T) {
	opener := newMemOpener()
	qe, err := NewQueryEngine(opener, 0, 0)
	if err != nil {
		t.Fatalf("new query engine: %v", err)
	}
	_, _, err = qe.FindRelatedByIds(context.Background(), []ID{1}, testPaths())
	if !errors.Is(err, ErrMissingIndex) {
		t.Fatalf("expected ErrMissingIndex, got %v", err)
	}
}

func TestQueryEngine_FanoutOverflowIsWarningNotError(t *testing.T) {
	plan, _ := ParsePlan("&fname,lname")
	opener := newMemOpener()
	records := []SourceRecord{
		rec(1, map[string]string{"fname": "Alice", "lname": "Smith"}),
		rec(2, map[string]string{"fname": "Alice", "lname": "Smith"}),
		rec(3, map[string]string{"fname": "Alice", "lname": "Smith"}),
	}
	buildTestIndex(t, opener, records, plan, 0)

	qe, err := NewQueryEngine(opener, 0, 1)
	if err != nil {
		t.Fatalf("new query engine: %v", err)
	}
	_, report, err := qe.FindRelatedByIds(context.Background(), []ID{1}, testPaths())
	if err != nil {
		t.Fatalf("expected fanout overflow to be a warning, not an error: %v", err)
	}
	if len(report.Overflows) == 0 {
		t.Error("expected at least one IndexLookupOverflow warning")
	}
}
