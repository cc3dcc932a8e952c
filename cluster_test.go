package medley

import "testing"

func TestDisjointSet_UnionFind(t *testing.T) {
	d := newDisjointSet()
	if d.find(1) != 1 {
		t.Fatalf("expected singleton root to be itself")
	}
	d.union(1, 2)
	if d.find(1) != d.find(2) {
		t.Error("expected 1 and 2 to share a root after union")
	}
	d.union(3, 4)
	if d.find(1) == d.find(3) {
		t.Error("expected {1,2} and {3,4} to remain separate components")
	}
	d.union(2, 3)
	if d.find(1) != d.find(4) {
		t.Error("expected transitive union to merge all four into one component")
	}
}

func TestDisjointSet_IdempotentUnion(t *testing.T) {
	d := newDisjointSet()
	d.union(1, 2)
	root := d.find(1)
	d.union(1, 2)
	if d.find(1) != root || d.find(2) != root {
		t.Error("expected repeated union of already-connected elements to be a no-op")
	}
}

func TestBuildClusters_SimpleGrouping(t *testing.T) {
	// S1: records {1,2} share a fingerprint, {3} is alone.
	pairs := []LookupPair{
		{ID: 1, Hash: 100},
		{ID: 2, Hash: 100},
		{ID: 3, Hash: 200},
	}
	matches, err := BuildClusters(pairs, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	matchingIDOf := map[ID]MatchingID{}
	for _, m := range matches {
		matchingIDOf[m.ID] = m.MatchingID
	}
	if matchingIDOf[1] != matchingIDOf[2] {
		t.Error("expected ids 1 and 2 to share a matching id")
	}
	if matchingIDOf[1] == matchingIDOf[3] {
		t.Error("expected id 3 to have a distinct matching id")
	}
}

func TestBuildClusters_Transitivity(t *testing.T) {
	pairs := []LookupPair{
		{ID: 1, Hash: 100},
		{ID: 2, Hash: 100},
		{ID: 2, Hash: 200},
		{ID: 3, Hash: 200},
	}
	matches, err := BuildClusters(pairs, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matchingIDOf := map[ID]MatchingID{}
	for _, m := range matches {
		matchingIDOf[m.ID] = m.MatchingID
	}
	if matchingIDOf[1] != matchingIDOf[2] || matchingIDOf[2] != matchingIDOf[3] {
		t.Error("expected 1, 2 and 3 to end up in the same cluster via the shared id 2")
	}
}

func TestBuildClusters_DenseNumberingStable(t *testing.T) {
	pairs := []LookupPair{
		{ID: 10, Hash: 1},
		{ID: 20, Hash: 1},
	}
	m1, err := BuildClusters(pairs, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m2, err := BuildClusters(pairs, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m1) != len(m2) {
		t.Fatalf("expected same output size across rebuilds, got %d vs %d", len(m1), len(m2))
	}
	for i := range m1 {
		if m1[i] != m2[i] {
			t.Errorf("expected identical rebuild at index %d, got %+v vs %+v", i, m1[i], m2[i])
		}
	}
}

func TestBuildClusters_LargePathMatchesSmallPath(t *testing.T) {
	// Force the large/distributed-shaped path with threshold=1 and
	// compare against the default small path on the same input.
	pairs := []LookupPair{
		{ID: 1, Hash: 100},
		{ID: 2, Hash: 100},
		{ID: 3, Hash: 200},
		{ID: 2, Hash: 300},
		{ID: 4, Hash: 300},
	}
	small, err := BuildClusters(pairs, 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error (small path): %v", err)
	}
	large, err := BuildClusters(pairs, 1)
	if err != nil {
		t.Fatalf("unexpected error (large path): %v", err)
	}
	if len(small) != len(large) {
		t.Fatalf("expected equal output size, got %d vs %d", len(small), len(large))
	}
	for i := range small {
		if small[i] != large[i] {
			t.Errorf("expected identical assignment at index %d, got %+v vs %+v", i, small[i], large[i])
		}
	}
}

func TestBuildClusters_LargePathUnifiesConvergingChains(t *testing.T) {
	// id 5 is the upper endpoint of two edges from different lower ids:
	// fingerprint h1 shared by {1,5}, fingerprint h2 shared by {2,5}. 1, 2
	// and 5 are transitively one cluster even though no fingerprint
	// directly relates 1 and 2.
	pairs := []LookupPair{
		{ID: 1, Hash: 1},
		{ID: 5, Hash: 1},
		{ID: 2, Hash: 2},
		{ID: 5, Hash: 2},
	}
	small, err := BuildClusters(pairs, 1_000_000)
	if err != nil {
		t.Fatalf("unexpected error (small path): %v", err)
	}
	large, err := BuildClusters(pairs, 1)
	if err != nil {
		t.Fatalf("unexpected error (large path): %v", err)
	}
	if len(small) != len(large) {
		t.Fatalf("expected equal output size, got %d vs %d", len(small), len(large))
	}
	for i := range small {
		if small[i] != large[i] {
			t.Errorf("expected identical assignment at index %d, got %+v vs %+v", i, small[i], large[i])
		}
	}

	matchingIDOf := map[ID]MatchingID{}
	for _, m := range large {
		matchingIDOf[m.ID] = m.MatchingID
	}
	if matchingIDOf[1] != matchingIDOf[2] || matchingIDOf[2] != matchingIDOf[5] {
		t.Errorf("expected ids 1, 2 and 5 to share one matching id, got %+v", matchingIDOf)
	}
}

func TestBuildClusters_SingletonGetsOwnMatchingID(t *testing.T) {
	pairs := []LookupPair{{ID: 1, Hash: 100}}
	matches, err := BuildClusters(pairs, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly 1 matching pair, got %d", len(matches))
	}
	if matches[0].ID != 1 {
		t.Errorf("expected id 1, got %+v", matches[0])
	}
}
