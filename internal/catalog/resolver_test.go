package catalog

import (
	"testing"
	"time"
)

func snapshotForTest(t *testing.T, groups []statGroup) *Snapshot {
	t.Helper()
	snapshot, err := buildSnapshot(nil, groups, time.Now(), false)
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	return snapshot
}

func cacheWithSnapshot(snapshot *Snapshot) *Cache {
	cache := NewCache(nil, nil, time.Minute)
	cache.snapshot = snapshot
	return cache
}

func testGroups() []statGroup {
	return []statGroup{
		{Label: "Explicit", Entries: []statEntry{
			{ID: "explicit.stat_life", Text: "+# to maximum Life"},
			{ID: "explicit.stat_es", Text: "+# to maximum Energy Shield"},
			{ID: "explicit.stat_move", Text: "#% increased Movement Speed"},
		}},
		{Label: "Implicit", Entries: []statEntry{
			{ID: "implicit.stat_life", Text: "+# to maximum Life"},
			{ID: "implicit.stat_res", Text: "+#% to all Elemental Resistances"},
		}},
	}
}

func TestResolveExactMatchPrecedence(t *testing.T) {
	cache := cacheWithSnapshot(snapshotForTest(t, testGroups()))
	resolver := NewResolver(cache, 0.7)

	id, ok := resolver.Resolve("+120 to maximum Life")
	if !ok {
		t.Fatalf("expected resolution")
	}
	if id != "explicit.stat_life" {
		t.Fatalf("expected explicit life id got %q", id)
	}
}

func TestResolveImplicitPoolConfinement(t *testing.T) {
	cache := cacheWithSnapshot(snapshotForTest(t, testGroups()))
	resolver := NewResolver(cache, 0.7)

	testCases := []struct {
		name string
		line string
		want string
	}{
		{"implicit exact", "+20 to maximum Life (implicit)", "implicit.stat_life"},
		{"implicit fuzzy", "+12% to all Elemental Resistance (implicit)", "implicit.stat_res"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := resolver.Resolve(tc.line)
			if !ok {
				t.Fatalf("expected resolution for %q", tc.line)
			}
			if id != tc.want {
				t.Fatalf("expected %q got %q", tc.want, id)
			}
		})
	}
}

func TestResolveFuzzyBelowThreshold(t *testing.T) {
	cache := cacheWithSnapshot(snapshotForTest(t, testGroups()))
	resolver := NewResolver(cache, 0.7)

	id, ok := resolver.Resolve("15% increased Movment Speed")
	if !ok {
		t.Fatalf("expected fuzzy resolution for a near miss")
	}
	if id != "explicit.stat_move" {
		t.Fatalf("expected movement speed id got %q", id)
	}
}

func TestResolveRejectsDistantText(t *testing.T) {
	cache := cacheWithSnapshot(snapshotForTest(t, testGroups()))
	resolver := NewResolver(cache, 0.7)

	if id, ok := resolver.Resolve("Corrupted"); ok {
		t.Fatalf("expected no match for flavor text, got %q", id)
	}
}

func TestResolveWithoutCatalog(t *testing.T) {
	resolver := NewResolver(NewCache(nil, nil, time.Minute), 0.7)
	if id, ok := resolver.Resolve("+20 to maximum Life"); ok {
		t.Fatalf("expected no match before catalog load, got %q", id)
	}
}
