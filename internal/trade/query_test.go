package trade

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"trade-companion/backend/internal/item"
)

type mapResolver map[string]string

func (m mapResolver) Resolve(rawLine string) (string, bool) {
	id, ok := m[rawLine]
	return id, ok
}

func TestBuildQueryRareItem(t *testing.T) {
	parsed := item.Parse("Item Class: Boots\nItem Level: 75\nRarity: Rare\n--------\n+20 to maximum Life\n--------")
	resolver := mapResolver{"+20 to maximum Life": "stat123"}

	payload, err := BuildQuery(parsed, resolver, QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.Query.Status.Option != "online" {
		t.Fatalf("expected online status got %q", payload.Query.Status.Option)
	}
	if len(payload.Query.Stats) != 1 || len(payload.Query.Stats[0].Filters) != 1 {
		t.Fatalf("expected one stat group with one filter, got %+v", payload.Query.Stats)
	}
	filter := payload.Query.Stats[0].Filters[0]
	if filter.ID != "stat123" || filter.Value.Min != 20 {
		t.Fatalf("expected stat123 min 20, got %+v", filter)
	}
	if payload.Query.Filter == nil || payload.Query.Filter.TypeFilters.Filters.Category == nil {
		t.Fatalf("expected category filter, got %+v", payload.Query.Filter)
	}
	if got := payload.Query.Filter.TypeFilters.Filters.Category.Option; got != "armour.boots" {
		t.Fatalf("expected armour.boots got %q", got)
	}
	if payload.Sort.Price != "asc" {
		t.Fatalf("expected ascending price sort got %q", payload.Sort.Price)
	}
}

func TestBuildQueryEncodesWireShape(t *testing.T) {
	parsed := item.Parse("Item Class: Boots\nRarity: Rare\n--------\n+20 to maximum Life\n--------")
	resolver := mapResolver{"+20 to maximum Life": "stat123"}

	payload, err := BuildQuery(parsed, resolver, QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	for _, fragment := range []string{
		`"id":"stat123"`,
		`"min":20`,
		`"type":"and"`,
		`"option":"online"`,
	} {
		if !strings.Contains(string(encoded), fragment) {
			t.Fatalf("encoded payload missing %s: %s", fragment, encoded)
		}
	}
}

func TestBuildQueryUniqueSkipsStats(t *testing.T) {
	parsed := item.ParsedItem{
		ItemClass: "Body Armours",
		Rarity:    "Unique",
		Name:      "Tabula Rasa",
		BaseType:  "Simple Robe",
		Stats:     []string{"Socketed Gems have no socket colour requirement"},
	}

	payload, err := BuildQuery(parsed, mapResolver{}, QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if payload.Query.Name != "Tabula Rasa" || payload.Query.Type != "Simple Robe" {
		t.Fatalf("expected exact name/type match, got %+v", payload.Query)
	}
	if len(payload.Query.Stats) != 0 {
		t.Fatalf("unique query must not carry stat filters, got %+v", payload.Query.Stats)
	}
}

func TestBuildQueryDropsUnresolvedStats(t *testing.T) {
	parsed := item.ParsedItem{
		ItemClass: "Rings",
		Rarity:    "Rare",
		Stats: []string{
			"+40 to maximum Life",
			"Completely Made Up Modifier",
			"15% increased Cast Speed",
		},
	}
	resolver := mapResolver{
		"+40 to maximum Life":      "explicit.stat_life",
		"15% increased Cast Speed": "explicit.stat_cast",
	}

	payload, err := BuildQuery(parsed, resolver, QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(payload.Query.Stats[0].Filters); got != 2 {
		t.Fatalf("expected the unresolved line dropped, got %d filters", got)
	}
}

func TestBuildQueryUnsupportedClass(t *testing.T) {
	parsed := item.ParsedItem{ItemClass: "Divination Cards", Rarity: "Normal"}

	_, err := BuildQuery(parsed, mapResolver{}, QueryOptions{})
	if !errors.Is(err, ErrUnsupportedItemClass) {
		t.Fatalf("expected ErrUnsupportedItemClass got %v", err)
	}
}

func TestBuildQueryNoValidStats(t *testing.T) {
	parsed := item.ParsedItem{
		ItemClass: "Boots",
		Rarity:    "Rare",
		Stats:     []string{"Completely Made Up Modifier"},
	}

	_, err := BuildQuery(parsed, mapResolver{}, QueryOptions{})
	if !errors.Is(err, ErrNoValidStats) {
		t.Fatalf("expected ErrNoValidStats got %v", err)
	}
}

func TestBuildQueryItemLevelFilter(t *testing.T) {
	parsed := item.ParsedItem{
		ItemClass: "Boots",
		ItemLevel: 84,
		HasLevel:  true,
		Rarity:    "Rare",
		Stats:     []string{"+20 to maximum Life"},
	}
	resolver := mapResolver{"+20 to maximum Life": "stat123"}

	payload, err := BuildQuery(parsed, resolver, QueryOptions{IncludeItemLevel: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ilvl := payload.Query.Filter.TypeFilters.Filters.ItemLevel
	if ilvl == nil || ilvl.Min != 84 {
		t.Fatalf("expected ilvl min 84, got %+v", ilvl)
	}

	payload, err = BuildQuery(parsed, resolver, QueryOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload.Query.Filter.TypeFilters.Filters.ItemLevel != nil {
		t.Fatalf("item level filter must be opt-in")
	}
}
