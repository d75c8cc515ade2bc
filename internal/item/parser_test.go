package item

import (
	"reflect"
	"testing"
)

func TestParseRareBoots(t *testing.T) {
	raw := "Item Class: Boots\nItem Level: 75\nRarity: Rare\n--------\n+20 to maximum Life\n--------"
	parsed := Parse(raw)

	if parsed.ItemClass != "Boots" {
		t.Fatalf("expected item class Boots got %q", parsed.ItemClass)
	}
	if !parsed.HasLevel || parsed.ItemLevel != 75 {
		t.Fatalf("expected item level 75 got %d (has=%v)", parsed.ItemLevel, parsed.HasLevel)
	}
	if parsed.Rarity != "Rare" {
		t.Fatalf("expected rarity Rare got %q", parsed.Rarity)
	}
	if !reflect.DeepEqual(parsed.Stats, []string{"+20 to maximum Life"}) {
		t.Fatalf("expected single life stat got %v", parsed.Stats)
	}
}

func TestParseUniqueNamePositions(t *testing.T) {
	raw := "Item Class: Body Armours\nRarity: Unique\nTabula Rasa\nSimple Robe\n--------\nItem Level: 60\n--------"
	parsed := Parse(raw)

	if parsed.Rarity != "Unique" {
		t.Fatalf("expected rarity Unique got %q", parsed.Rarity)
	}
	if parsed.Name != "Tabula Rasa" {
		t.Fatalf("expected name got %q", parsed.Name)
	}
	if parsed.BaseType != "Simple Robe" {
		t.Fatalf("expected base type got %q", parsed.BaseType)
	}
}

func TestParseSkipsRequirementsBlock(t *testing.T) {
	raw := "Item Class: Gloves\nRarity: Rare\nDoom Grip\nSteel Gauntlets\nItem Level: 81\nRequires Level 62\nStr: 100\n--------\n+35 to maximum Life\n12% increased Attack Speed\n--------\nCorrupted"
	parsed := Parse(raw)

	want := []string{"+35 to maximum Life", "12% increased Attack Speed"}
	if !reflect.DeepEqual(parsed.Stats, want) {
		t.Fatalf("expected %v got %v", want, parsed.Stats)
	}
}

func TestParseFiltersFlavorText(t *testing.T) {
	raw := "Rarity: Rare\n--------\nThe forest whispers softly\nRecover 4% of Life on Kill\n--------"
	parsed := Parse(raw)

	want := []string{"Recover 4% of Life on Kill"}
	if !reflect.DeepEqual(parsed.Stats, want) {
		t.Fatalf("expected %v got %v", want, parsed.Stats)
	}
}

func TestParseEmptyAndMissingFields(t *testing.T) {
	parsed := Parse("")
	if parsed.ItemClass != "" || parsed.HasLevel || len(parsed.Stats) != 0 {
		t.Fatalf("expected zero value for empty input, got %+v", parsed)
	}

	parsed = Parse("Rarity: Unique\nLast Line")
	if parsed.Name != "" || parsed.BaseType != "" {
		t.Fatalf("unique without trailing lines must not capture name/type, got %+v", parsed)
	}
}

func TestFirstNumber(t *testing.T) {
	testCases := []struct {
		line   string
		expect float64
	}{
		{"+20 to maximum Life", 20},
		{"-5 to Mana Cost", -5},
		{"Regenerate 1.5 Life per second", 1.5},
		{"Recover Life on Kill", 0},
	}
	for _, tc := range testCases {
		if got := FirstNumber(tc.line); got != tc.expect {
			t.Fatalf("FirstNumber(%q) = %f, expected %f", tc.line, got, tc.expect)
		}
	}
}
