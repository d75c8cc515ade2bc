package match

import "testing"

func TestNormalizeStat(t *testing.T) {
	testCases := []struct {
		name   string
		input  string
		expect string
	}{
		{"plain numeric range", "+12 to 34 Life", "# to # life"},
		{"different numbers share key", "+56 to 78 Life", "# to # life"},
		{"decimal and sign", "Regenerate 1.5 Life per second", "regenerate # life per second"},
		{"bracket hints removed", "[Spell|Spells] Damage", "spell damage"},
		{"adds prefix stripped once", "Adds 12 to 34 Physical Damage", "# to # physical damage"},
		{"gain prefix stripped", "Gain 5 Life per Enemy Killed", "# life per enemy killed"},
		{"you prefix stripped", "You take 20% reduced Extra Damage", "take #% reduced extra damage"},
		{"implicit marker stripped", "+20 to maximum Life (implicit)", "# to maximum life"},
		{"implicit marker case insensitive", "+20 to maximum Life (IMPLICIT)", "# to maximum life"},
		{"plus kept away from digits", "Gems are Supported by + Level", "gems are supported by + level"},
		{"whitespace collapsed", "  10   to  20   Cold  Damage ", "# to # cold damage"},
		{"empty input", "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeStat(tc.input)
			if got != tc.expect {
				t.Fatalf("expected %q got %q", tc.expect, got)
			}
		})
	}
}

func TestNormalizeStatIdempotent(t *testing.T) {
	inputs := []string{
		"+12 to 34 Life",
		"Adds 1 to 56 Lightning Damage to Attacks",
		"[Critical|Critical Hit] Chance (implicit)",
		"Recover 4% of Life on Kill",
	}
	for _, input := range inputs {
		once := NormalizeStat(input)
		twice := NormalizeStat(once)
		if once != twice {
			t.Fatalf("normalize not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}
