// Package item parses pasted trade item text into structured fields using
// the positional and prefix heuristics of the known item-text format.
package item

import (
	"regexp"
	"strconv"
	"strings"
)

// ParsedItem is the structured view of one pasted item. Absent fields stay
// empty; absence is expected, not an error.
type ParsedItem struct {
	ItemClass string
	ItemLevel int
	HasLevel  bool
	Rarity    string
	Name      string
	BaseType  string
	Stats     []string
}

var (
	firstInteger = regexp.MustCompile(`\d+`)
	firstNumber  = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
)

// statKeywords mark lines that carry a searchable modifier even without a
// digit ("Recover" covers percent-less recovery mods).
var statKeywords = []string{"to ", "increased ", "reduced ", "Recover"}

func isSeparator(line string) bool {
	if len(line) < 3 {
		return false
	}
	for _, r := range line {
		if r != '-' {
			return false
		}
	}
	return true
}

func looksLikeStat(line string) bool {
	if strings.ContainsAny(line, "0123456789") {
		return true
	}
	for _, keyword := range statKeywords {
		if strings.Contains(line, keyword) {
			return true
		}
	}
	return false
}

// Parse classifies the lines of pasted item text. It is pure and total:
// malformed input yields a partially filled ParsedItem, never an error.
func Parse(rawText string) ParsedItem {
	var parsed ParsedItem

	var lines []string
	for _, line := range strings.Split(rawText, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	separatorSeen := false
	for i := 0; i < len(lines); i++ {
		line := lines[i]

		switch {
		case strings.HasPrefix(line, "Item Class:"):
			parsed.ItemClass = strings.TrimSpace(strings.TrimPrefix(line, "Item Class:"))
			continue
		case strings.HasPrefix(line, "Item Level:"):
			if digits := firstInteger.FindString(line); digits != "" {
				if level, err := strconv.Atoi(digits); err == nil {
					parsed.ItemLevel = level
					parsed.HasLevel = true
				}
			}
			continue
		case strings.HasPrefix(line, "Rarity:"):
			parsed.Rarity = strings.TrimSpace(strings.TrimPrefix(line, "Rarity:"))
			// Unique items name themselves on the next two lines.
			if parsed.Rarity == "Unique" && i+2 < len(lines) {
				parsed.Name = lines[i+1]
				parsed.BaseType = lines[i+2]
				i += 2
			}
			continue
		}

		if isSeparator(line) {
			separatorSeen = true
			continue
		}

		// Between the item level and the first separator sits the
		// requirements block, which carries no searchable mods.
		if parsed.HasLevel && !separatorSeen {
			continue
		}

		if separatorSeen && looksLikeStat(line) {
			parsed.Stats = append(parsed.Stats, line)
		}
	}

	return parsed
}

// FirstNumber extracts the leading numeric value of a stat line, or 0 when
// the line carries none.
func FirstNumber(line string) float64 {
	value := firstNumber.FindString(line)
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(strings.TrimPrefix(value, "+"), 64)
	if err != nil {
		return 0
	}
	return parsed
}
