package match

import (
	"regexp"
	"strings"
)

var (
	plusBeforeDigit = regexp.MustCompile(`\+(\d)`)
	bracketChars    = regexp.MustCompile(`[\[\]]`)
	pipeAlternate   = regexp.MustCompile(`\|\S*`)
	// Matches signed integers and decimals, and pre-templated "#" placeholders
	// as they appear in the upstream stat dataset, so "+#" and "+12" collapse
	// onto the same key.
	numericRun    = regexp.MustCompile(`[-+]?(?:\d+(?:\.\d+)?|#)`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// fillerPrefixes are stripped at most once each, in order.
var fillerPrefixes = []string{"adds ", "gain ", "you "}

const implicitSuffix = "(implicit)"

// NormalizeStat reduces a raw stat line to its canonical comparison key.
// The transformation order is load-bearing: the exact-match map and the fuzzy
// index corpus are both keyed on this exact output.
func NormalizeStat(input string) string {
	s := strings.ToLower(input)
	s = plusBeforeDigit.ReplaceAllString(s, "$1")
	s = bracketChars.ReplaceAllString(s, "")
	s = pipeAlternate.ReplaceAllString(s, "")
	s = numericRun.ReplaceAllString(s, "#")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	for _, prefix := range fillerPrefixes {
		s = strings.TrimPrefix(s, prefix)
	}

	s = strings.TrimSuffix(s, implicitSuffix)
	return strings.TrimSpace(s)
}
