package match

import (
	"math"
	"strings"
	"sync"
)

// Entry is one searchable corpus item.
type Entry struct {
	ID   string
	Text string
}

// Result is the best candidate for a query together with its distance score.
// Lower scores are closer; 0 is an exact normalized match.
type Result struct {
	ID    string
	Text  string
	Score float64
}

// Index provides exact and fuzzy lookup over a normalized corpus.
// The corpus text is normalized with NormalizeStat so that queries normalized
// the same way compare on identical keys.
type Index struct {
	entries    []Entry
	normalized []string
	exact      map[string]int

	minQueryLen int

	cacheMu sync.RWMutex
	cache   map[string]cacheEntry
}

type cacheEntry struct {
	result Result
	found  bool
}

// NewIndex builds an index over the supplied entries.
func NewIndex(entries []Entry) *Index {
	ix := &Index{
		entries:     entries,
		normalized:  make([]string, len(entries)),
		exact:       make(map[string]int, len(entries)),
		minQueryLen: 2,
		cache:       make(map[string]cacheEntry),
	}
	for i, entry := range entries {
		key := NormalizeStat(entry.Text)
		ix.normalized[i] = key
		if _, ok := ix.exact[key]; !ok {
			ix.exact[key] = i
		}
	}
	return ix
}

// Len returns the corpus size.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.entries)
}

// ExactMatch looks up an entry whose normalized text equals the supplied
// normalized query.
func (ix *Index) ExactMatch(normalizedQuery string) (Entry, bool) {
	if ix == nil {
		return Entry{}, false
	}
	idx, ok := ix.exact[normalizedQuery]
	if !ok {
		return Entry{}, false
	}
	return ix.entries[idx], true
}

// Search returns the closest corpus entry for the supplied normalized query.
// The caller decides whether the score is acceptable.
func (ix *Index) Search(normalizedQuery string) (Result, bool) {
	if ix == nil || len(ix.entries) == 0 {
		return Result{}, false
	}
	query := strings.TrimSpace(normalizedQuery)
	if len([]rune(query)) < ix.minQueryLen {
		return Result{}, false
	}

	if cached, ok := ix.lookupCache(query); ok {
		return cached.result, cached.found
	}

	best := Result{Score: math.Inf(1)}
	found := false
	for i, candidate := range ix.normalized {
		score := 1 - similarity(query, candidate)
		if score < best.Score {
			best = Result{ID: ix.entries[i].ID, Text: ix.entries[i].Text, Score: score}
			found = true
			if score == 0 {
				break
			}
		}
	}

	ix.storeCache(query, cacheEntry{result: best, found: found})
	if !found {
		return Result{}, false
	}
	return best, true
}

func (ix *Index) lookupCache(key string) (cacheEntry, bool) {
	ix.cacheMu.RLock()
	defer ix.cacheMu.RUnlock()
	entry, ok := ix.cache[key]
	return entry, ok
}

func (ix *Index) storeCache(key string, entry cacheEntry) {
	ix.cacheMu.Lock()
	ix.cache[key] = entry
	ix.cacheMu.Unlock()
}

func similarity(a, b string) float64 {
	aRunes := []rune(a)
	bRunes := []rune(b)
	if len(aRunes) == 0 && len(bRunes) == 0 {
		return 1
	}
	if len(aRunes) == 0 || len(bRunes) == 0 {
		return 0
	}

	dist := levenshtein(aRunes, bRunes)
	maxLen := math.Max(float64(len(aRunes)), float64(len(bRunes)))
	if maxLen == 0 {
		return 1
	}

	score := 1 - float64(dist)/maxLen
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func levenshtein(a, b []rune) int {
	rows := len(a) + 1
	cols := len(b) + 1

	dp := make([]int, rows*cols)

	index := func(r, c int) int {
		return r*cols + c
	}

	for r := 0; r < rows; r++ {
		dp[index(r, 0)] = r
	}
	for c := 0; c < cols; c++ {
		dp[index(0, c)] = c
	}

	for r := 1; r < rows; r++ {
		for c := 1; c < cols; c++ {
			cost := 0
			if a[r-1] != b[c-1] {
				cost = 1
			}
			deletion := dp[index(r-1, c)] + 1
			insertion := dp[index(r, c-1)] + 1
			substitution := dp[index(r-1, c-1)] + cost
			dp[index(r, c)] = minInt(deletion, insertion, substitution)
		}
	}

	return dp[index(rows-1, cols-1)]
}

func minInt(values ...int) int {
	if len(values) == 0 {
		return 0
	}
	min := values[0]
	for _, v := range values[1:] {
		if v < min {
			min = v
		}
	}
	return min
}
