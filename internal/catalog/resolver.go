package catalog

import (
	"strings"

	"github.com/sirupsen/logrus"

	"trade-companion/backend/internal/match"
)

// DefaultFuzzyThreshold is the maximum accepted distance score for a fuzzy
// candidate. The value is a tunable, not a contract.
const DefaultFuzzyThreshold = 0.7

// Resolver maps free-text stat lines to stable catalog identifiers.
type Resolver struct {
	cache     *Cache
	threshold float64
}

// NewResolver constructs a resolver bound to the supplied cache.
func NewResolver(cache *Cache, threshold float64) *Resolver {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	return &Resolver{cache: cache, threshold: threshold}
}

// Threshold reports the configured score ceiling.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve returns the catalog id for a raw stat line, or false when the
// catalog is not loaded or no candidate clears the threshold. "No match" is
// an expected outcome, not an error.
func (r *Resolver) Resolve(rawLine string) (string, bool) {
	if r == nil {
		return "", false
	}
	snapshot := r.cache.Snapshot()
	if snapshot == nil {
		return "", false
	}

	// Implicit-scoped lines search only the implicit pool when one exists.
	index := snapshot.AllIndex
	if containsImplicitMarker(rawLine) && snapshot.ImplicitIndex.Len() > 0 {
		index = snapshot.ImplicitIndex
	}

	normalized := match.NormalizeStat(rawLine)
	if normalized == "" {
		return "", false
	}

	// An exact normalized match is unambiguous and outranks any fuzzy score:
	// normalization is lossy, so fuzzy ranking must not override a confirmed
	// literal candidate.
	if entry, ok := index.ExactMatch(normalized); ok {
		return entry.ID, true
	}

	result, ok := index.Search(normalized)
	if !ok || result.Score >= r.threshold {
		return "", false
	}
	logrus.WithFields(logrus.Fields{
		"line":  rawLine,
		"match": result.Text,
		"score": result.Score,
	}).Debug("fuzzy stat match")
	return result.ID, true
}

func containsImplicitMarker(line string) bool {
	return strings.Contains(strings.ToLower(line), "implicit")
}
