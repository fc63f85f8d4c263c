package similarity

import (
	"math"
	"sort"
	"strings"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Unicode-aware processing: keep non-ASCII letters, lower-case and strip
// punctuation before scoring.
const (
	forceASCII  = false
	fullProcess = true
)

// Scorer computes fuzzywuzzy-style ratios on a 0-100 scale. An optional
// Metric replaces the edit-distance ratio in Ratio, TokenSortRatio and
// NameRatio; the partial, token-set and weighted ratios always use the
// fuzzywuzzy definitions.
type Scorer struct {
	metric Metric
}

// NewScorer returns a scorer. A nil metric keeps the fuzzywuzzy ratio.
func NewScorer(m Metric) *Scorer {
	return &Scorer{metric: m}
}

// Ratio compares a and b as given. An empty side scores 0.
func (s *Scorer) Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	if s.metric != nil {
		return percent(s.metric(a, b))
	}
	return fuzzy.Ratio(a, b)
}

// PartialRatio scores the best matching substring of the longer string.
func (s *Scorer) PartialRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return fuzzy.PartialRatio(a, b)
}

// TokenSortRatio compares the normalized tokens of a and b in sorted order.
func (s *Scorer) TokenSortRatio(a, b string) int {
	if s.metric != nil {
		return s.Ratio(sortedJoin(tokens(a)), sortedJoin(tokens(b)))
	}
	if Normalize(a) == "" || Normalize(b) == "" {
		return 0
	}
	return fuzzy.TokenSortRatio(a, b, forceASCII, fullProcess)
}

// TokenSetRatio compares the shared tokens of a and b against each side's
// shared-plus-remaining tokens, so a name that contains the other scores high.
func (s *Scorer) TokenSetRatio(a, b string) int {
	if Normalize(a) == "" || Normalize(b) == "" {
		return 0
	}
	return fuzzy.TokenSetRatio(a, b, forceASCII, fullProcess)
}

// WRatio picks the best of the plain, partial and token ratios with the
// fuzzywuzzy length-based scaling.
func (s *Scorer) WRatio(a, b string) int {
	if Normalize(a) == "" || Normalize(b) == "" {
		return 0
	}
	return fuzzy.UWRatio(a, b) // forceASCII=false, fullProcess always on
}

// NameRatio is the ratio used for names: TokenSetRatio, or TokenSortRatio
// under the configured metric.
func (s *Scorer) NameRatio(a, b string) int {
	if s.metric != nil {
		return s.TokenSortRatio(a, b)
	}
	return s.TokenSetRatio(a, b)
}

func percent(v float64) int {
	return int(math.Round(100 * min(max(v, 0), 1)))
}

func sortedJoin(ts []string) string {
	out := append([]string(nil), ts...)
	sort.Strings(out)
	return strings.Join(out, " ")
}
