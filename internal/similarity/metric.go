package similarity

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
	"github.com/rotisserie/eris"
	"github.com/xrash/smetrics"
)

// Metric returns the similarity of two strings in [0, 1].
type Metric func(a, b string) float64

// Metric names accepted by MetricByName.
const (
	MetricLevenshtein = "levenshtein"
	MetricJaroWinkler = "jaro_winkler"
	MetricDamerau     = "damerau"
)

// Levenshtein is one minus the edit distance over the longer length.
func Levenshtein(a, b string) float64 {
	return editSimilarity(a, b, levenshtein.ComputeDistance(a, b))
}

// Damerau is Levenshtein with adjacent transpositions counted as one edit.
func Damerau(a, b string) float64 {
	return editSimilarity(a, b, matchr.DamerauLevenshtein(a, b))
}

// JaroWinkler is the Jaro-Winkler similarity with the usual 0.7 boost
// threshold and a four-rune prefix.
func JaroWinkler(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

func editSimilarity(a, b string, dist int) float64 {
	den := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if den == 0 {
		return 1
	}
	return 1 - float64(dist)/float64(den)
}

// MetricByName resolves a configured metric name. The empty name returns a
// nil Metric, which keeps the fuzzywuzzy ratios.
func MetricByName(name string) (Metric, error) {
	switch name {
	case "":
		return nil, nil
	case MetricLevenshtein:
		return Levenshtein, nil
	case MetricJaroWinkler:
		return JaroWinkler, nil
	case MetricDamerau:
		return Damerau, nil
	default:
		return nil, eris.Errorf("similarity: unknown metric %q", name)
	}
}
