package similarity

// ScoreFunc scores a query against one choice on a 0-100 scale.
type ScoreFunc func(query, choice string) int

// Match is the best choice found by ExtractOne.
type Match struct {
	Index  int
	Choice string
	Score  int
}

// ExtractOne returns the choice scoring highest against query, the first one
// winning ties. Query and choices are normalized before scoring; a query that
// normalizes to nothing scores 0 against every choice. It reports false when
// there are no choices.
func ExtractOne(query string, choices []string, score ScoreFunc) (Match, bool) {
	if len(choices) == 0 {
		return Match{}, false
	}

	q := Normalize(query)
	best := Match{Index: -1, Score: -1}
	for i, c := range choices {
		sc := 0
		if q != "" {
			sc = score(q, Normalize(c))
		}
		if sc > best.Score {
			best = Match{Index: i, Choice: c, Score: sc}
		}
	}
	return best, true
}
