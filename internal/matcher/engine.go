// Package matcher scores spatial candidates against source POIs and links
// every POI to its best OSM feature.
package matcher

import (
	"go.uber.org/zap"

	"github.com/sells-group/poi-interlink/internal/geospatial"
	"github.com/sells-group/poi-interlink/internal/lexicon"
	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/script"
	"github.com/sells-group/poi-interlink/internal/similarity"
)

// Options configures scoring.
type Options struct {
	K          int
	Threshold  float64
	NameWeight float64
	TagWeight  float64
}

// DefaultOptions returns the reference scoring settings.
func DefaultOptions() Options {
	return Options{K: 10, Threshold: 0.65, NameWeight: 0.6, TagWeight: 0.4}
}

// Engine scores candidate features for a source POI.
type Engine struct {
	opts     Options
	lexicon  *lexicon.Lexicon
	scorer   *similarity.Scorer
	translit script.Transliterator
}

// NewEngine creates an engine. A nil scorer uses the default fuzzy ratios and
// a nil lexicon resolves no tags. Weights summing to more than 1 are scaled
// down proportionally so composites stay within [0, 1].
func NewEngine(opts Options, lex *lexicon.Lexicon, scorer *similarity.Scorer) *Engine {
	if opts.K < 1 {
		opts.K = DefaultOptions().K
	}
	if sum := opts.NameWeight + opts.TagWeight; sum > 1 {
		opts.NameWeight /= sum
		opts.TagWeight /= sum
	}
	if lex == nil {
		lex = lexicon.New(nil)
	}
	if scorer == nil {
		scorer = similarity.NewScorer(nil)
	}
	return &Engine{opts: opts, lexicon: lex, scorer: scorer, translit: script.Default}
}

// NameScore compares name against the candidate names. When no candidate
// name shares the writing system of name, the candidate names are
// transliterated first: Greek names to Latin, all others to Greek.
func (e *Engine) NameScore(name string, names []string) int {
	if len(names) == 0 {
		return 0
	}

	candidates := script.ClassifyAll(names)
	choices := names
	if !script.ClassifyAll([]string{name}).Intersects(candidates) {
		toLatin := candidates.Has(script.Greek)
		choices = make([]string, len(names))
		for i, n := range names {
			if toLatin {
				choices[i] = e.translit.ToLatin(n)
			} else {
				choices[i] = e.translit.ToGreek(n)
			}
		}
	}

	m, _ := similarity.ExtractOne(name, choices, e.scorer.NameRatio)
	return m.Score
}

// TagScore is the best similarity between the lexicon phrase of any
// candidate tag and the category levels. Tags without a phrase are skipped.
func (e *Engine) TagScore(cat model.Category, feature model.CandidateFeature) int {
	if len(feature.Tags) == 0 {
		return 0
	}
	tokens := cat.Tokens()
	best := 0
	for _, phrase := range e.lexicon.Phrases(feature.Tags) {
		if m, ok := similarity.ExtractOne(phrase, tokens, e.scorer.WRatio); ok && m.Score > best {
			best = m.Score
		}
	}
	return best
}

// Composite combines the name and tag scores. A candidate without names is
// scored on tags alone. Values below the threshold become model.NoMatch.
func (e *Engine) Composite(hasNames bool, nameScore, tagScore int) float64 {
	score := float64(tagScore) / 100
	if hasNames {
		score = float64(nameScore)/100*e.opts.NameWeight + float64(tagScore)/100*e.opts.TagWeight
	}
	if score < e.opts.Threshold {
		return model.NoMatch
	}
	return score
}

// ScoreCandidates scores table[idx] for every idx, in the given order.
func (e *Engine) ScoreCandidates(poi model.SourcePOI, idxs []int, table model.FeatureTable) []model.MatchCandidate {
	out := make([]model.MatchCandidate, len(idxs))
	for i, idx := range idxs {
		f := table[idx]
		name := e.NameScore(poi.Name, f.Names)
		tag := e.TagScore(poi.Category, f)
		out[i] = model.MatchCandidate{
			Index:     idx,
			NameScore: name,
			TagScore:  tag,
			Composite: e.Composite(len(f.Names) > 0, name, tag),
		}
	}
	return out
}

// Select returns the position of the highest composite score, the first one
// winning ties. It reports false when there are no candidates or the best
// score is the no-match sentinel.
func Select(cands []model.MatchCandidate) (int, bool) {
	if len(cands) == 0 {
		return -1, false
	}
	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Composite > cands[best].Composite {
			best = i
		}
	}
	return best, cands[best].Matched()
}

// Outcome is the result of matching one source POI.
type Outcome struct {
	POI        model.SourcePOI
	State      State
	Candidates []model.MatchCandidate
	Best       int // position in Candidates, -1 when unmatched
}

// Matched reports whether the POI was linked.
func (o Outcome) Matched() bool {
	return o.State == StateMatched
}

// Winner returns the selected candidate.
func (o Outcome) Winner() (model.MatchCandidate, bool) {
	if !o.Matched() {
		return model.MatchCandidate{}, false
	}
	return o.Candidates[o.Best], true
}

// Match runs one POI through the state machine: fetch the k candidates
// nearest to the POI's bounds, score them and select the winner.
func (e *Engine) Match(poi model.SourcePOI, ix *geospatial.Index, table model.FeatureTable) Outcome {
	o := Outcome{POI: poi, State: StateNew, Best: -1}
	log := zap.L().With(zap.String("component", "matcher"), zap.String("poi_id", poi.ID))

	neighbors := ix.KNearestBound(poi.Projected.Bound(), e.opts.K)
	idxs := make([]int, len(neighbors))
	for i, n := range neighbors {
		idxs[i] = n.Index
	}
	o.advance(log, StateCandidatesFetched)

	o.Candidates = e.ScoreCandidates(poi, idxs, table)
	for i, n := range neighbors {
		o.Candidates[i].Distance = n.Distance
	}
	o.advance(log, StateScored)

	if best, ok := Select(o.Candidates); ok {
		o.Best = best
		o.advance(log, StateMatched)
	} else {
		o.advance(log, StateUnmatched)
	}
	return o
}

func (o *Outcome) advance(log *zap.Logger, to State) {
	if !o.State.CanTransition(to) {
		log.Warn("matcher: invalid transition",
			zap.Stringer("from", o.State),
			zap.Stringer("to", to),
		)
		return
	}
	log.Debug("matcher: transition",
		zap.Stringer("from", o.State),
		zap.Stringer("to", to),
		zap.Int("candidates", len(o.Candidates)),
	)
	o.State = to
}

// PairRecord builds the output record of a matched outcome.
func PairRecord(o Outcome, table model.FeatureTable) (model.CandidatePairRecord, bool) {
	win, ok := o.Winner()
	if !ok {
		return model.CandidatePairRecord{}, false
	}
	f := table[win.Index]
	return model.CandidatePairRecord{
		SourceID:       o.POI.ID,
		SourceName:     o.POI.Name,
		SourceCategory: o.POI.Category,
		SourceGeom:     o.POI.Geographic,
		FeatureID:      f.ID.String(),
		FeatureNames:   f.Names,
		FeatureTags:    f.Tags.Map(),
		FeatureGeom:    f.Location,
		TotalScore:     win.Composite,
		NameScore:      win.NameScore,
		TagScore:       win.TagScore,
		Distance:       win.Distance,
		Status:         true,
	}, true
}
