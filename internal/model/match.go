package model

import "github.com/paulmach/orb"

// NoMatch is the composite score assigned to a candidate below the threshold.
const NoMatch = -1.0

// MatchCandidate is the score card of one candidate feature for one POI.
type MatchCandidate struct {
	Index     int     `json:"index"` // position in the FeatureTable
	NameScore int     `json:"name_score"`
	TagScore  int     `json:"tag_score"`
	Composite float64 `json:"composite"`
	Distance  float64 `json:"distance"`
}

// Matched reports whether the candidate passed the threshold.
func (c MatchCandidate) Matched() bool {
	return c.Composite != NoMatch
}

// CandidatePairRecord is an accepted link between a source POI and an OSM feature.
type CandidatePairRecord struct {
	SourceID       string            `json:"source_id"`
	SourceName     string            `json:"source_name"`
	SourceCategory Category          `json:"source_category"`
	SourceGeom     orb.Point         `json:"source_geom"` // WGS84
	FeatureID      string            `json:"feature_id"`
	FeatureNames   []string          `json:"feature_names"`
	FeatureTags    map[string]string `json:"feature_tags"`
	FeatureGeom    orb.Point         `json:"feature_geom"` // WGS84
	TotalScore     float64           `json:"tot_score"`
	NameScore      int               `json:"name_dist"`
	TagScore       int               `json:"tag_dist"`
	Distance       float64           `json:"spatial_dist"`
	Status         bool              `json:"status"`
}

// LinkResult is the outcome of linking one dataset, ordered by source row.
type LinkResult struct {
	Pairs     []CandidatePairRecord `json:"pairs"`
	Unmatched []string              `json:"unmatched"`
}
