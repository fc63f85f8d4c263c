package model

import (
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// FeatureKind distinguishes point features from area features.
type FeatureKind string

const (
	KindPoint FeatureKind = "point"
	KindArea  FeatureKind = "area"
)

// CandidateFeature is an OSM feature that may be linked to a source POI.
// Nodes are points; ways and relations are areas represented by the center
// coordinate the provider computed for them.
type CandidateFeature struct {
	ID        osm.FeatureID `json:"id"`
	Kind      FeatureKind   `json:"kind"`
	Names     []string      `json:"names"`
	Tags      osm.Tags      `json:"tags"`
	Location  orb.Point     `json:"location"`  // WGS84
	Projected orb.Point     `json:"projected"` // target CRS
}

// Point returns the representative coordinate of the feature in WGS84.
func (f CandidateFeature) Point() orb.Point {
	return f.Location
}

// NamesFromTags collects the distinct values of every tag whose key contains
// "name", in tag key order.
func NamesFromTags(tags osm.Tags) []string {
	sorted := make(osm.Tags, len(tags))
	copy(sorted, tags)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var names []string
	seen := make(map[string]bool)
	for _, t := range sorted {
		if !strings.Contains(t.Key, "name") || t.Value == "" || seen[t.Value] {
			continue
		}
		seen[t.Value] = true
		names = append(names, t.Value)
	}
	return names
}

// FeatureTable is an ordered collection of candidate features.
type FeatureTable []CandidateFeature

// Dedup returns a table keeping only the first occurrence of every feature id.
// Applying it twice yields the same table.
func (t FeatureTable) Dedup() FeatureTable {
	out := make(FeatureTable, 0, len(t))
	seen := make(map[osm.FeatureID]struct{}, len(t))
	for _, f := range t {
		if _, ok := seen[f.ID]; ok {
			continue
		}
		seen[f.ID] = struct{}{}
		out = append(out, f)
	}
	return out
}

// SortedByID returns a copy of the table ordered by feature id.
func (t FeatureTable) SortedByID() FeatureTable {
	out := make(FeatureTable, len(t))
	copy(out, t)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
