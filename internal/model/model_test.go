package model

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
)

func feature(id osm.FeatureID, name string) CandidateFeature {
	return CandidateFeature{
		ID:       id,
		Kind:     KindPoint,
		Names:    []string{name},
		Tags:     osm.Tags{{Key: "name", Value: name}},
		Location: orb.Point{23.7, 37.9},
	}
}

func TestFeatureTableDedup(t *testing.T) {
	t.Parallel()

	table := FeatureTable{
		feature(osm.NodeID(1).FeatureID(), "first"),
		feature(osm.NodeID(2).FeatureID(), "second"),
		feature(osm.NodeID(1).FeatureID(), "duplicate"),
		feature(osm.WayID(1).FeatureID(), "way"),
	}

	got := table.Dedup()
	assert.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Names[0])
	assert.Equal(t, "second", got[1].Names[0])
	assert.Equal(t, "way", got[2].Names[0])
}

func TestFeatureTableDedupIdempotent(t *testing.T) {
	t.Parallel()

	table := FeatureTable{
		feature(osm.NodeID(3).FeatureID(), "a"),
		feature(osm.NodeID(3).FeatureID(), "b"),
		feature(osm.RelationID(3).FeatureID(), "c"),
	}

	once := table.Dedup()
	assert.Equal(t, once, once.Dedup())
}

func TestFeatureTableSortedByID(t *testing.T) {
	t.Parallel()

	table := FeatureTable{
		feature(osm.NodeID(9).FeatureID(), "nine"),
		feature(osm.NodeID(2).FeatureID(), "two"),
	}
	sorted := table.SortedByID()
	assert.Equal(t, "two", sorted[0].Names[0])
	assert.Equal(t, "nine", table[0].Names[0], "input untouched")
}

func TestNamesFromTags(t *testing.T) {
	t.Parallel()

	tags := osm.Tags{
		{Key: "name:en", Value: "Acropolis Museum"},
		{Key: "amenity", Value: "museum"},
		{Key: "name", Value: "Μουσείο Ακρόπολης"},
		{Key: "old_name", Value: "Acropolis Museum"},
		{Key: "name:el", Value: "Μουσείο Ακρόπολης"},
	}

	assert.Equal(t, []string{"Μουσείο Ακρόπολης", "Acropolis Museum"}, NamesFromTags(tags))
	assert.Empty(t, NamesFromTags(osm.Tags{{Key: "shop", Value: "bakery"}}))
}

func TestCategory(t *testing.T) {
	t.Parallel()

	c := Category{Theme: "culture", Class: "museum"}
	assert.Equal(t, []string{"culture", "museum", ""}, c.Tokens())
	assert.Equal(t, "culture|museum", c.String())
}

func TestTileArea(t *testing.T) {
	t.Parallel()

	tile := Tile{Bound: orb.Bound{Min: orb.Point{1, 1}, Max: orb.Point{3, 2}}}
	assert.InDelta(t, 2.0, tile.Area(), 1e-12)
}

func TestMatchCandidateMatched(t *testing.T) {
	t.Parallel()

	assert.False(t, MatchCandidate{Composite: NoMatch}.Matched())
	assert.True(t, MatchCandidate{Composite: 0.7}.Matched())
}

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusQueued, "queued"},
		{RunStatusPartitioned, "partitioned"},
		{RunStatusAcquiring, "acquiring"},
		{RunStatusMatching, "matching"},
		{RunStatusComplete, "complete"},
		{RunStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}
