// Package store persists interlinking runs, their accepted pairs, unmatched
// POI ids and failed tiles.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-interlink/internal/geospatial"
	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/resilience"
)

// geomSRID is the SRID of every stored geometry. Pair geometries are WGS84.
const geomSRID = 4326

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Dataset string          `json:"dataset,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for interlinking runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, dataset string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	FinishRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	SavePairs(ctx context.Context, runID string, pairs []model.CandidatePairRecord) (int64, error)
	ListPairs(ctx context.Context, runID string) ([]model.CandidatePairRecord, error)
	SaveUnmatched(ctx context.Context, runID string, ids []string) error
	ListUnmatched(ctx context.Context, runID string) ([]string, error)

	// Failed tiles
	SaveFailedTiles(ctx context.Context, tiles []resilience.FailedTile) error
	ListFailedTiles(ctx context.Context, runID string) ([]resilience.FailedTile, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// pairColumns is the column order shared by both backends.
var pairColumns = []string{
	"run_id", "seq", "source_id", "source_name", "theme", "class_name", "subclass_n",
	"source_geom", "feature_id", "feature_names", "feature_tags", "feature_geom",
	"tot_score", "name_dist", "tag_dist", "spatial_dist",
}

// pairRow flattens a pair into pairColumns order. seq keeps source-row order.
func pairRow(runID string, seq int, p model.CandidatePairRecord) ([]any, error) {
	srcGeom, err := geospatial.EncodePointEWKB(p.SourceGeom, geomSRID)
	if err != nil {
		return nil, err
	}
	featGeom, err := geospatial.EncodePointEWKB(p.FeatureGeom, geomSRID)
	if err != nil {
		return nil, err
	}
	names, err := json.Marshal(nonNil(p.FeatureNames))
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal feature names")
	}
	tags, err := json.Marshal(p.FeatureTags)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal feature tags")
	}
	return []any{
		runID, seq, p.SourceID, p.SourceName,
		p.SourceCategory.Theme, p.SourceCategory.Class, p.SourceCategory.Subclass,
		srcGeom, p.FeatureID, string(names), string(tags), featGeom,
		p.TotalScore, p.NameScore, p.TagScore, p.Distance,
	}, nil
}

// pairScan holds the raw column values of one stored pair.
type pairScan struct {
	rec               model.CandidatePairRecord
	srcGeom, featGeom []byte
	names, tags       string
}

func (s *pairScan) dest() []any {
	r := &s.rec
	return []any{
		&r.SourceID, &r.SourceName,
		&r.SourceCategory.Theme, &r.SourceCategory.Class, &r.SourceCategory.Subclass,
		&s.srcGeom, &r.FeatureID, &s.names, &s.tags, &s.featGeom,
		&r.TotalScore, &r.NameScore, &r.TagScore, &r.Distance,
	}
}

func (s *pairScan) record() (model.CandidatePairRecord, error) {
	r := s.rec
	var err error
	if r.SourceGeom, _, err = geospatial.DecodePointEWKB(s.srcGeom); err != nil {
		return r, err
	}
	if r.FeatureGeom, _, err = geospatial.DecodePointEWKB(s.featGeom); err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(s.names), &r.FeatureNames); err != nil {
		return r, eris.Wrap(err, "store: unmarshal feature names")
	}
	if err := json.Unmarshal([]byte(s.tags), &r.FeatureTags); err != nil {
		return r, eris.Wrap(err, "store: unmarshal feature tags")
	}
	r.Status = true
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func listLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

const pairSelect = `SELECT source_id, source_name, theme, class_name, subclass_n, source_geom,
	feature_id, feature_names, feature_tags, feature_geom, tot_score, name_dist, tag_dist, spatial_dist
	FROM interlink_pairs`

const failedTileSelect = `SELECT run_id, tile_id, min_lon, min_lat, max_lon, max_lat, error, error_type, attempts, failed_at
	FROM interlink_failed_tiles`

var failedTileColumns = []string{
	"run_id", "tile_id", "min_lon", "min_lat", "max_lon", "max_lat", "error", "error_type", "attempts", "failed_at",
}

func failedTileRow(ft resilience.FailedTile) []any {
	return []any{
		ft.RunID, ft.TileID, ft.Bound.Min[0], ft.Bound.Min[1], ft.Bound.Max[0], ft.Bound.Max[1],
		ft.Error, ft.ErrorType, ft.Attempts, ft.FailedAt,
	}
}

func failedTileDest(ft *resilience.FailedTile) []any {
	return []any{
		&ft.RunID, &ft.TileID, &ft.Bound.Min[0], &ft.Bound.Min[1], &ft.Bound.Max[0], &ft.Bound.Max[1],
		&ft.Error, &ft.ErrorType, &ft.Attempts, &ft.FailedAt,
	}
}
