package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/resilience"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func samplePairs() []model.CandidatePairRecord {
	return []model.CandidatePairRecord{
		{
			SourceID:       "p1",
			SourceName:     "Καφέ Ωμέγα",
			SourceCategory: model.Category{Theme: "food", Class: "cafe", Subclass: "coffee"},
			SourceGeom:     orb.Point{23.7275, 37.9838},
			FeatureID:      "node/101",
			FeatureNames:   []string{"Ωμέγα", "Omega"},
			FeatureTags:    map[string]string{"amenity": "cafe", "name": "Ωμέγα"},
			FeatureGeom:    orb.Point{23.7276, 37.9839},
			TotalScore:     0.92,
			NameScore:      100,
			TagScore:       80,
			Distance:       14.2,
			Status:         true,
		},
		{
			SourceID:    "p3",
			SourceName:  "Museum",
			SourceGeom:  orb.Point{23.73, 37.97},
			FeatureID:   "way/7",
			FeatureTags: map[string]string{"tourism": "museum"},
			FeatureGeom: orb.Point{23.7301, 37.9701},
			TotalScore:  0.8,
			TagScore:    80,
			Status:      true,
		},
	}
}

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "pois.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusAcquiring))
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusAcquiring, got.Status)
	assert.Equal(t, "pois.csv", got.Dataset)

	run.Status = model.RunStatusComplete
	run.POIs, run.Tiles, run.FailedTiles = 40, 3, 1
	run.Features, run.Matched, run.Unmatched = 120, 32, 8
	require.NoError(t, st.FinishRun(ctx, run))

	got, err = st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 40, got.POIs)
	assert.Equal(t, 3, got.Tiles)
	assert.Equal(t, 1, got.FailedTiles)
	assert.Equal(t, 120, got.Features)
	assert.Equal(t, 32, got.Matched)
	assert.Equal(t, 8, got.Unmatched)
	assert.Empty(t, got.Error)
}

func TestSQLite_RunNotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetRun(ctx, "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")

	err = st.UpdateRunStatus(ctx, "missing", model.RunStatusFailed)
	assert.ErrorContains(t, err, "run not found")

	err = st.FinishRun(ctx, &model.Run{ID: "missing"})
	assert.ErrorContains(t, err, "run not found")
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a, err := st.CreateRun(ctx, "a.csv")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	b, err := st.CreateRun(ctx, "b.csv")
	require.NoError(t, err)
	require.NoError(t, st.UpdateRunStatus(ctx, b.ID, model.RunStatusFailed))

	runs, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, b.ID, runs[0].ID, "newest first")

	runs, err = st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, b.ID, runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Dataset: "a.csv"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, a.ID, runs[0].ID)

	runs, err = st.ListRuns(ctx, RunFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, a.ID, runs[0].ID)
}

func TestSQLite_PairsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "pois.csv")
	require.NoError(t, err)

	pairs := samplePairs()
	n, err := st.SavePairs(ctx, run.ID, pairs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	got, err := st.ListPairs(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, pairs[0], got[0])
	assert.Equal(t, "p3", got[1].SourceID)
	assert.Equal(t, []string{}, got[1].FeatureNames)
	assert.Equal(t, pairs[1].FeatureGeom, got[1].FeatureGeom)
}

func TestSQLite_SavePairsEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	n, err := st.SavePairs(context.Background(), "run", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLite_Unmatched(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "pois.csv")
	require.NoError(t, err)
	require.NoError(t, st.SaveUnmatched(ctx, run.ID, []string{"p9", "p2", "p5"}))

	ids, err := st.ListUnmatched(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"p9", "p2", "p5"}, ids)
}

func TestSQLite_FailedTilesUpsert(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	bound := orb.Bound{Min: orb.Point{23.7, 37.9}, Max: orb.Point{23.8, 38.0}}
	first := resilience.NewFailedTile("run-1", 2, bound, 5, errors.New("overpass: status 504"))
	other := resilience.NewFailedTile("run-1", 0, bound, 1, errors.New("bad query"))
	require.NoError(t, st.SaveFailedTiles(ctx, []resilience.FailedTile{first, other}))

	retry := first
	retry.Attempts = 10
	retry.Error = "still failing"
	require.NoError(t, st.SaveFailedTiles(ctx, []resilience.FailedTile{retry}))

	tiles, err := st.ListFailedTiles(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, tiles, 2)
	assert.Equal(t, 0, tiles[0].TileID)
	assert.Equal(t, 2, tiles[1].TileID)
	assert.Equal(t, 10, tiles[1].Attempts)
	assert.Equal(t, "still failing", tiles[1].Error)
	assert.Equal(t, bound, tiles[1].Bound)
	assert.WithinDuration(t, first.FailedAt, tiles[1].FailedAt, time.Second)
}
