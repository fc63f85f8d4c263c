package main

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/poi-interlink/internal/dataset"
	"github.com/sells-group/poi-interlink/internal/fetcher"
	"github.com/sells-group/poi-interlink/internal/geospatial"
	"github.com/sells-group/poi-interlink/internal/lexicon"
	"github.com/sells-group/poi-interlink/internal/matcher"
	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/overpass"
	"github.com/sells-group/poi-interlink/internal/resilience"
	"github.com/sells-group/poi-interlink/internal/similarity"
)

var projector = geospatial.NewEPSGProjector()

// checkCRS fails when the configured source or target CRS cannot be projected.
func checkCRS() error {
	for _, pair := range [][2]int{
		{cfg.CRS.Source, geospatial.WGS84},
		{cfg.CRS.Source, cfg.CRS.Target},
		{geospatial.WGS84, cfg.CRS.Target},
	} {
		if err := projector.Check(pair[0], pair[1]); err != nil {
			return err
		}
	}
	return nil
}

// loadPOIs loads the dataset at path and fills in WGS84 and target CRS
// coordinates.
func loadPOIs(ctx context.Context, path string) ([]model.SourcePOI, error) {
	if err := checkCRS(); err != nil {
		return nil, err
	}
	pois, err := dataset.Load(ctx, path, dataset.FromConfig(cfg.Dataset, cfg.CRS.Source))
	if err != nil {
		return nil, err
	}
	if len(pois) == 0 {
		return nil, eris.Errorf("dataset %s has no POIs", path)
	}
	return geospatial.ProjectPOIs(projector, pois, cfg.CRS.Target)
}

func partitionOptions() geospatial.PartitionOptions {
	return geospatial.PartitionOptions{
		DensityFactor: cfg.Partition.DensityFactor,
		Buffer:        cfg.Partition.Buffer,
		Seed:          cfg.Partition.Seed,
		Restarts:      cfg.Partition.Restarts,
		MaxIterations: cfg.Partition.MaxIterations,
		MaxTileArea:   cfg.Partition.MaxTileArea,
	}
}

// partitionPOIs tiles the WGS84 extent of pois.
func partitionPOIs(pois []model.SourcePOI) ([]model.Tile, error) {
	geo := make([]orb.Point, len(pois))
	for i, p := range pois {
		geo[i] = p.Geographic
	}
	tiles, err := geospatial.Partition(geo, partitionOptions())
	if err != nil {
		return nil, err
	}
	zap.L().Info("partitioned dataset",
		zap.Int("pois", len(pois)),
		zap.Int("tiles", len(tiles)),
	)
	return tiles, nil
}

// newAcquirer builds the Overpass pipeline for one run.
func newAcquirer(runID string, skipFailed bool) *overpass.Pipeline {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  cfg.Overpass.UserAgent,
		RatePerSec: cfg.Overpass.RatePerSec,
	})

	policy := overpass.FailurePolicy(cfg.Overpass.OnFailure)
	if skipFailed {
		policy = overpass.PolicySkip
	}

	return overpass.NewPipeline(f, overpass.Options{
		Endpoint: cfg.Overpass.URL,
		Query: overpass.QueryOptions{
			Keys:            cfg.Overpass.Keys,
			WayExcludedKeys: cfg.Overpass.WayExcludedKeys,
			Exclusions:      cfg.Overpass.Exclusions,
		},
		Retry:            resilience.FromOverpassConfig(cfg.Overpass),
		StagingDir:       cfg.Overpass.StagingDir,
		RunID:            runID,
		Concurrency:      cfg.Overpass.Concurrency,
		Policy:           policy,
		BreakerThreshold: cfg.Overpass.BreakerThreshold,
	})
}

// newLinker builds the scoring engine and linker from the match and lexicon
// configuration.
func newLinker() (*matcher.Linker, error) {
	lex, err := lexicon.Load(cfg.Lexicon.Path, cfg.Lexicon.Prefix)
	if err != nil {
		return nil, err
	}
	metric, err := similarity.MetricByName(cfg.Match.Metric)
	if err != nil {
		return nil, err
	}
	engine := matcher.NewEngine(matcher.Options{
		K:          cfg.Match.K,
		Threshold:  cfg.Match.Threshold,
		NameWeight: cfg.Match.NameWeight,
		TagWeight:  cfg.Match.TagWeight,
	}, lex, similarity.NewScorer(metric))
	return matcher.NewLinker(engine, cfg.Match.Workers), nil
}
