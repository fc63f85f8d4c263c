package matcher

import (
	"context"
	"sort"

	"github.com/paulmach/orb"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/poi-interlink/internal/geospatial"
	"github.com/sells-group/poi-interlink/internal/model"
)

// Linker matches a whole dataset against a feature table.
type Linker struct {
	engine  *Engine
	workers int
}

// NewLinker creates a linker running up to workers POIs at a time.
func NewLinker(engine *Engine, workers int) *Linker {
	if workers < 1 {
		workers = 1
	}
	return &Linker{engine: engine, workers: workers}
}

// Link matches every POI and returns pairs and unmatched ids ordered by
// dataset row, whatever order the workers finish in. The table must already
// carry projected coordinates.
func (l *Linker) Link(ctx context.Context, pois []model.SourcePOI, table model.FeatureTable) (*model.LinkResult, error) {
	log := zap.L().With(zap.String("component", "matcher.linker"))

	ix := geospatial.NewIndex(projected(table))
	outcomes := make([]Outcome, len(pois))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, poi := range pois {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = l.engine.Match(poi, ix, table)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(outcomes, func(a, b int) bool { return outcomes[a].POI.Row < outcomes[b].POI.Row })

	res := &model.LinkResult{}
	claims := make(map[int]int)
	for _, o := range outcomes {
		rec, ok := PairRecord(o, table)
		if !ok {
			res.Unmatched = append(res.Unmatched, o.POI.ID)
			continue
		}
		res.Pairs = append(res.Pairs, rec)
		claims[o.Candidates[o.Best].Index]++
	}

	shared := 0
	for _, n := range claims {
		if n > 1 {
			shared++
		}
	}
	if shared > 0 {
		log.Info("matcher: features linked to more than one poi", zap.Int("features", shared))
	}

	log.Info("matcher: linking complete",
		zap.Int("pois", len(pois)),
		zap.Int("features", len(table)),
		zap.Int("matched", len(res.Pairs)),
		zap.Int("unmatched", len(res.Unmatched)),
	)
	return res, nil
}

func projected(table model.FeatureTable) []orb.Point {
	pts := make([]orb.Point, len(table))
	for i, f := range table {
		pts[i] = f.Projected
	}
	return pts
}
