package overpass

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/poi-interlink/internal/fetcher"
	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/resilience"
)

// FailurePolicy decides what a tile that exhausted its retries does to the run.
type FailurePolicy string

const (
	// PolicyAbort stops acquisition at the first failed tile.
	PolicyAbort FailurePolicy = "abort"
	// PolicySkip records the failed tile and continues with the rest.
	PolicySkip FailurePolicy = "skip"
)

// TileError reports a tile whose acquisition failed fatally.
type TileError struct {
	TileID   int
	Attempts int
	Err      error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("overpass: tile %d failed after %d attempts: %v", e.TileID, e.Attempts, e.Err)
}

func (e *TileError) Unwrap() error { return e.Err }

// Is reports every tile failure as fatal.
func (e *TileError) Is(target error) bool { return target == resilience.ErrFatal }

// Options configures a Pipeline.
type Options struct {
	Endpoint    string
	Query       QueryOptions
	Retry       resilience.RetryConfig
	StagingDir  string
	RunID       string
	Concurrency int
	Policy      FailurePolicy
	// BreakerThreshold opens the circuit after this many consecutive failed
	// tiles under PolicySkip. Zero uses the breaker default.
	BreakerThreshold int
}

// AcquireResult is the outcome of acquiring a set of tiles.
type AcquireResult struct {
	Features    model.FeatureTable
	Tiles       []model.Tile
	FailedTiles []resilience.FailedTile
	// Raw is the feature count before deduplication.
	Raw int
}

// Pipeline fetches and parses the features of every tile.
type Pipeline struct {
	fetcher fetcher.Fetcher
	opts    Options
	breaker *resilience.CircuitBreaker
}

// NewPipeline creates an acquisition pipeline over f.
func NewPipeline(f fetcher.Fetcher, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Policy == "" {
		opts.Policy = PolicyAbort
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.StagingDir == "" {
		opts.StagingDir = os.TempDir()
	}
	if opts.Query.Keys == nil {
		opts.Query = DefaultQueryOptions()
	}
	if opts.Retry.ShouldRetry == nil {
		// Every failed attempt is retried; cancellation of the parent context
		// is handled by the retry loop itself.
		opts.Retry.ShouldRetry = func(error) bool { return true }
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("overpass", "fetch_tile")
	}

	breakerCfg := resilience.FromBreakerThreshold(opts.BreakerThreshold)
	breakerCfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("overpass: circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}

	return &Pipeline{
		fetcher: f,
		opts:    opts,
		breaker: resilience.NewCircuitBreaker(breakerCfg),
	}
}

type tileOutcome struct {
	features model.FeatureTable
	attempts int
	failed   *resilience.FailedTile
}

// Acquire fetches every tile and returns the deduplicated feature table in
// tile order. Under PolicyAbort the first failed tile aborts the run with a
// *TileError. Under PolicySkip failed tiles are reported in the result until
// the circuit breaker opens, which aborts the run.
func (p *Pipeline) Acquire(ctx context.Context, tiles []model.Tile) (*AcquireResult, error) {
	log := zap.L().With(
		zap.String("component", "overpass.pipeline"),
		zap.String("run_id", p.opts.RunID),
	)

	if err := os.MkdirAll(p.opts.StagingDir, 0o755); err != nil {
		return nil, eris.Wrap(err, "overpass: create staging dir")
	}

	outcomes := make([]tileOutcome, len(tiles))
	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)

	for i, tile := range tiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log.Info("overpass: fetching tile",
				zap.Int("tile", tile.ID),
				zap.Int("of", len(tiles)),
			)

			features, attempts, err := p.fetchGuarded(gctx, tile)

			mu.Lock()
			done++
			progress := done
			mu.Unlock()

			if err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return err
				}
				if p.opts.Policy == PolicyAbort || errors.Is(err, resilience.ErrCircuitOpen) {
					return err
				}
				ft := resilience.NewFailedTile(p.opts.RunID, tile.ID, tile.Bound, attempts, err)
				outcomes[i] = tileOutcome{attempts: attempts, failed: &ft}
				log.Warn("overpass: skipping failed tile",
					zap.Int("tile", tile.ID),
					zap.Int("attempts", attempts),
					zap.Error(err),
				)
				return nil
			}

			outcomes[i] = tileOutcome{features: features, attempts: attempts}
			log.Info("overpass: tile fetched",
				zap.Int("tile", tile.ID),
				zap.Int("features", len(features)),
				zap.Int("attempts", attempts),
				zap.Int("done", progress),
				zap.Int("of", len(tiles)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &AcquireResult{Tiles: make([]model.Tile, len(tiles))}
	var all model.FeatureTable
	for i, o := range outcomes {
		t := tiles[i]
		t.Attempts = o.attempts
		res.Tiles[i] = t
		if o.failed != nil {
			res.FailedTiles = append(res.FailedTiles, *o.failed)
			continue
		}
		all = append(all, o.features...)
	}

	res.Raw = len(all)
	res.Features = all.Dedup()

	log.Info("overpass: acquisition complete",
		zap.Int("tiles", len(tiles)),
		zap.Int("failed_tiles", len(res.FailedTiles)),
		zap.Int("raw_features", res.Raw),
		zap.Int("features", len(res.Features)),
	)
	return res, nil
}

// fetchGuarded runs FetchTile through the circuit breaker when failures are
// tolerated.
func (p *Pipeline) fetchGuarded(ctx context.Context, tile model.Tile) (model.FeatureTable, int, error) {
	if p.opts.Policy != PolicySkip {
		return p.FetchTile(ctx, tile)
	}

	var attempts int
	features, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (model.FeatureTable, error) {
		f, n, err := p.FetchTile(ctx, tile)
		attempts = n
		return f, err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, attempts, eris.Wrapf(err, "overpass: tile %d rejected", tile.ID)
	}
	return features, attempts, err
}

// FetchTile downloads and parses one tile. Attempt n embeds a server timeout
// of n times the base timeout in the query. It returns the attempts made and,
// when every attempt failed, a *TileError.
func (p *Pipeline) FetchTile(ctx context.Context, tile model.Tile) (model.FeatureTable, int, error) {
	staging := p.stagingPath(tile.ID)
	defer os.Remove(staging) //nolint:errcheck

	var attempts int
	features, err := resilience.DoVal(ctx, p.opts.Retry, func(ctx context.Context, attempt int) (model.FeatureTable, error) {
		attempts = attempt
		timeout := int(p.opts.Retry.AttemptTimeout(attempt).Seconds())
		query := BuildQuery(tile.Bound, timeout, p.opts.Query)

		if _, err := p.fetcher.DownloadToFile(ctx, p.queryURL(query), staging); err != nil {
			return nil, err
		}

		resp, err := decodeStaged(staging)
		if err != nil {
			return nil, err
		}

		features, stats := resp.Features()
		zap.L().Debug("overpass: parsed tile",
			zap.Int("tile", tile.ID),
			zap.Int("attempt", attempt),
			zap.Int("elements", stats.Elements),
			zap.Int("features", len(features)),
		)
		return features, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, attempts, eris.Wrapf(ctx.Err(), "overpass: tile %d", tile.ID)
		}
		return nil, attempts, &TileError{TileID: tile.ID, Attempts: attempts, Err: err}
	}
	return features, attempts, nil
}

func (p *Pipeline) queryURL(query string) string {
	sep := "?"
	if strings.Contains(p.opts.Endpoint, "?") {
		sep = "&"
	}
	return p.opts.Endpoint + sep + "data=" + url.QueryEscape(query)
}

func (p *Pipeline) stagingPath(tileID int) string {
	return filepath.Join(p.opts.StagingDir, fmt.Sprintf("overpass_tile_%d_%s.json", tileID, p.opts.RunID))
}

func decodeStaged(path string) (*Response, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: open staged response")
	}
	defer f.Close() //nolint:errcheck
	return DecodeResponse(f)
}
