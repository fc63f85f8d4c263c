package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/poi-interlink/internal/db"
	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pgxCfg.MaxConns = 4
	pgxCfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not close it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS interlink_runs (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	dataset      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	pois         INTEGER NOT NULL DEFAULT 0,
	tiles        INTEGER NOT NULL DEFAULT 0,
	failed_tiles INTEGER NOT NULL DEFAULT 0,
	features     INTEGER NOT NULL DEFAULT 0,
	matched      INTEGER NOT NULL DEFAULT 0,
	unmatched    INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interlink_pairs (
	run_id        TEXT NOT NULL REFERENCES interlink_runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	source_id     TEXT NOT NULL,
	source_name   TEXT NOT NULL,
	theme         TEXT NOT NULL,
	class_name    TEXT NOT NULL,
	subclass_n    TEXT NOT NULL,
	source_geom   BYTEA NOT NULL,
	feature_id    TEXT NOT NULL,
	feature_names JSONB NOT NULL,
	feature_tags  JSONB NOT NULL,
	feature_geom  BYTEA NOT NULL,
	tot_score     DOUBLE PRECISION NOT NULL,
	name_dist     INTEGER NOT NULL,
	tag_dist      INTEGER NOT NULL,
	spatial_dist  DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS interlink_unmatched (
	run_id    TEXT NOT NULL REFERENCES interlink_runs(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	source_id TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS interlink_failed_tiles (
	run_id     TEXT NOT NULL,
	tile_id    INTEGER NOT NULL,
	min_lon    DOUBLE PRECISION NOT NULL,
	min_lat    DOUBLE PRECISION NOT NULL,
	max_lon    DOUBLE PRECISION NOT NULL,
	max_lat    DOUBLE PRECISION NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT 'transient',
	attempts   INTEGER NOT NULL DEFAULT 0,
	failed_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, tile_id)
);

CREATE INDEX IF NOT EXISTS idx_interlink_runs_status ON interlink_runs(status);
CREATE INDEX IF NOT EXISTS idx_interlink_runs_dataset ON interlink_runs(dataset);
CREATE INDEX IF NOT EXISTS idx_interlink_pairs_feature ON interlink_pairs(feature_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, dataset string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Dataset:   dataset,
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO interlink_runs (id, dataset, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Dataset, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE interlink_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

// FinishRun stores the final counters, status and error of run.
func (s *PostgresStore) FinishRun(ctx context.Context, run *model.Run) error {
	run.UpdatedAt = time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE interlink_runs SET status = $1, pois = $2, tiles = $3, failed_tiles = $4, features = $5,
		 matched = $6, unmatched = $7, error = $8, updated_at = $9 WHERE id = $10`,
		string(run.Status), run.POIs, run.Tiles, run.FailedTiles, run.Features,
		run.Matched, run.Unmatched, run.Error, run.UpdatedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanRun(s.pool.QueryRow(ctx, runSelect+` WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: get run: run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := runSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Dataset != "" {
		query += fmt.Sprintf(` AND dataset = $%d`, argIdx)
		args = append(args, filter.Dataset)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SavePairs bulk-copies pairs into interlink_pairs.
func (s *PostgresStore) SavePairs(ctx context.Context, runID string, pairs []model.CandidatePairRecord) (int64, error) {
	rows := make([][]any, len(pairs))
	for i, p := range pairs {
		row, err := pairRow(runID, i, p)
		if err != nil {
			return 0, err
		}
		rows[i] = row
	}
	n, err := db.CopyFrom(ctx, s.pool, "interlink_pairs", pairColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: save pairs for run %s", runID)
	}
	return n, nil
}

func (s *PostgresStore) ListPairs(ctx context.Context, runID string) ([]model.CandidatePairRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id, source_name, theme, class_name, subclass_n, source_geom,
		 feature_id, feature_names::text, feature_tags::text, feature_geom, tot_score, name_dist, tag_dist, spatial_dist
		 FROM interlink_pairs WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pairs")
	}
	defer rows.Close()

	var out []model.CandidatePairRecord
	for rows.Next() {
		var ps pairScan
		if err := rows.Scan(ps.dest()...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pair")
		}
		rec, err := ps.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pairs iterate")
}

func (s *PostgresStore) SaveUnmatched(ctx context.Context, runID string, ids []string) error {
	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{runID, i, id}
	}
	_, err := db.CopyFrom(ctx, s.pool, "interlink_unmatched", []string{"run_id", "seq", "source_id"}, rows)
	return eris.Wrapf(err, "postgres: save unmatched for run %s", runID)
}

func (s *PostgresStore) ListUnmatched(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_id FROM interlink_unmatched WHERE run_id = $1 ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unmatched")
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return ids, eris.Wrap(err, "postgres: list unmatched")
}

// SaveFailedTiles upserts tiles keyed by (run_id, tile_id).
func (s *PostgresStore) SaveFailedTiles(ctx context.Context, tiles []resilience.FailedTile) error {
	rows := make([][]any, len(tiles))
	for i, ft := range tiles {
		rows[i] = failedTileRow(ft)
	}
	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "interlink_failed_tiles",
		Columns:      failedTileColumns,
		ConflictKeys: []string{"run_id", "tile_id"},
	}, rows)
	return eris.Wrap(err, "postgres: save failed tiles")
}

func (s *PostgresStore) ListFailedTiles(ctx context.Context, runID string) ([]resilience.FailedTile, error) {
	rows, err := s.pool.Query(ctx, failedTileSelect+` WHERE run_id = $1 ORDER BY tile_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failed tiles")
	}
	defer rows.Close()

	var out []resilience.FailedTile
	for rows.Next() {
		var ft resilience.FailedTile
		if err := rows.Scan(failedTileDest(&ft)...); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failed tile")
		}
		out = append(out, ft)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list failed tiles iterate")
}
