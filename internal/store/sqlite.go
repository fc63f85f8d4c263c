package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/poi-interlink/internal/model"
	"github.com/sells-group/poi-interlink/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS interlink_runs (
	id           TEXT PRIMARY KEY,
	dataset      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'queued',
	pois         INTEGER NOT NULL DEFAULT 0,
	tiles        INTEGER NOT NULL DEFAULT 0,
	failed_tiles INTEGER NOT NULL DEFAULT 0,
	features     INTEGER NOT NULL DEFAULT 0,
	matched      INTEGER NOT NULL DEFAULT 0,
	unmatched    INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS interlink_pairs (
	run_id        TEXT NOT NULL REFERENCES interlink_runs(id),
	seq           INTEGER NOT NULL,
	source_id     TEXT NOT NULL,
	source_name   TEXT NOT NULL,
	theme         TEXT NOT NULL,
	class_name    TEXT NOT NULL,
	subclass_n    TEXT NOT NULL,
	source_geom   BLOB NOT NULL,
	feature_id    TEXT NOT NULL,
	feature_names TEXT NOT NULL,
	feature_tags  TEXT NOT NULL,
	feature_geom  BLOB NOT NULL,
	tot_score     REAL NOT NULL,
	name_dist     INTEGER NOT NULL,
	tag_dist      INTEGER NOT NULL,
	spatial_dist  REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS interlink_unmatched (
	run_id    TEXT NOT NULL REFERENCES interlink_runs(id),
	seq       INTEGER NOT NULL,
	source_id TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS interlink_failed_tiles (
	run_id     TEXT NOT NULL,
	tile_id    INTEGER NOT NULL,
	min_lon    REAL NOT NULL,
	min_lat    REAL NOT NULL,
	max_lon    REAL NOT NULL,
	max_lat    REAL NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL DEFAULT 'transient',
	attempts   INTEGER NOT NULL DEFAULT 0,
	failed_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, tile_id)
);

CREATE INDEX IF NOT EXISTS idx_interlink_runs_status ON interlink_runs(status);
CREATE INDEX IF NOT EXISTS idx_interlink_runs_dataset ON interlink_runs(dataset);
CREATE INDEX IF NOT EXISTS idx_interlink_pairs_feature ON interlink_pairs(feature_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, dataset string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Dataset:   dataset,
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interlink_runs (id, dataset, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Dataset, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE interlink_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// FinishRun stores the final counters, status and error of run.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.Run) error {
	run.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE interlink_runs SET status = ?, pois = ?, tiles = ?, failed_tiles = ?, features = ?,
		 matched = ?, unmatched = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(run.Status), run.POIs, run.Tiles, run.FailedTiles, run.Features,
		run.Matched, run.Unmatched, run.Error, run.UpdatedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

const runSelect = `SELECT id, dataset, status, pois, tiles, failed_tiles, features, matched, unmatched, error, created_at, updated_at FROM interlink_runs`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, runID)
	r, err := scanRun(row)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := runSelect + ` WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Dataset != "" {
		query += ` AND dataset = ?`
		args = append(args, filter.Dataset)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, listLimit(filter.Limit))

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// SavePairs inserts pairs in one transaction, preserving their order.
func (s *SQLiteStore) SavePairs(ctx context.Context, runID string, pairs []model.CandidatePairRecord) (int64, error) {
	if len(pairs) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(pairs))
	for i, p := range pairs {
		row, err := pairRow(runID, i, p)
		if err != nil {
			return 0, err
		}
		rows[i] = row
	}
	err := s.insertAll(ctx, "interlink_pairs", pairColumns, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: save pairs for run %s", runID)
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) ListPairs(ctx context.Context, runID string) ([]model.CandidatePairRecord, error) {
	rows, err := s.db.QueryContext(ctx, pairSelect+` WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pairs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.CandidatePairRecord
	for rows.Next() {
		var ps pairScan
		if err := rows.Scan(ps.dest()...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pair")
		}
		rec, err := ps.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list pairs iterate")
}

func (s *SQLiteStore) SaveUnmatched(ctx context.Context, runID string, ids []string) error {
	rows := make([][]any, len(ids))
	for i, id := range ids {
		rows[i] = []any{runID, i, id}
	}
	err := s.insertAll(ctx, "interlink_unmatched", []string{"run_id", "seq", "source_id"}, rows)
	return eris.Wrapf(err, "sqlite: save unmatched for run %s", runID)
}

func (s *SQLiteStore) ListUnmatched(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_id FROM interlink_unmatched WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unmatched")
	}
	defer rows.Close() //nolint:errcheck

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan unmatched")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: list unmatched iterate")
}

// SaveFailedTiles upserts tiles keyed by (run_id, tile_id).
func (s *SQLiteStore) SaveFailedTiles(ctx context.Context, tiles []resilience.FailedTile) error {
	for _, ft := range tiles {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO interlink_failed_tiles
			 (run_id, tile_id, min_lon, min_lat, max_lon, max_lat, error, error_type, attempts, failed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, tile_id) DO UPDATE SET
			 error = excluded.error, error_type = excluded.error_type,
			 attempts = excluded.attempts, failed_at = excluded.failed_at`,
			failedTileRow(ft)...,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: save failed tile %d", ft.TileID)
		}
	}
	return nil
}

func (s *SQLiteStore) ListFailedTiles(ctx context.Context, runID string) ([]resilience.FailedTile, error) {
	rows, err := s.db.QueryContext(ctx, failedTileSelect+` WHERE run_id = ? ORDER BY tile_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failed tiles")
	}
	defer rows.Close() //nolint:errcheck

	var out []resilience.FailedTile
	for rows.Next() {
		var ft resilience.FailedTile
		if err := rows.Scan(failedTileDest(&ft)...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failed tile")
		}
		out = append(out, ft)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list failed tiles iterate")
}

func (s *SQLiteStore) insertAll(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertSQL(table, columns))
	if err != nil {
		return eris.Wrap(err, "prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return eris.Wrap(err, "insert row")
		}
	}
	return eris.Wrap(tx.Commit(), "commit")
}

func insertSQL(table string, columns []string) string {
	return "INSERT INTO " + table + " (" + strings.Join(columns, ", ") + ") VALUES (?" +
		strings.Repeat(", ?", len(columns)-1) + ")"
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	err := row.Scan(&r.ID, &r.Dataset, &r.Status, &r.POIs, &r.Tiles, &r.FailedTiles,
		&r.Features, &r.Matched, &r.Unmatched, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "scan run")
	}
	return &r, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
