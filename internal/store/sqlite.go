package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	status      TEXT NOT NULL,
	target_epsg INTEGER NOT NULL,
	cell_size   REAL NOT NULL,
	cell_count  INTEGER NOT NULL,
	top_score   REAL NOT NULL,
	config      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS top_cells (
	run_id TEXT NOT NULL REFERENCES runs(id),
	rank   INTEGER NOT NULL,
	row    INTEGER NOT NULL,
	col    INTEGER NOT NULL,
	score  REAL NOT NULL,
	geom   BLOB,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_top_cells_run_id ON top_cells(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, top []TopCell) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, status, target_epsg, cell_size, cell_count, top_score, config)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC(), run.Status, run.TargetEPSG, run.CellSize, run.CellCount, run.TopScore, run.ConfigJSON,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	for _, c := range top {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO top_cells (run_id, rank, row, col, score, geom) VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, c.Rank, c.Row, c.Col, c.Score, c.Geom,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert top cell rank %d", c.Rank)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit run")
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, status, target_epsg, cell_size, cell_count, top_score, config
		 FROM runs WHERE id = ?`,
		runID,
	)
	var r Run
	var createdAt time.Time
	err := row.Scan(&r.ID, &createdAt, &r.Status, &r.TargetEPSG, &r.CellSize, &r.CellCount, &r.TopScore, &r.ConfigJSON)
	if err != nil {
		if eris.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(err, "sqlite: run %s not found", runID)
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	r.CreatedAt = createdAt
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, status, target_epsg, cell_size, cell_count, top_score, config
		 FROM runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.Status, &r.TargetEPSG, &r.CellSize, &r.CellCount, &r.TopScore, &r.ConfigJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate runs")
	}
	return runs, nil
}

func (s *SQLiteStore) TopCells(ctx context.Context, runID string) ([]TopCell, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, rank, row, col, score, geom FROM top_cells WHERE run_id = ? ORDER BY rank`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: top cells for %s", runID)
	}
	defer rows.Close()

	var cells []TopCell
	for rows.Next() {
		var c TopCell
		if err := rows.Scan(&c.RunID, &c.Rank, &c.Row, &c.Col, &c.Score, &c.Geom); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan top cell")
		}
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate top cells")
	}
	return cells, nil
}
