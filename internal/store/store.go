// Package store persists scoring runs and their top candidates locally, so
// past runs can be listed and compared without recomputation.
package store

import (
	"context"
	"time"
)

// Run statuses.
const (
	StatusComplete = "complete"
	StatusEmpty    = "empty" // run finished but the candidate area was empty
)

// Run is one persisted scoring run.
type Run struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Status     string    `json:"status"`
	TargetEPSG int       `json:"target_epsg"`
	CellSize   float64   `json:"cell_size"`
	CellCount  int       `json:"cell_count"`
	TopScore   float64   `json:"top_score"`
	ConfigJSON string    `json:"config_json"`
}

// TopCell is one persisted top-N candidate. Geom is the cell centroid as
// EWKB in the run's target CRS.
type TopCell struct {
	RunID string  `json:"run_id"`
	Rank  int     `json:"rank"`
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Score float64 `json:"score"`
	Geom  []byte  `json:"-"`
}

// Store defines the persistence interface for scoring runs.
type Store interface {
	SaveRun(ctx context.Context, run Run, top []TopCell) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	TopCells(ctx context.Context, runID string) ([]TopCell, error)

	Migrate(ctx context.Context) error
	Close() error
}
