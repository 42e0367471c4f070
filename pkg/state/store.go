// Package state persists the append-only run history: events, generation
// summaries, and per-router deployment records. Past entries are never
// mutated; corrections are new entries, and only the retention policy
// removes anything.
package state

import (
	"fmt"
	"io"
	"time"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
)

// Store is the persistence contract shared by the backends.
type Store interface {
	AppendEvent(ev model.Event) error
	TrackGeneration(rec model.GenerationRecord) error
	TrackDeployment(rec model.DeploymentRecord) error

	Events(since, until time.Time, limit int) ([]model.Event, error)
	Generations(limit int) ([]model.GenerationRecord, error)
	// Deployments filters by router when router is non-empty.
	Deployments(router string, limit int) ([]model.DeploymentRecord, error)

	// Prune removes events older than retention and keeps only the newest
	// maxGenerations generation records.
	Prune(retention time.Duration, maxGenerations int) error
	ExportJSON(w io.Writer, since time.Time) error

	Close() error
}

// Open builds the configured backend. sqlite is the default and needs no
// external service; mysql is for fleets that centralize run history.
func Open(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return OpenSQLite(cfg.DatabasePath)
	case "mysql":
		return OpenMySQL(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown state backend %q: %w", cfg.Backend, errdefs.ErrConfiguration)
	}
}

// StoreConfig selects and parameterizes a backend.
type StoreConfig struct {
	Backend      string
	DatabasePath string // sqlite
	DSN          string // mysql
}
