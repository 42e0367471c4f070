package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
)

// SQLiteStore is the default backend: one local file, one connection,
// busy-timeout pragma so concurrent CLI invocations queue instead of
// failing.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS events(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	ts INTEGER,
	type TEXT,
	component TEXT,
	message TEXT,
	details TEXT,
	duration_ns INTEGER,
	success INTEGER
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id);
CREATE TABLE IF NOT EXISTS generations(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	ts INTEGER,
	config_hash TEXT,
	peer_count INTEGER,
	filter_count INTEGER,
	duration_ns INTEGER,
	success INTEGER,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_generations_ts ON generations(ts);
CREATE TABLE IF NOT EXISTS deployments(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	router TEXT,
	config_hash TEXT,
	method TEXT,
	ts INTEGER,
	duration_ns INTEGER,
	outcome TEXT,
	activation_confirmed INTEGER,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_deployments_router ON deployments(router);
CREATE INDEX IF NOT EXISTS idx_deployments_ts ON deployments(ts);
`

func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("state dir: %w: %v", errdefs.ErrConfiguration, err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w: %v", path, errdefs.ErrConfiguration, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("state schema: %w: %v", errdefs.ErrConfiguration, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) AppendEvent(ev model.Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	details, _ := json.Marshal(ev.Details)
	_, err := s.db.Exec(
		`INSERT INTO events(run_id, ts, type, component, message, details, duration_ns, success) VALUES(?,?,?,?,?,?,?,?)`,
		ev.RunID, ev.Timestamp.UnixNano(), string(ev.Type), ev.Component, ev.Message, string(details), int64(ev.Duration), boolInt(ev.Success))
	return err
}

func (s *SQLiteStore) TrackGeneration(rec model.GenerationRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO generations(run_id, ts, config_hash, peer_count, filter_count, duration_ns, success, error) VALUES(?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.Timestamp.UnixNano(), rec.ConfigHash, rec.PeerCount, rec.FilterCount, int64(rec.Duration), boolInt(rec.Success), rec.Error)
	return err
}

func (s *SQLiteStore) TrackDeployment(rec model.DeploymentRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO deployments(run_id, router, config_hash, method, ts, duration_ns, outcome, activation_confirmed, error) VALUES(?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.Router, rec.ConfigHash, rec.Method, rec.Timestamp.UnixNano(), int64(rec.Duration), string(rec.Outcome), boolInt(rec.ActivationConfirmed), rec.Error)
	return err
}

func (s *SQLiteStore) Events(since, until time.Time, limit int) ([]model.Event, error) {
	if until.IsZero() {
		until = time.Now()
	}
	rows, err := s.db.Query(
		`SELECT id, run_id, ts, type, component, message, details, duration_ns, success
		 FROM events WHERE ts >= ? AND ts <= ? ORDER BY ts DESC, id DESC LIMIT ?`,
		since.UnixNano(), until.UnixNano(), normLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var ev model.Event
		var ts, dur int64
		var typ, details string
		var success int
		if err := rows.Scan(&ev.ID, &ev.RunID, &ts, &typ, &ev.Component, &ev.Message, &details, &dur, &success); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, ts)
		ev.Type = model.EventType(typ)
		ev.Duration = time.Duration(dur)
		ev.Success = success != 0
		if details != "" && details != "null" {
			_ = json.Unmarshal([]byte(details), &ev.Details)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Generations(limit int) ([]model.GenerationRecord, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, ts, config_hash, peer_count, filter_count, duration_ns, success, error
		 FROM generations ORDER BY ts DESC, id DESC LIMIT ?`, normLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.GenerationRecord
	for rows.Next() {
		var rec model.GenerationRecord
		var ts, dur int64
		var success int
		if err := rows.Scan(&rec.ID, &rec.RunID, &ts, &rec.ConfigHash, &rec.PeerCount, &rec.FilterCount, &dur, &success, &rec.Error); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ts)
		rec.Duration = time.Duration(dur)
		rec.Success = success != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Deployments(router string, limit int) ([]model.DeploymentRecord, error) {
	query := `SELECT id, run_id, router, config_hash, method, ts, duration_ns, outcome, activation_confirmed, error
		 FROM deployments`
	args := []any{}
	if router != "" {
		query += ` WHERE router = ?`
		args = append(args, router)
	}
	query += ` ORDER BY ts DESC, id DESC LIMIT ?`
	args = append(args, normLimit(limit))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.DeploymentRecord
	for rows.Next() {
		var rec model.DeploymentRecord
		var ts, dur int64
		var outcome string
		var confirmed int
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Router, &rec.ConfigHash, &rec.Method, &ts, &dur, &outcome, &confirmed, &rec.Error); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ts)
		rec.Duration = time.Duration(dur)
		rec.Outcome = model.DeploymentOutcome(outcome)
		rec.ActivationConfirmed = confirmed != 0
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Prune(retention time.Duration, maxGenerations int) error {
	cutoff := time.Now().Add(-retention).UnixNano()
	if _, err := s.db.Exec(`DELETE FROM events WHERE ts < ?`, cutoff); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM deployments WHERE ts < ?`, cutoff); err != nil {
		return err
	}
	if maxGenerations > 0 {
		_, err := s.db.Exec(
			`DELETE FROM generations WHERE id NOT IN (SELECT id FROM generations ORDER BY ts DESC, id DESC LIMIT ?)`,
			maxGenerations)
		if err != nil {
			return err
		}
	}
	return nil
}

// ExportJSON writes the full history since a point in time as one JSON
// document, for external analysis.
func (s *SQLiteStore) ExportJSON(w io.Writer, since time.Time) error {
	return exportJSON(s, w, since)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func normLimit(limit int) int {
	if limit <= 0 {
		return 1000
	}
	return limit
}
