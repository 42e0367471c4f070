package state

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autonet/pkg/model"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAppendAndQueryEvents(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendEvent(model.Event{
			RunID:     "run-1",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Type:      model.EventGenerationSuccess,
			Component: "irr",
			Message:   "ok",
			Details:   map[string]string{"asn": "AS64512"},
			Success:   true,
		}))
	}

	events, err := s.Events(base, base.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Newest first.
	assert.True(t, events[0].Timestamp.After(events[2].Timestamp))
	assert.Equal(t, "AS64512", events[0].Details["asn"])

	// Time range excludes earlier entries.
	events, err = s.Events(base.Add(90*time.Second), base.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)

	events, err = s.Events(base, base.Add(time.Hour), 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestTrackGenerationAndDeployment(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	require.NoError(t, s.TrackGeneration(model.GenerationRecord{
		RunID: "run-1", Timestamp: now, ConfigHash: "abc", PeerCount: 12, FilterCount: 24, Success: true,
	}))
	require.NoError(t, s.TrackDeployment(model.DeploymentRecord{
		RunID: "run-1", Router: "dc5-1", Timestamp: now, Outcome: model.DeploySuccess, ActivationConfirmed: true,
	}))
	require.NoError(t, s.TrackDeployment(model.DeploymentRecord{
		RunID: "run-1", Router: "dc5-2", Timestamp: now, Outcome: model.DeployFailed, Error: "rsync exited 12",
	}))

	gens, err := s.Generations(0)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, 12, gens[0].PeerCount)

	deps, err := s.Deployments("dc5-2", 0)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, model.DeployFailed, deps[0].Outcome)
	assert.Contains(t, deps[0].Error, "rsync")

	all, err := s.Deployments("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPruneRetentionAndGenerationCap(t *testing.T) {
	s := openTestStore(t)
	old := time.Now().Add(-72 * time.Hour)
	recent := time.Now()

	require.NoError(t, s.AppendEvent(model.Event{RunID: "old", Timestamp: old, Type: model.EventInfo}))
	require.NoError(t, s.AppendEvent(model.Event{RunID: "new", Timestamp: recent, Type: model.EventInfo}))
	for i := 0; i < 5; i++ {
		require.NoError(t, s.TrackGeneration(model.GenerationRecord{
			RunID: "run", Timestamp: recent.Add(time.Duration(i) * time.Minute),
		}))
	}

	require.NoError(t, s.Prune(24*time.Hour, 3))

	events, err := s.Events(time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].RunID)

	gens, err := s.Generations(0)
	require.NoError(t, err)
	assert.Len(t, gens, 3)
}

func TestExportJSON(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()
	require.NoError(t, s.AppendEvent(model.Event{RunID: "run-1", Timestamp: now, Type: model.EventInfo, Message: "hello"}))
	require.NoError(t, s.TrackGeneration(model.GenerationRecord{RunID: "run-1", Timestamp: now, Success: true}))
	require.NoError(t, s.TrackDeployment(model.DeploymentRecord{RunID: "run-1", Router: "dc5-1", Timestamp: now, Outcome: model.DeploySuccess}))

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(&buf, now.Add(-time.Hour)))

	var doc struct {
		Events      []model.Event            `json:"events"`
		Generations []model.GenerationRecord `json:"generations"`
		Deployments []model.DeploymentRecord `json:"deployments"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.Events, 1)
	assert.Len(t, doc.Generations, 1)
	assert.Len(t, doc.Deployments, 1)
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(StoreConfig{Backend: "redis"})
	assert.Error(t, err)
}
