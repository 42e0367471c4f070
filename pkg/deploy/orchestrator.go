// Package deploy stages generated artifact trees and pushes them to the
// fleet. A run walks a fixed state machine; deployment never starts unless
// every router passed validation, and one router's failure never aborts
// the others.
package deploy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"autonet/pkg/errdefs"
	"autonet/pkg/model"
	"autonet/pkg/validate"
)

// Orchestrator drives one deployment run.
type Orchestrator struct {
	Transport   Transport
	Lock        StagingLock
	Validator   *validate.Validator
	MaxParallel int // 1 = sequential, the safety baseline
	Now         func() time.Time
	// Observer, when set, receives one event per state change and per
	// router outcome. Used to feed the state store.
	Observer func(model.Event)

	log   *zap.Logger
	state model.RunState
}

func NewOrchestrator(transport Transport, lock StagingLock, validator *validate.Validator, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		Transport:   transport,
		Lock:        lock,
		Validator:   validator,
		MaxParallel: 1,
		Now:         time.Now,
		log:         log,
	}
}

// Report is the outcome of one run. Records follow the configured router
// order regardless of execution order.
type Report struct {
	RunID      string                   `json:"runId"`
	State      model.RunState           `json:"state"`
	Validation []model.ValidationResult `json:"validation,omitempty"`
	Records    []model.DeploymentRecord `json:"records,omitempty"`
	StartedAt  time.Time                `json:"startedAt"`
	FinishedAt time.Time                `json:"finishedAt"`
}

// Err maps the run's terminal state to the sentinel error carrying its
// failure kind, nil for a fully successful run. Callers hand the result to
// errdefs.ExitCode, keeping exit handling in one place.
func (r Report) Err() error {
	switch r.State {
	case model.RunSuccess:
		return nil
	case model.RunInvalid:
		return fmt.Errorf("run %s: %w", r.RunID, errdefs.ErrValidation)
	case model.RunPartialFailure:
		return fmt.Errorf("run %s: %w", r.RunID, errdefs.ErrPartialDeployment)
	default:
		return fmt.Errorf("run %s: %w", r.RunID, errdefs.ErrUpload)
	}
}

// ExitCode is the process exit status for the run's terminal state.
func (r Report) ExitCode() int { return errdefs.ExitCode(r.Err()) }

func (o *Orchestrator) transition(runID string, next model.RunState) {
	o.log.Info("run state", zap.String("run", runID), zap.String("from", string(o.state)), zap.String("to", string(next)))
	o.state = next
	o.observe(model.Event{
		RunID:     runID,
		Timestamp: o.Now(),
		Type:      model.EventInfo,
		Component: "deploy",
		Message:   "state " + string(next),
		Success:   true,
	})
}

func (o *Orchestrator) observe(ev model.Event) {
	if o.Observer != nil {
		o.Observer(ev)
	}
}

// Stage writes every router's artifact tree under stageDir, one directory
// per router. Trees are rebuilt from scratch so stale files never survive.
func (o *Orchestrator) Stage(configs []*model.RouterConfig, stageDir string) error {
	return WriteTrees(configs, stageDir)
}

// WriteTrees materializes artifact trees on disk, one directory per router.
func WriteTrees(configs []*model.RouterConfig, dir string) error {
	for _, rc := range configs {
		root := filepath.Join(dir, rc.RouterID)
		if err := os.RemoveAll(root); err != nil {
			return fmt.Errorf("clear stage dir for %s: %w: %v", rc.RouterID, errdefs.ErrUpload, err)
		}
		names := make([]string, 0, len(rc.Files))
		for name := range rc.Files {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			path := filepath.Join(root, name)
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("stage %s: %w: %v", path, errdefs.ErrUpload, err)
			}
			if err := os.WriteFile(path, []byte(rc.Files[name]), 0o644); err != nil {
				return fmt.Errorf("stage %s: %w: %v", path, errdefs.ErrUpload, err)
			}
		}
	}
	return nil
}

// Run executes the full state machine: stage, validate, push.
func (o *Orchestrator) Run(ctx context.Context, runID string, schema validate.SchemaValidator,
	routers []model.Router, configs []*model.RouterConfig, stageDir string) Report {

	report := Report{RunID: runID, StartedAt: o.Now()}
	defer func() {
		report.FinishedAt = o.Now()
	}()

	o.transition(runID, model.RunStaging)
	if err := o.Lock.Acquire(); err != nil {
		o.log.Error("staging lock", zap.Error(err))
		o.transition(runID, model.RunFailed)
		report.State = model.RunFailed
		return report
	}
	defer o.Lock.Release()

	if err := o.Stage(configs, stageDir); err != nil {
		o.log.Error("staging", zap.Error(err))
		o.transition(runID, model.RunFailed)
		report.State = model.RunFailed
		return report
	}

	o.transition(runID, model.RunValidating)
	results, ok := o.Validator.ValidateAll(schema, configs, stageDir)
	report.Validation = results
	if !ok {
		o.transition(runID, model.RunInvalid)
		report.State = model.RunInvalid
		o.observe(model.Event{RunID: runID, Timestamp: o.Now(), Type: model.EventValidationFailure,
			Component: "validate", Message: "validation failed; deployment blocked"})
		return report
	}
	o.transition(runID, model.RunValid)
	o.observe(model.Event{RunID: runID, Timestamp: o.Now(), Type: model.EventValidationSuccess,
		Component: "validate", Message: "all routers validated", Success: true})

	o.transition(runID, model.RunDeploying)
	report.Records = o.push(ctx, runID, routers, configs, stageDir)

	terminal := terminalState(report.Records)
	o.transition(runID, terminal)
	report.State = terminal
	return report
}

// push deploys every router, at most MaxParallel at a time. The records
// slice is indexed by the configured order so output never depends on
// scheduling.
func (o *Orchestrator) push(ctx context.Context, runID string, routers []model.Router,
	configs []*model.RouterConfig, stageDir string) []model.DeploymentRecord {

	byID := make(map[string]*model.RouterConfig, len(configs))
	for _, rc := range configs {
		byID[rc.RouterID] = rc
	}

	records := make([]model.DeploymentRecord, len(routers))
	sem := make(chan struct{}, o.maxParallel())
	var wg sync.WaitGroup
	for i, router := range routers {
		wg.Add(1)
		go func(i int, router model.Router) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			records[i] = o.pushOne(ctx, runID, router, byID[router.Name], stageDir)
		}(i, router)
	}
	wg.Wait()
	return records
}

func (o *Orchestrator) maxParallel() int {
	if o.MaxParallel < 1 {
		return 1
	}
	return o.MaxParallel
}

func (o *Orchestrator) pushOne(ctx context.Context, runID string, router model.Router,
	rc *model.RouterConfig, stageDir string) model.DeploymentRecord {

	start := o.Now()
	rec := model.DeploymentRecord{
		RunID:     runID,
		Router:    router.Name,
		Method:    "ssh",
		Timestamp: start,
	}
	if rc != nil {
		rec.ConfigHash = ConfigHash(rc)
	}
	finish := func(outcome model.DeploymentOutcome, err error) model.DeploymentRecord {
		rec.Duration = o.Now().Sub(start)
		rec.Outcome = outcome
		rec.ActivationConfirmed = outcome == model.DeploySuccess
		evType := model.EventDeploymentSuccess
		if err != nil {
			rec.Error = err.Error()
			evType = model.EventDeploymentFailure
			o.log.Error("router deployment", zap.String("router", router.Name), zap.Error(err))
		}
		o.observe(model.Event{RunID: runID, Timestamp: o.Now(), Type: evType, Component: "deploy",
			Message: fmt.Sprintf("%s: %s", router.Name, outcome), Duration: rec.Duration,
			Success: err == nil, Details: map[string]string{"router": router.Name, "outcome": string(outcome)}})
		return rec
	}

	if router.Maintenance {
		o.log.Info("router in maintenance mode, skipping", zap.String("router", router.Name))
		return finish(model.DeploySkipped, nil)
	}
	if rc == nil {
		return finish(model.DeploySkipped, nil)
	}
	// A router that has not started yet is aborted when the run context
	// ends; one that has started is never cancelled mid-flight. Aborts carry
	// their cause and count against the run's terminal state.
	if err := ctx.Err(); err != nil {
		return finish(model.DeployAborted, fmt.Errorf("run aborted before deployment started: %w", err))
	}
	opCtx := context.WithoutCancel(ctx)

	srcDir := filepath.Join(stageDir, router.Name)
	if err := o.Transport.Upload(opCtx, router, srcDir); err != nil {
		return finish(model.DeployFailed, err)
	}
	if err := o.Transport.Activate(opCtx, router); err != nil {
		return finish(model.DeployUploadedNotActivated, err)
	}
	return finish(model.DeploySuccess, nil)
}

// terminalState folds per-router outcomes into the run state. Maintenance
// and missing-config skips are deliberate and count as ok; failures, partial
// activations, and aborts all count against the run.
func terminalState(records []model.DeploymentRecord) model.RunState {
	var ok, bad int
	for _, r := range records {
		switch r.Outcome {
		case model.DeploySuccess, model.DeploySkipped:
			ok++
		default:
			bad++
		}
	}
	switch {
	case bad == 0:
		return model.RunSuccess
	case ok == 0:
		return model.RunFailed
	default:
		return model.RunPartialFailure
	}
}

// ConfigHash is a stable digest over a router's artifact tree, used to
// detect unchanged configurations across runs.
func ConfigHash(rc *model.RouterConfig) string {
	names := make([]string, 0, len(rc.Files))
	for name := range rc.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(rc.Files[name]))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
