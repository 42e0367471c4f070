package model

import "time"

// DeploymentOutcome is the terminal result of pushing one router.
type DeploymentOutcome string

const (
	DeploySuccess DeploymentOutcome = "success"
	DeployFailed  DeploymentOutcome = "failed"
	DeploySkipped DeploymentOutcome = "skipped"
	// DeployUploadedNotActivated means the file transfer succeeded but the
	// remote reload command failed. The router holds new files under an old
	// running config; operators must resolve it by hand.
	DeployUploadedNotActivated DeploymentOutcome = "uploaded_not_activated"
	// DeployAborted means the run ended (timeout or cancellation) before
	// this router was started. Nothing was uploaded. Unlike a skip, an abort
	// counts against the run's terminal state.
	DeployAborted DeploymentOutcome = "aborted"
)

// DeploymentRecord is appended once per run per router and never mutated.
type DeploymentRecord struct {
	ID                  int64             `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID               string            `json:"runId" gorm:"index"`
	Router              string            `json:"router" gorm:"index"`
	ConfigHash          string            `json:"configHash"`
	Method              string            `json:"method"` // "ssh"
	Timestamp           time.Time         `json:"timestamp" gorm:"index"`
	Duration            time.Duration     `json:"duration"`
	Outcome             DeploymentOutcome `json:"outcome"`
	ActivationConfirmed bool              `json:"activationConfirmed"`
	Error               string            `json:"error,omitempty"`
}

// RunState is the deployment orchestrator state machine.
type RunState string

const (
	RunStaging        RunState = "STAGING"
	RunValidating     RunState = "VALIDATING"
	RunValid          RunState = "VALID"
	RunInvalid        RunState = "INVALID"
	RunDeploying      RunState = "DEPLOYING"
	RunSuccess        RunState = "SUCCESS"
	RunPartialFailure RunState = "PARTIAL_FAILURE"
	RunFailed         RunState = "FAILED"
)

// Terminal reports whether the state machine can advance further.
func (s RunState) Terminal() bool {
	switch s {
	case RunSuccess, RunPartialFailure, RunFailed, RunInvalid:
		return true
	}
	return false
}
