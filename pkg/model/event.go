package model

import "time"

// EventType classifies observability log entries.
type EventType string

const (
	EventGenerationStart   EventType = "generation_start"
	EventGenerationSuccess EventType = "generation_success"
	EventGenerationFailure EventType = "generation_failure"
	EventDeploymentStart   EventType = "deployment_start"
	EventDeploymentSuccess EventType = "deployment_success"
	EventDeploymentFailure EventType = "deployment_failure"
	EventValidationSuccess EventType = "validation_success"
	EventValidationFailure EventType = "validation_failure"
	EventAPICallSuccess    EventType = "api_call_success"
	EventAPICallFailure    EventType = "api_call_failure"
	EventError             EventType = "error"
	EventWarning           EventType = "warning"
	EventInfo              EventType = "info"
)

// Event is an append-only observability entry. Corrections are new events;
// past entries are only ever removed by the retention policy.
type Event struct {
	ID          int64             `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID       string            `json:"runId" gorm:"index"` // correlation id for one pipeline run
	Timestamp   time.Time         `json:"timestamp" gorm:"index"`
	Type        EventType         `json:"type" gorm:"index"`
	Component   string            `json:"component"`
	Message     string            `json:"message"`
	Details     map[string]string `json:"details,omitempty" gorm:"serializer:json"`
	Duration    time.Duration     `json:"duration,omitempty"`
	Success     bool              `json:"success"`
}

// GenerationRecord summarizes one configuration generation run.
type GenerationRecord struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID       string    `json:"runId" gorm:"index"`
	Timestamp   time.Time `json:"timestamp" gorm:"index"`
	ConfigHash  string    `json:"configHash"`
	PeerCount   int       `json:"peerCount"`
	FilterCount int       `json:"filterCount"`
	Duration    time.Duration `json:"duration"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
}
