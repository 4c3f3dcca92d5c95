// Package saga coordinates the multi-stage verdict enrichment pipeline. A
// run executes stages sequentially and shares a data bag between them;
// optional stages may fail without aborting the run, while a required stage
// failure compensates completed required stages in reverse order.
package saga

import (
	"context"
	"time"
)

// RunState represents the current state of a pipeline run
type RunState string

const (
	RunStateStarted     RunState = "started"
	RunStateRunning     RunState = "running"
	RunStateCompleted   RunState = "completed"
	RunStateFailed      RunState = "failed"
	RunStateCompensated RunState = "compensated"
)

// StageState represents the state of an individual stage
type StageState string

const (
	StageStatePending     StageState = "pending"
	StageStateRunning     StageState = "running"
	StageStateCompleted   StageState = "completed"
	StageStateFailed      StageState = "failed"
	StageStateCompensated StageState = "compensated"
)

// RunID uniquely identifies a pipeline run
type RunID string

// StageID uniquely identifies a stage within a pipeline
type StageID string

// Data holds the shared data bag of a run
type Data map[string]interface{}

// Stage is a single stage of a pipeline. Execute stores its output in the
// shared data bag for downstream stages.
type Stage interface {
	ID() StageID
	// Optional stages enrich the result; their failure is recorded and
	// tolerated. A required stage failure aborts the run.
	Optional() bool
	Execute(ctx context.Context, data Data) error
	Compensate(ctx context.Context, data Data) error
}

// Definition defines the stages and flow of a pipeline
type Definition interface {
	ID() string
	Stages() []Stage
	Timeout() time.Duration
}

// Run represents one execution of a pipeline
type Run struct {
	ID          RunID            `json:"id"`
	Definition  string           `json:"definition"`
	State       RunState         `json:"state"`
	Data        Data             `json:"data"`
	Stages      []StageExecution `json:"stages"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// StageExecution represents the execution state of a stage
type StageExecution struct {
	ID          StageID    `json:"id"`
	State       StageState `json:"state"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Event represents an event in the run lifecycle
type Event struct {
	RunID     RunID     `json:"run_id"`
	StageID   StageID   `json:"stage_id,omitempty"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

// Event types
const (
	EventRunStarted       = "run_started"
	EventRunCompleted     = "run_completed"
	EventRunFailed        = "run_failed"
	EventRunCompensated   = "run_compensated"
	EventStageStarted     = "stage_started"
	EventStageCompleted   = "stage_completed"
	EventStageFailed      = "stage_failed"
	EventStageCompensated = "stage_compensated"
)
