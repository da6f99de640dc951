package saga

import (
	"context"
	"time"
)

// ID identifies one execution of a definition
type ID string

// StepID names a step within its definition
type StepID string

// State of a whole execution
type State string

const (
	StateRunning     State = "running"
	StateCompleted   State = "completed"
	StateCompensated State = "compensated"
)

// StepState of a single step within an execution
type StepState string

const (
	StepStatePending     StepState = "pending"
	StepStateCompleted   StepState = "completed"
	StepStateFailed      StepState = "failed"
	StepStateCompensated StepState = "compensated"
)

// Data is shared by the steps of one execution. Steps leave the resources
// they acquire here for later steps, compensations and the caller.
type Data map[string]any

// Step is one reversible unit of work. Compensate only runs after Execute
// succeeded.
type Step interface {
	ID() StepID
	Execute(ctx context.Context, data Data) error
	Compensate(ctx context.Context, data Data) error
}

// Definition is an ordered list of steps with an overall deadline. A zero
// timeout means none.
type Definition interface {
	ID() string
	Steps() []Step
	Timeout() time.Duration
}

// Instance is the record of one execution
type Instance struct {
	ID          ID              `json:"id"`
	Definition  string          `json:"definition"`
	State       State           `json:"state"`
	Steps       []StepExecution `json:"steps"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

type StepExecution struct {
	ID       StepID        `json:"id"`
	State    StepState     `json:"state"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Event is passed to observers on every transition. Step is empty for
// execution-level events.
type Event struct {
	Saga       ID
	Definition string
	Step       StepID
	Type       string
	At         time.Time
	Err        string
}

const (
	EventSagaStarted     = "saga_started"
	EventSagaCompleted   = "saga_completed"
	EventSagaCompensated = "saga_compensated"
	EventStepCompleted   = "step_completed"
	EventStepFailed      = "step_failed"
	EventStepCompensated = "step_compensated"
)
