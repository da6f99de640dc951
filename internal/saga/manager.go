package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultHistory = 64

// Manager runs sagas to completion on the caller's goroutine and keeps a
// short history of recent executions.
type Manager struct {
	logger    *zap.Logger
	observers []func(Event)

	mu      sync.RWMutex
	history []*Instance
	limit   int
}

// NewManager creates a new saga manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger: logger,
		limit:  defaultHistory,
	}
}

// Observe registers fn to receive every event. It must be called before the
// first Run.
func (m *Manager) Observe(fn func(Event)) {
	m.observers = append(m.observers, fn)
}

// Run executes the steps of def in order. When a step fails, every step that
// completed before it is compensated in reverse order and the step's error is
// returned.
func (m *Manager) Run(ctx context.Context, def Definition, data Data) (*Instance, error) {
	steps := def.Steps()
	instance := &Instance{
		ID:         ID(uuid.New().String()),
		Definition: def.ID(),
		State:      StateRunning,
		Steps:      make([]StepExecution, len(steps)),
		StartedAt:  time.Now(),
	}
	for i, step := range steps {
		instance.Steps[i] = StepExecution{ID: step.ID(), State: StepStatePending}
	}
	m.remember(instance)
	m.emit(instance, "", EventSagaStarted, nil)

	runCtx := ctx
	if timeout := def.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	failed := -1
	var failure error
	for i, step := range steps {
		start := time.Now()
		err := step.Execute(runCtx, data)
		if err == nil && runCtx.Err() != nil {
			// The step finished but the saga was abandoned meanwhile; its
			// work still needs undoing.
			err = runCtx.Err()
			m.setStep(instance, i, StepStateCompleted, time.Since(start), "")
			failed, failure = i+1, err
			break
		}
		if err != nil {
			m.setStep(instance, i, StepStateFailed, time.Since(start), err.Error())
			m.emit(instance, step.ID(), EventStepFailed, err)
			m.logger.Warn("Saga step failed",
				zap.String("sagaID", string(instance.ID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))
			failed, failure = i, err
			break
		}
		m.setStep(instance, i, StepStateCompleted, time.Since(start), "")
		m.emit(instance, step.ID(), EventStepCompleted, nil)
	}

	if failure == nil {
		m.finish(instance, StateCompleted, "")
		m.emit(instance, "", EventSagaCompleted, nil)
		m.logger.Debug("Saga completed",
			zap.String("sagaID", string(instance.ID)),
			zap.String("definition", def.ID()))
		return instance, nil
	}

	// Compensation must run even though runCtx may be done
	compCtx := context.WithoutCancel(ctx)
	for i := failed - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(compCtx, data); err != nil {
			m.logger.Error("Compensation failed",
				zap.String("sagaID", string(instance.ID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))
			continue
		}
		m.setStep(instance, i, StepStateCompensated, instance.Steps[i].Duration, "")
		m.emit(instance, step.ID(), EventStepCompensated, nil)
	}

	m.finish(instance, StateCompensated, failure.Error())
	m.emit(instance, "", EventSagaCompensated, failure)
	m.logger.Info("Saga compensated",
		zap.String("sagaID", string(instance.ID)),
		zap.String("definition", def.ID()),
		zap.Error(failure))

	return instance, fmt.Errorf("%s: %w", def.ID(), failure)
}

// Lookup returns a copy of a recent saga instance by ID
func (m *Manager) Lookup(id ID) (Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, instance := range m.history {
		if instance.ID == id {
			out := *instance
			out.Steps = append([]StepExecution(nil), instance.Steps...)
			return out, true
		}
	}
	return Instance{}, false
}

func (m *Manager) remember(instance *Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, instance)
	if len(m.history) > m.limit {
		m.history = m.history[len(m.history)-m.limit:]
	}
}

func (m *Manager) setStep(instance *Instance, i int, state StepState, d time.Duration, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	instance.Steps[i].State = state
	instance.Steps[i].Duration = d
	instance.Steps[i].Error = errMsg
}

func (m *Manager) finish(instance *Instance, state State, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	instance.State = state
	instance.CompletedAt = &now
	instance.Error = errMsg
}

func (m *Manager) emit(instance *Instance, step StepID, typ string, err error) {
	if len(m.observers) == 0 {
		return
	}
	event := Event{
		Saga:       instance.ID,
		Definition: instance.Definition,
		Step:       step,
		Type:       typ,
		At:         time.Now(),
	}
	if err != nil {
		event.Err = err.Error()
	}
	for _, fn := range m.observers {
		fn(event)
	}
}
