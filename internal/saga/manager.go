package saga

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager manages pipeline execution and coordination
type Manager struct {
	logger      *zap.Logger
	runs        map[RunID]*Run
	definitions map[string]Definition
	eventChan   chan Event
	mu          sync.RWMutex
}

// NewManager creates a new pipeline manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:      logger,
		runs:        make(map[RunID]*Run),
		definitions: make(map[string]Definition),
		eventChan:   make(chan Event, 100),
	}
}

// RegisterDefinition registers a pipeline definition
func (m *Manager) RegisterDefinition(def Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[def.ID()] = def
	m.logger.Info("Pipeline definition registered", zap.String("id", def.ID()))
}

// StartRun starts a new run of a registered pipeline
func (m *Manager) StartRun(ctx context.Context, definitionID string, data Data) (RunID, error) {
	m.mu.Lock()
	def, exists := m.definitions[definitionID]
	if !exists {
		m.mu.Unlock()
		return "", fmt.Errorf("pipeline definition not found: %s", definitionID)
	}

	runID := RunID(fmt.Sprintf("%s_%d", definitionID, time.Now().UnixNano()))

	stageExecs := make([]StageExecution, len(def.Stages()))
	for i, stage := range def.Stages() {
		stageExecs[i] = StageExecution{
			ID:    stage.ID(),
			State: StageStatePending,
		}
	}

	run := &Run{
		ID:         runID,
		Definition: definitionID,
		State:      RunStateStarted,
		Data:       data,
		Stages:     stageExecs,
		StartedAt:  time.Now(),
	}

	m.runs[runID] = run
	m.mu.Unlock()

	m.emitEvent(Event{
		RunID:     runID,
		Type:      EventRunStarted,
		Timestamp: time.Now(),
	})

	go m.executeRun(ctx, runID, def)

	m.logger.Info("Pipeline run started",
		zap.String("runID", string(runID)),
		zap.String("definition", definitionID))
	return runID, nil
}

// GetRun returns a run by ID
func (m *Manager) GetRun(runID RunID) (*Run, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, exists := m.runs[runID]
	return run, exists
}

// executeRun drives one run to completion. Optional stage failures are
// recorded and skipped; a required stage failure triggers compensation of
// the completed required stages in reverse order.
func (m *Manager) executeRun(ctx context.Context, runID RunID, def Definition) {
	m.updateRunState(runID, RunStateRunning)

	ctx, cancel := context.WithTimeout(ctx, def.Timeout())
	defer cancel()

	var completedRequired []int
	aborted := false
	var abortErr error

	for i, stage := range def.Stages() {
		err := m.executeStage(ctx, runID, i, stage)
		if err == nil {
			if !stage.Optional() {
				completedRequired = append(completedRequired, i)
			}
			continue
		}

		if stage.Optional() {
			m.logger.Warn("Optional stage failed, continuing",
				zap.String("runID", string(runID)),
				zap.String("stageID", string(stage.ID())),
				zap.Error(err))
			continue
		}

		m.logger.Error("Required stage failed",
			zap.String("runID", string(runID)),
			zap.String("stageID", string(stage.ID())),
			zap.Error(err))
		aborted = true
		abortErr = err
		break
	}

	if aborted {
		m.compensateRun(ctx, runID, def, completedRequired, abortErr)
	} else {
		m.completeRun(runID)
	}
}

// executeStage executes a single stage and tracks its lifecycle
func (m *Manager) executeStage(ctx context.Context, runID RunID, stageIndex int, stage Stage) error {
	m.updateStageState(runID, stageIndex, StageStateRunning)

	now := time.Now()
	m.setStageStartTime(runID, stageIndex, now)
	m.emitEvent(Event{
		RunID:     runID,
		StageID:   stage.ID(),
		Type:      EventStageStarted,
		Timestamp: now,
	})

	run, _ := m.GetRun(runID)
	err := stage.Execute(ctx, run.Data)

	now = time.Now()
	m.setStageCompletionTime(runID, stageIndex, now)

	if err != nil {
		m.updateStageState(runID, stageIndex, StageStateFailed)
		m.setStageError(runID, stageIndex, err.Error())
		m.emitEvent(Event{
			RunID:     runID,
			StageID:   stage.ID(),
			Type:      EventStageFailed,
			Timestamp: now,
			Detail:    err.Error(),
		})
		return err
	}

	m.updateStageState(runID, stageIndex, StageStateCompleted)
	m.emitEvent(Event{
		RunID:     runID,
		StageID:   stage.ID(),
		Type:      EventStageCompleted,
		Timestamp: now,
	})
	m.logger.Info("Stage completed",
		zap.String("runID", string(runID)),
		zap.String("stageID", string(stage.ID())))
	return nil
}

// compensateRun unwinds completed required stages in reverse order
func (m *Manager) compensateRun(ctx context.Context, runID RunID, def Definition, completedRequired []int, cause error) {
	run, _ := m.GetRun(runID)
	stages := def.Stages()

	for i := len(completedRequired) - 1; i >= 0; i-- {
		idx := completedRequired[i]
		stage := stages[idx]

		m.logger.Info("Compensating stage",
			zap.String("runID", string(runID)),
			zap.String("stageID", string(stage.ID())))

		if err := stage.Compensate(ctx, run.Data); err != nil {
			m.logger.Error("Compensation failed",
				zap.String("runID", string(runID)),
				zap.String("stageID", string(stage.ID())),
				zap.Error(err))
			continue
		}
		m.updateStageState(runID, idx, StageStateCompensated)
		m.emitEvent(Event{
			RunID:     runID,
			StageID:   stage.ID(),
			Type:      EventStageCompensated,
			Timestamp: time.Now(),
		})
	}

	m.mu.Lock()
	if run, exists := m.runs[runID]; exists {
		run.State = RunStateCompensated
		run.Error = cause.Error()
		now := time.Now()
		run.CompletedAt = &now
	}
	m.mu.Unlock()

	m.emitEvent(Event{
		RunID:     runID,
		Type:      EventRunCompensated,
		Timestamp: time.Now(),
		Detail:    cause.Error(),
	})
	m.logger.Info("Pipeline run compensated", zap.String("runID", string(runID)))
}

// completeRun marks a run as completed
func (m *Manager) completeRun(runID RunID) {
	m.mu.Lock()
	if run, exists := m.runs[runID]; exists {
		run.State = RunStateCompleted
		now := time.Now()
		run.CompletedAt = &now
	}
	m.mu.Unlock()

	m.emitEvent(Event{
		RunID:     runID,
		Type:      EventRunCompleted,
		Timestamp: time.Now(),
	})
	m.logger.Info("Pipeline run completed", zap.String("runID", string(runID)))
}

// Helper methods for updating run state
func (m *Manager) updateRunState(runID RunID, state RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, exists := m.runs[runID]; exists {
		run.State = state
	}
}

func (m *Manager) updateStageState(runID RunID, stageIndex int, state StageState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, exists := m.runs[runID]; exists && stageIndex < len(run.Stages) {
		run.Stages[stageIndex].State = state
	}
}

func (m *Manager) setStageStartTime(runID RunID, stageIndex int, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, exists := m.runs[runID]; exists && stageIndex < len(run.Stages) {
		run.Stages[stageIndex].StartedAt = &t
	}
}

func (m *Manager) setStageCompletionTime(runID RunID, stageIndex int, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, exists := m.runs[runID]; exists && stageIndex < len(run.Stages) {
		run.Stages[stageIndex].CompletedAt = &t
	}
}

func (m *Manager) setStageError(runID RunID, stageIndex int, errMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run, exists := m.runs[runID]; exists && stageIndex < len(run.Stages) {
		run.Stages[stageIndex].Error = errMsg
	}
}

func (m *Manager) emitEvent(event Event) {
	select {
	case m.eventChan <- event:
	default:
		m.logger.Warn("Event channel full, dropping event", zap.String("type", event.Type))
	}
}

// EventChannel returns the event channel for listening to run events
func (m *Manager) EventChannel() <-chan Event {
	return m.eventChan
}
