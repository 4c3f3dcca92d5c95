package resolution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/metrics"
	"github.com/ritz-devbox/decisiv/internal/saga"
)

const (
	definitionID    = "scenario_resolution"
	pipelineTimeout = 5 * time.Minute
	resolveTimeout  = 4 * time.Minute
)

// definition wires the verdict pipeline stages in order.
type definition struct {
	stages []saga.Stage
}

func (d *definition) ID() string             { return definitionID }
func (d *definition) Stages() []saga.Stage   { return d.stages }
func (d *definition) Timeout() time.Duration { return pipelineTimeout }

// Service runs scenarios through the verdict pipeline.
type Service struct {
	manager *saga.Manager
	logger  *zap.Logger
}

// NewService creates the service and registers the pipeline definition.
// The readback stage is skipped entirely when tts is nil.
func NewService(
	manager *saga.Manager,
	engine repositories.ResolutionService,
	tts repositories.TextToSpeech,
	history repositories.HistoryRepository,
	logger *zap.Logger,
) *Service {
	stages := []saga.Stage{
		&verdictStage{engine: engine},
		&warGameStage{engine: engine},
		&auditStage{engine: engine},
	}
	if tts != nil {
		stages = append(stages, &readbackStage{tts: tts})
	}
	stages = append(stages, &persistStage{history: history})

	manager.RegisterDefinition(&definition{stages: stages})
	return &Service{manager: manager, logger: logger}
}

// Resolve runs the full pipeline for a scenario and returns the enriched
// verdict once the run completes.
func (s *Service) Resolve(ctx context.Context, scenario entities.Scenario, settings repositories.EngineSettings) (*entities.Verdict, error) {
	if err := scenario.Validate(); err != nil {
		metrics.ResolutionsServed.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	data := saga.Data{
		KeyScenario: scenario,
		KeySettings: settings,
	}
	runID, err := s.manager.StartRun(ctx, definitionID, data)
	if err != nil {
		metrics.ResolutionsServed.WithLabelValues("error").Inc()
		return nil, err
	}

	run, err := s.waitForRunCompletion(ctx, runID, resolveTimeout)
	if err != nil {
		metrics.ResolutionsServed.WithLabelValues("error").Inc()
		return nil, err
	}

	verdict, err := verdictFrom(run.Data)
	if err != nil {
		metrics.ResolutionsServed.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.ResolutionsServed.WithLabelValues("resolved").Inc()
	s.logger.Info("Resolution pipeline finished",
		zap.String("runID", string(runID)),
		zap.String("decision", verdict.Decision),
		zap.Bool("warGame", verdict.WarGame != nil),
		zap.Bool("audit", verdict.Audit != nil),
		zap.Bool("readback", verdict.AudioData != ""))
	return verdict, nil
}

// RunStatus returns the execution state of a pipeline run.
func (s *Service) RunStatus(runID saga.RunID) (*saga.Run, bool) {
	return s.manager.GetRun(runID)
}

// waitForRunCompletion polls the manager until the run reaches a terminal
// state or the timeout elapses.
func (s *Service) waitForRunCompletion(ctx context.Context, runID saga.RunID, timeout time.Duration) (*saga.Run, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("timeout waiting for pipeline completion")

		case <-ticker.C:
			run, exists := s.manager.GetRun(runID)
			if !exists {
				return nil, fmt.Errorf("pipeline run not found: %s", runID)
			}

			switch run.State {
			case saga.RunStateCompleted:
				return run, nil
			case saga.RunStateFailed, saga.RunStateCompensated:
				return nil, fmt.Errorf("pipeline run ended with state %s: %s", run.State, run.Error)
			}
			// Continue waiting for running/started states
		}
	}
}
