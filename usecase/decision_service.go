package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/saga/resolution"
)

// DecisionService orchestrates scenario resolution and the saved history.
type DecisionService struct {
	pipeline *resolution.Service
	engine   repositories.ResolutionService
	history  repositories.HistoryRepository
	logger   *zap.Logger
}

// NewDecisionService creates a new decision service
func NewDecisionService(
	pipeline *resolution.Service,
	engine repositories.ResolutionService,
	history repositories.HistoryRepository,
	logger *zap.Logger,
) *DecisionService {
	return &DecisionService{
		pipeline: pipeline,
		engine:   engine,
		history:  history,
		logger:   logger,
	}
}

// Resolve runs a scenario through the full verdict pipeline.
func (s *DecisionService) Resolve(ctx context.Context, scenario entities.Scenario, settings repositories.EngineSettings) (*entities.Verdict, error) {
	s.logger.Info("Resolving scenario",
		zap.String("title", scenario.Title),
		zap.String("domain", string(scenario.Domain)),
		zap.Bool("simplified", settings.Simplified),
		zap.Bool("search", scenario.UseSearch))
	return s.pipeline.Resolve(ctx, scenario, settings)
}

// WarGame reruns the adversarial simulation for an existing verdict, for
// callers that want it refreshed outside the pipeline.
func (s *DecisionService) WarGame(ctx context.Context, decision, scenarioContext string) (*entities.WarGameResult, error) {
	if decision == "" {
		return nil, fmt.Errorf("decision is required")
	}
	return s.engine.WarGame(ctx, decision, scenarioContext)
}

// Audit reruns the multi-agent review for an existing verdict.
func (s *DecisionService) Audit(ctx context.Context, decision, scenarioContext string) (*entities.CollaborativeAudit, error) {
	if decision == "" {
		return nil, fmt.Errorf("decision is required")
	}
	return s.engine.Audit(ctx, decision, scenarioContext)
}

// DraftScenario writes a scenario description for a title and domain.
func (s *DecisionService) DraftScenario(ctx context.Context, title string, domain entities.ScenarioDomain) (string, error) {
	if title == "" {
		return "", fmt.Errorf("title is required")
	}
	if domain == "" {
		domain = entities.DomainBusiness
	}
	return s.engine.DraftScenario(ctx, title, domain)
}

// History returns the saved entries, newest first.
func (s *DecisionService) History(ctx context.Context) ([]entities.SavedEntry, error) {
	return s.history.List(ctx)
}

// ClearHistory removes all saved entries.
func (s *DecisionService) ClearHistory(ctx context.Context) error {
	s.logger.Info("Clearing resolution history")
	return s.history.Clear(ctx)
}
