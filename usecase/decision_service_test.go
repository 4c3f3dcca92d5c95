package usecase

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/adapters"
	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/saga"
	"github.com/ritz-devbox/decisiv/internal/saga/resolution"
)

type stubEngine struct {
	drafted string
}

func (s *stubEngine) Resolve(ctx context.Context, scenario entities.Scenario, settings repositories.EngineSettings) (*entities.Verdict, error) {
	return &entities.Verdict{Decision: "Proceed", ConfidenceScore: 0.9}, nil
}

func (s *stubEngine) WarGame(ctx context.Context, decision, scenarioContext string) (*entities.WarGameResult, error) {
	return &entities.WarGameResult{RecommendedPathID: "p2"}, nil
}

func (s *stubEngine) Audit(ctx context.Context, decision, scenarioContext string) (*entities.CollaborativeAudit, error) {
	return &entities.CollaborativeAudit{ConsensusScore: 0.6}, nil
}

func (s *stubEngine) DraftScenario(ctx context.Context, title string, domain entities.ScenarioDomain) (string, error) {
	s.drafted = title + "/" + string(domain)
	return "a drafted briefing", nil
}

func newDecisionService(engine *stubEngine) (*DecisionService, repositories.HistoryRepository) {
	history := adapters.NewMemoryHistoryRepository()
	pipeline := resolution.NewService(saga.NewManager(zap.NewNop()), engine, nil, history, zap.NewNop())
	return NewDecisionService(pipeline, engine, history, zap.NewNop()), history
}

func TestDecisionServiceResolveAndHistory(t *testing.T) {
	svc, _ := newDecisionService(&stubEngine{})
	ctx := context.Background()

	verdict, err := svc.Resolve(ctx, entities.Scenario{Title: "t", Context: "c"}, repositories.EngineSettings{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if verdict.Decision != "Proceed" {
		t.Errorf("decision = %q", verdict.Decision)
	}

	entries, err := svc.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history = %d entries, want 1", len(entries))
	}

	if err := svc.ClearHistory(ctx); err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	entries, _ = svc.History(ctx)
	if len(entries) != 0 {
		t.Error("history not cleared")
	}
}

func TestDecisionServiceGuards(t *testing.T) {
	svc, _ := newDecisionService(&stubEngine{})
	ctx := context.Background()

	if _, err := svc.WarGame(ctx, "", "c"); err == nil {
		t.Error("empty decision accepted by WarGame")
	}
	if _, err := svc.Audit(ctx, "", "c"); err == nil {
		t.Error("empty decision accepted by Audit")
	}
	if _, err := svc.DraftScenario(ctx, "", entities.DomainLegal); err == nil {
		t.Error("empty title accepted by DraftScenario")
	}
}

func TestDecisionServiceDraftDefaultsDomain(t *testing.T) {
	engine := &stubEngine{}
	svc, _ := newDecisionService(engine)

	text, err := svc.DraftScenario(context.Background(), "pivot", "")
	if err != nil {
		t.Fatalf("DraftScenario: %v", err)
	}
	if text == "" {
		t.Error("empty draft")
	}
	if engine.drafted != "pivot/Business" {
		t.Errorf("domain not defaulted: %q", engine.drafted)
	}
}
