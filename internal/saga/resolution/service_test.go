package resolution

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/adapters"
	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/saga"
)

type mockEngine struct {
	resolveErr error
	warGameErr error
	auditErr   error
}

func (m *mockEngine) Resolve(ctx context.Context, scenario entities.Scenario, settings repositories.EngineSettings) (*entities.Verdict, error) {
	if m.resolveErr != nil {
		return nil, m.resolveErr
	}
	return &entities.Verdict{
		Decision:        "Proceed with " + scenario.Title,
		SimpleDecision:  "Go ahead",
		ConfidenceScore: 0.82,
		UrgencyLevel:    entities.UrgencyHigh,
	}, nil
}

func (m *mockEngine) WarGame(ctx context.Context, decision, scenarioContext string) (*entities.WarGameResult, error) {
	if m.warGameErr != nil {
		return nil, m.warGameErr
	}
	return &entities.WarGameResult{RecommendedPathID: "p1"}, nil
}

func (m *mockEngine) Audit(ctx context.Context, decision, scenarioContext string) (*entities.CollaborativeAudit, error) {
	if m.auditErr != nil {
		return nil, m.auditErr
	}
	return &entities.CollaborativeAudit{ConsensusScore: 0.7}, nil
}

func (m *mockEngine) DraftScenario(ctx context.Context, title string, domain entities.ScenarioDomain) (string, error) {
	return "drafted", nil
}

type mockTTS struct {
	err error
}

func (m *mockTTS) ConvertTextToSpeech(ctx context.Context, text, voiceName string) (<-chan []byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(chan []byte, 2)
	out <- []byte{1, 2}
	out <- []byte{3, 4}
	close(out)
	return out, nil
}

func newService(engine *mockEngine, tts repositories.TextToSpeech, history repositories.HistoryRepository) *Service {
	return NewService(saga.NewManager(zap.NewNop()), engine, tts, history, zap.NewNop())
}

func TestResolvePipelineFull(t *testing.T) {
	history := adapters.NewMemoryHistoryRepository()
	svc := newService(&mockEngine{}, &mockTTS{}, history)

	scenario := entities.Scenario{Title: "expansion", Context: "ctx"}
	verdict, err := svc.Resolve(context.Background(), scenario, repositories.EngineSettings{VoiceName: "Kore"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if verdict.Decision != "Proceed with expansion" {
		t.Errorf("decision = %q", verdict.Decision)
	}
	if verdict.WarGame == nil || verdict.WarGame.RecommendedPathID != "p1" {
		t.Error("war game not attached")
	}
	if verdict.Audit == nil || verdict.Audit.ConsensusScore != 0.7 {
		t.Error("audit not attached")
	}
	if verdict.AudioData == "" {
		t.Error("readback not attached")
	}

	entries, err := history.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
	if entries[0].Scenario.Title != "expansion" {
		t.Errorf("persisted scenario = %+v", entries[0].Scenario)
	}
	if entries[0].Verdict.Decision != verdict.Decision {
		t.Error("persisted verdict differs from returned verdict")
	}
}

func TestResolveToleratesEnrichmentFailures(t *testing.T) {
	history := adapters.NewMemoryHistoryRepository()
	engine := &mockEngine{
		warGameErr: errors.New("simulation overloaded"),
		auditErr:   errors.New("board unavailable"),
	}
	svc := newService(engine, &mockTTS{err: errors.New("voice down")}, history)

	verdict, err := svc.Resolve(context.Background(),
		entities.Scenario{Title: "t", Context: "c"}, repositories.EngineSettings{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if verdict.WarGame != nil || verdict.Audit != nil || verdict.AudioData != "" {
		t.Error("failed enrichments must stay absent")
	}

	// The bare verdict is still persisted.
	entries, _ := history.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("history entries = %d, want 1", len(entries))
	}
}

func TestResolveFailsOnVerdictFailure(t *testing.T) {
	history := adapters.NewMemoryHistoryRepository()
	svc := newService(&mockEngine{resolveErr: errors.New("model down")}, &mockTTS{}, history)

	_, err := svc.Resolve(context.Background(),
		entities.Scenario{Title: "t", Context: "c"}, repositories.EngineSettings{})
	if err == nil {
		t.Fatal("verdict failure did not fail the run")
	}

	entries, _ := history.List(context.Background())
	if len(entries) != 0 {
		t.Error("failed run left a history entry")
	}
}

func TestResolveRejectsInvalidScenario(t *testing.T) {
	svc := newService(&mockEngine{}, &mockTTS{}, adapters.NewMemoryHistoryRepository())
	if _, err := svc.Resolve(context.Background(), entities.Scenario{}, repositories.EngineSettings{}); err == nil {
		t.Fatal("invalid scenario accepted")
	}
}

func TestResolveWithoutTTS(t *testing.T) {
	history := adapters.NewMemoryHistoryRepository()
	svc := newService(&mockEngine{}, nil, history)

	verdict, err := svc.Resolve(context.Background(),
		entities.Scenario{Title: "t", Context: "c"}, repositories.EngineSettings{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if verdict.AudioData != "" {
		t.Error("readback attached without a synthesizer")
	}
}
