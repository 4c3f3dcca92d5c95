// Package resolution defines the verdict pipeline: resolve the scenario,
// enrich the verdict with the war-game simulation, the multi-agent audit
// and the spoken readback, then persist the result. The enrichment stages
// are optional; a verdict without a war game is still a verdict.
package resolution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/audio"
	"github.com/ritz-devbox/decisiv/internal/saga"
)

// Data bag keys shared between stages.
const (
	KeyScenario = "scenario"
	KeySettings = "settings"
	KeyVerdict  = "verdict"
	KeyEntryID  = "entry_id"
)

func scenarioFrom(data saga.Data) (entities.Scenario, error) {
	scenario, ok := data[KeyScenario].(entities.Scenario)
	if !ok {
		return entities.Scenario{}, fmt.Errorf("data bag missing scenario")
	}
	return scenario, nil
}

func settingsFrom(data saga.Data) repositories.EngineSettings {
	settings, _ := data[KeySettings].(repositories.EngineSettings)
	return settings
}

func verdictFrom(data saga.Data) (*entities.Verdict, error) {
	verdict, ok := data[KeyVerdict].(*entities.Verdict)
	if !ok || verdict == nil {
		return nil, fmt.Errorf("data bag missing verdict")
	}
	return verdict, nil
}

// verdictStage produces the primary verdict. Required: nothing downstream
// makes sense without it.
type verdictStage struct {
	engine repositories.ResolutionService
}

func (s *verdictStage) ID() saga.StageID { return "resolve_verdict" }
func (s *verdictStage) Optional() bool   { return false }

func (s *verdictStage) Execute(ctx context.Context, data saga.Data) error {
	scenario, err := scenarioFrom(data)
	if err != nil {
		return err
	}
	verdict, err := s.engine.Resolve(ctx, scenario, settingsFrom(data))
	if err != nil {
		return err
	}
	data[KeyVerdict] = verdict
	return nil
}

func (s *verdictStage) Compensate(ctx context.Context, data saga.Data) error {
	delete(data, KeyVerdict)
	return nil
}

// warGameStage attaches the adversarial strategy simulation.
type warGameStage struct {
	engine repositories.ResolutionService
}

func (s *warGameStage) ID() saga.StageID { return "war_game" }
func (s *warGameStage) Optional() bool   { return true }

func (s *warGameStage) Execute(ctx context.Context, data saga.Data) error {
	scenario, err := scenarioFrom(data)
	if err != nil {
		return err
	}
	verdict, err := verdictFrom(data)
	if err != nil {
		return err
	}
	result, err := s.engine.WarGame(ctx, verdict.Decision, scenario.Context)
	if err != nil {
		return err
	}
	verdict.WarGame = result
	return nil
}

func (s *warGameStage) Compensate(ctx context.Context, data saga.Data) error { return nil }

// auditStage attaches the simulated multi-agent review.
type auditStage struct {
	engine repositories.ResolutionService
}

func (s *auditStage) ID() saga.StageID { return "collaborative_audit" }
func (s *auditStage) Optional() bool   { return true }

func (s *auditStage) Execute(ctx context.Context, data saga.Data) error {
	scenario, err := scenarioFrom(data)
	if err != nil {
		return err
	}
	verdict, err := verdictFrom(data)
	if err != nil {
		return err
	}
	audit, err := s.engine.Audit(ctx, verdict.Decision, scenario.Context)
	if err != nil {
		return err
	}
	verdict.Audit = audit
	return nil
}

func (s *auditStage) Compensate(ctx context.Context, data saga.Data) error { return nil }

// readbackStage synthesizes the spoken headline and attaches it as base64
// PCM.
type readbackStage struct {
	tts repositories.TextToSpeech
}

func (s *readbackStage) ID() saga.StageID { return "verdict_readback" }
func (s *readbackStage) Optional() bool   { return true }

func (s *readbackStage) Execute(ctx context.Context, data saga.Data) error {
	verdict, err := verdictFrom(data)
	if err != nil {
		return err
	}
	settings := settingsFrom(data)

	chunks, err := s.tts.ConvertTextToSpeech(ctx, verdict.Headline(settings.Simplified), settings.VoiceName)
	if err != nil {
		return err
	}
	var pcm []byte
	for chunk := range chunks {
		pcm = append(pcm, chunk...)
	}
	if len(pcm) == 0 {
		return fmt.Errorf("synthesis produced no audio")
	}
	verdict.AudioData = audio.EncodeBase64(pcm)
	return nil
}

func (s *readbackStage) Compensate(ctx context.Context, data saga.Data) error { return nil }

// persistStage appends the scenario and verdict to history.
type persistStage struct {
	history repositories.HistoryRepository
}

func (s *persistStage) ID() saga.StageID { return "persist_history" }
func (s *persistStage) Optional() bool   { return false }

func (s *persistStage) Execute(ctx context.Context, data saga.Data) error {
	scenario, err := scenarioFrom(data)
	if err != nil {
		return err
	}
	verdict, err := verdictFrom(data)
	if err != nil {
		return err
	}

	entry := &entities.SavedEntry{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Scenario:  scenario,
		Verdict:   *verdict,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		return err
	}
	data[KeyEntryID] = entry.ID
	return nil
}

// Compensate has nothing to undo: persistence is the last stage, so it can
// only have succeeded if the run completed.
func (s *persistStage) Compensate(ctx context.Context, data saga.Data) error { return nil }
