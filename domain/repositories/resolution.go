package repositories

import (
	"context"

	"github.com/ritz-devbox/decisiv/domain/entities"
)

// EngineSettings tunes how the resolution engine responds.
type EngineSettings struct {
	// VoiceName selects the prebuilt voice for verdict readback.
	VoiceName string `json:"voice_name"`
	// Simplified switches every generated text field to the plain,
	// analogy-driven register.
	Simplified bool `json:"simplified"`
}

// ResolutionService abstracts the remote reasoning engine that turns a
// scenario into a structured verdict.
type ResolutionService interface {
	// Resolve produces the primary verdict for a scenario.
	Resolve(ctx context.Context, scenario entities.Scenario, settings EngineSettings) (*entities.Verdict, error)
	// WarGame runs the adversarial strategy simulation for a decision.
	WarGame(ctx context.Context, decision, scenarioContext string) (*entities.WarGameResult, error)
	// Audit runs the simulated multi-agent review of a decision.
	Audit(ctx context.Context, decision, scenarioContext string) (*entities.CollaborativeAudit, error)
	// DraftScenario writes a scenario description for a title and domain.
	DraftScenario(ctx context.Context, title string, domain entities.ScenarioDomain) (string, error)
}

// TextToSpeech synthesizes speech, streamed as raw PCM chunks.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text, voiceName string) (<-chan []byte, error)
}
