// Package llm implements the resolution engine on the Gemini API: verdict
// generation with a constrained JSON schema, the adversarial war-game
// simulation, the multi-agent audit and scenario drafting.
package llm

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
)

const (
	defaultProModel      = "gemini-3-pro-preview"
	defaultFlashModel    = "gemini-3-flash-preview"
	defaultTemperature   = 0.3
	defaultMaxTokens     = 8192
	defaultTimeoutSecond = 120
	maxAttempts          = 3
)

// GeminiConfig configures the resolution engine.
type GeminiConfig struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string
	// ProModel handles resolution; FlashModel is the fallback and serves
	// the lighter drafting calls.
	ProModel   string
	FlashModel string

	Temperature     float64
	MaxOutputTokens int
	TimeoutSeconds  int
}

// ValidateGeminiConfig validates the configuration and applies defaults.
func ValidateGeminiConfig(config *GeminiConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("Gemini API key is required")
	}
	if config.Temperature < 0 || config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", config.Temperature)
	}
	if config.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout must be positive, got %d", config.TimeoutSeconds)
	}
	if config.ProModel == "" {
		config.ProModel = defaultProModel
	}
	if config.FlashModel == "" {
		config.FlashModel = defaultFlashModel
	}
	if config.Temperature == 0 {
		config.Temperature = defaultTemperature
	}
	if config.MaxOutputTokens == 0 {
		config.MaxOutputTokens = defaultMaxTokens
	}
	if config.TimeoutSeconds == 0 {
		config.TimeoutSeconds = defaultTimeoutSecond
	}
	return nil
}

// Engine is the Gemini-backed ResolutionService.
type Engine struct {
	client *genai.Client
	config GeminiConfig
	logger *zap.Logger
}

var _ repositories.ResolutionService = (*Engine)(nil)

// NewEngine creates the engine and its API client.
func NewEngine(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*Engine, error) {
	if err := ValidateGeminiConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Engine{client: client, config: config, logger: logger}, nil
}

// Resolve produces the structured verdict for a scenario. The pro model is
// tried first; when it stays unavailable the flash model answers instead.
// With search grounding enabled the schema constraint is dropped (the API
// does not combine tools with constrained output) and the JSON contract is
// carried by the prompt, with grounding sources read from the response
// metadata.
func (e *Engine) Resolve(ctx context.Context, scenario entities.Scenario, settings repositories.EngineSettings) (*entities.Verdict, error) {
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	parts := []*genai.Part{genai.NewPartFromText(resolvePrompt(scenario, settings))}
	if scenario.ImageData != "" {
		imgPart, err := partFromDataURI(scenario.ImageData)
		if err != nil {
			return nil, fmt.Errorf("invalid scenario image: %w", err)
		}
		parts = append(parts, imgPart)
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	genCfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(e.config.Temperature)),
		MaxOutputTokens: int32(e.config.MaxOutputTokens),
	}
	if scenario.UseSearch {
		genCfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else {
		genCfg.ResponseMIMEType = "application/json"
		genCfg.ResponseSchema = verdictSchema()
	}

	resp, model, err := e.generateWithFallback(ctx, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("resolution failed: %w", err)
	}

	var verdict entities.Verdict
	if err := decodeJSONResponse(resp, &verdict); err != nil {
		return nil, fmt.Errorf("parsing verdict: %w", err)
	}
	if verdict.ThinkingLevel == "" {
		verdict.ThinkingLevel = thinkingLevelFor(model, e.config.ProModel)
	}
	verdict.GroundingSources = groundingSources(resp)
	verdict.ProtocolHash = protocolHash(scenario, &verdict)

	e.logger.Info("Scenario resolved",
		zap.String("model", model),
		zap.String("urgency", string(verdict.UrgencyLevel)),
		zap.Float64("confidence", verdict.ConfidenceScore))
	return &verdict, nil
}

// WarGame simulates competing execution strategies for a decision.
func (e *Engine) WarGame(ctx context.Context, decision, scenarioContext string) (*entities.WarGameResult, error) {
	prompt := fmt.Sprintf(
		"Run an adversarial war-game simulation for this strategic decision.\n"+
			"Decision: %s\nContext: %s\n"+
			"Simulate exactly 3 distinct execution strategies (aggressive, balanced, conservative). "+
			"For each, estimate success probability and attrition rate in [0,1], time to value, "+
			"a terminal outcome, and a plain-language simpleOutcome. Recommend one path.",
		decision, scenarioContext)

	var result entities.WarGameResult
	if err := e.generateStructured(ctx, e.config.ProModel, prompt, warGameSchema(), &result); err != nil {
		return nil, fmt.Errorf("war game failed: %w", err)
	}
	return &result, nil
}

// Audit runs the simulated multi-agent review of a decision.
func (e *Engine) Audit(ctx context.Context, decision, scenarioContext string) (*entities.CollaborativeAudit, error) {
	prompt := fmt.Sprintf(
		"Convene a virtual review board over this decision.\n"+
			"Decision: %s\nContext: %s\n"+
			"Produce exactly 4 agents: a CFO, a COO, a Chief Risk Officer and a Devil's Advocate. "+
			"Each gives a perspective, a sentiment (Aligned, Cautious or Opposed) and a score in [0,1]. "+
			"Aggregate into a consensus score, a terminal summary, and a plain-language simpleSummary.",
		decision, scenarioContext)

	var audit entities.CollaborativeAudit
	if err := e.generateStructured(ctx, e.config.ProModel, prompt, auditSchema(), &audit); err != nil {
		return nil, fmt.Errorf("audit failed: %w", err)
	}
	return &audit, nil
}

// DraftScenario writes a scenario description for a title and domain.
func (e *Engine) DraftScenario(ctx context.Context, title string, domain entities.ScenarioDomain) (string, error) {
	prompt := fmt.Sprintf(
		"Write a dense, realistic decision scenario briefing of 3-4 sentences "+
			"for the %s domain, titled %q. Include concrete stakes, one constraint "+
			"and one known risk. Respond with the briefing text only.",
		domain, title)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := e.generate(ctx, e.config.FlashModel, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.9)),
	})
	if err != nil {
		return "", fmt.Errorf("scenario drafting failed: %w", err)
	}
	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("scenario drafting returned no text")
	}
	return strings.TrimSpace(text), nil
}

// generateWithFallback tries the pro model, then the flash model when the
// pro attempts are exhausted.
func (e *Engine) generateWithFallback(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, string, error) {
	resp, err := e.generate(ctx, e.config.ProModel, contents, cfg)
	if err == nil {
		return resp, e.config.ProModel, nil
	}
	e.logger.Warn("Pro model unavailable, falling back",
		zap.String("pro", e.config.ProModel),
		zap.String("flash", e.config.FlashModel),
		zap.Error(err))

	resp, err = e.generate(ctx, e.config.FlashModel, contents, cfg)
	if err != nil {
		return nil, "", err
	}
	return resp, e.config.FlashModel, nil
}

// generate performs one model call with timeout and retries.
func (e *Engine) generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(e.config.TimeoutSeconds)*time.Second)
	defer cancel()

	var resp *genai.GenerateContentResponse
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err = e.client.Models.GenerateContent(ctx, model, contents, cfg)
		if err == nil {
			return resp, nil
		}
		e.logger.Warn("Failed to generate content, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt+1) * time.Second):
			}
		}
	}
	return nil, err
}

// generateStructured runs a schema-constrained call and decodes the JSON
// into out.
func (e *Engine) generateStructured(ctx context.Context, model, prompt string, schema *genai.Schema, out interface{}) error {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	resp, err := e.generate(ctx, model, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(e.config.Temperature)),
		MaxOutputTokens:  int32(e.config.MaxOutputTokens),
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return err
	}
	return decodeJSONResponse(resp, out)
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// decodeJSONResponse parses the candidate text as JSON, tolerating markdown
// fencing around unconstrained output.
func decodeJSONResponse(resp *genai.GenerateContentResponse, out interface{}) error {
	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return fmt.Errorf("empty model response")
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), out); err != nil {
		return fmt.Errorf("model emitted invalid JSON: %w", err)
	}
	return nil
}

// groundingSources extracts web grounding references attached by the search
// tool, when present.
func groundingSources(resp *genai.GenerateContentResponse) []entities.GroundingSource {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	var sources []entities.GroundingSource
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		sources = append(sources, entities.GroundingSource{
			Title: chunk.Web.Title,
			URI:   chunk.Web.URI,
		})
	}
	return sources
}

// thinkingLevelFor reports which reasoning tier produced the verdict.
func thinkingLevelFor(model, proModel string) string {
	if model == proModel {
		return "deep"
	}
	return "rapid"
}

// protocolHash fingerprints a verdict against its scenario so a stored
// entry can be checked for tampering.
func protocolHash(scenario entities.Scenario, verdict *entities.Verdict) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%.4f|%s",
		scenario.Title, scenario.Context,
		verdict.Decision, verdict.ConfidenceScore, verdict.UrgencyLevel)
	return fmt.Sprintf("%X", h.Sum(nil)[:8])
}

// resolvePrompt renders the resolution instruction for a scenario.
func resolvePrompt(scenario entities.Scenario, settings repositories.EngineSettings) string {
	var sb strings.Builder
	sb.WriteString("You are a strategic decision-resolution engine. " +
		"Resolve the following scenario into a definitive verdict.\n\n")
	fmt.Fprintf(&sb, "Title: %s\n", scenario.Title)
	fmt.Fprintf(&sb, "Context: %s\n", scenario.Context)
	if scenario.Constraints != "" {
		fmt.Fprintf(&sb, "Constraints: %s\n", scenario.Constraints)
	}
	if scenario.Risks != "" {
		fmt.Fprintf(&sb, "Known risks: %s\n", scenario.Risks)
	}
	if scenario.Domain != "" {
		fmt.Fprintf(&sb, "Domain: %s\n", scenario.Domain)
	}
	sb.WriteString("\nProduce a decisive verdict with a confidence score in [0,1], " +
		"an urgency level, 3-5 weighted reasons, the single most critical risk with " +
		"its elaboration, a 3-step failure chain, projected sentiment before and " +
		"after execution, influence vectors summing to roughly 1, and a phased " +
		"execution plan with stakeholder briefs. " +
		"Every field with a simple variant must carry a plain-language, " +
		"analogy-driven version of its counterpart.")
	if settings.Simplified {
		sb.WriteString("\nThe reader is a non-expert: keep even the primary fields free of jargon.")
	}
	if scenario.UseSearch {
		sb.WriteString("\nGround the verdict in current information from search. " +
			"Respond with a single JSON object matching the verdict structure and nothing else.")
	}
	return sb.String()
}

// partFromDataURI decodes a base64 data URI into an inline media part.
func partFromDataURI(uri string) (*genai.Part, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URI")
	}
	mimeType, _, _ := strings.Cut(meta, ";")
	if mimeType == "" {
		return nil, fmt.Errorf("data URI missing media type")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding data URI payload: %w", err)
	}
	return genai.NewPartFromBytes(raw, mimeType), nil
}
