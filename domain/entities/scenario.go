package entities

import (
	"errors"
	"time"
)

// ScenarioDomain classifies a decision scenario.
type ScenarioDomain string

const (
	DomainBusiness    ScenarioDomain = "Business"
	DomainClinical    ScenarioDomain = "Clinical"
	DomainEngineering ScenarioDomain = "Engineering"
	DomainLegal       ScenarioDomain = "Legal"
	DomainPersonal    ScenarioDomain = "Personal"
	DomainFinance     ScenarioDomain = "Finance"
	DomainRealEstate  ScenarioDomain = "Real Estate"
)

// Scenario is the structured decision description submitted for resolution.
type Scenario struct {
	Title       string         `json:"title" bson:"title"`
	Context     string         `json:"context" bson:"context"`
	Constraints string         `json:"constraints" bson:"constraints"`
	Risks       string         `json:"risks" bson:"risks"`
	Domain      ScenarioDomain `json:"domain,omitempty" bson:"domain,omitempty"`
	UseSearch   bool           `json:"use_search,omitempty" bson:"use_search,omitempty"`
	// ImageData is an optional data URI of supporting visual evidence.
	ImageData string `json:"image,omitempty" bson:"image,omitempty"`
}

// Validate validates the scenario fields required for resolution.
func (s *Scenario) Validate() error {
	if s.Title == "" {
		return errors.New("title is required")
	}
	if s.Context == "" {
		return errors.New("context is required")
	}
	return nil
}

// UrgencyLevel grades how quickly a verdict must be acted on.
type UrgencyLevel string

const (
	UrgencyCritical  UrgencyLevel = "Critical"
	UrgencyHigh      UrgencyLevel = "High"
	UrgencyModerate  UrgencyLevel = "Moderate"
	UrgencyStrategic UrgencyLevel = "Strategic"
)

// Reason is one inference supporting the verdict, in both registers.
type Reason struct {
	Main   string `json:"main" bson:"main"`
	Nuance string `json:"nuance" bson:"nuance"`
	Simple string `json:"simple" bson:"simple"`
}

// FailureStep is one link in the projected failure chain.
type FailureStep struct {
	Title  string `json:"title" bson:"title"`
	Impact string `json:"impact" bson:"impact"`
}

// MarketSentiment captures projected sentiment before and after execution.
type MarketSentiment struct {
	PreScore       float64 `json:"preScore" bson:"pre_score"`
	PostScore      float64 `json:"postScore" bson:"post_score"`
	Analysis       string  `json:"analysis" bson:"analysis"`
	SimpleAnalysis string  `json:"simpleAnalysis" bson:"simple_analysis"`
}

// InfluenceVector weights one category of influence on the verdict.
type InfluenceVector struct {
	Category    string  `json:"category" bson:"category"`
	Weight      float64 `json:"weight" bson:"weight"`
	Description string  `json:"description" bson:"description"`
}

// ExecutionAction is one phase-tagged action of the execution plan.
type ExecutionAction struct {
	ID                string `json:"id" bson:"id"`
	Title             string `json:"title" bson:"title"`
	Description       string `json:"description" bson:"description"`
	Phase             string `json:"phase" bson:"phase"`
	Department        string `json:"department" bson:"department"`
	SimpleDescription string `json:"simpleDescription" bson:"simple_description"`
}

// StakeholderBrief is an audience-specific communication draft.
type StakeholderBrief struct {
	ID       string `json:"id" bson:"id"`
	Audience string `json:"audience" bson:"audience"`
	Subject  string `json:"subject" bson:"subject"`
	Content  string `json:"content" bson:"content"`
	Tone     string `json:"tone" bson:"tone"`
}

// ExecutionPlan groups actions and stakeholder briefs.
type ExecutionPlan struct {
	Actions []ExecutionAction  `json:"actions" bson:"actions"`
	Briefs  []StakeholderBrief `json:"briefs" bson:"briefs"`
}

// SimulationPath is one strategy explored by the war-game simulation.
type SimulationPath struct {
	ID                 string   `json:"id" bson:"id"`
	StrategyName       string   `json:"strategyName" bson:"strategy_name"`
	SuccessProbability float64  `json:"successProbability" bson:"success_probability"`
	AttritionRate      float64  `json:"attritionRate" bson:"attrition_rate"`
	TimeToValue        string   `json:"timeToValue" bson:"time_to_value"`
	TerminalOutcome    string   `json:"terminalOutcome" bson:"terminal_outcome"`
	SimpleOutcome      string   `json:"simpleOutcome" bson:"simple_outcome"`
	Risks              []string `json:"risks" bson:"risks"`
}

// WarGameResult is the adversarial simulation over alternative strategies.
type WarGameResult struct {
	Paths               []SimulationPath `json:"paths" bson:"paths"`
	RecommendedPathID   string           `json:"recommendedPathId" bson:"recommended_path_id"`
	ComparativeAnalysis string           `json:"comparativeAnalysis" bson:"comparative_analysis"`
	SimpleComparison    string           `json:"simpleComparison" bson:"simple_comparison"`
}

// AuditNode is one agent's perspective in the multi-agent audit.
type AuditNode struct {
	AgentRole   string  `json:"agentRole" bson:"agent_role"`
	Perspective string  `json:"perspective" bson:"perspective"`
	Sentiment   string  `json:"sentiment" bson:"sentiment"`
	Score       float64 `json:"score" bson:"score"`
}

// CollaborativeAudit is the simulated multi-agent review of the verdict.
type CollaborativeAudit struct {
	Nodes           []AuditNode `json:"nodes" bson:"nodes"`
	ConsensusScore  float64     `json:"consensusScore" bson:"consensus_score"`
	TerminalSummary string      `json:"terminalSummary" bson:"terminal_summary"`
	SimpleSummary   string      `json:"simpleSummary" bson:"simple_summary"`
}

// GroundingSource references external material the verdict was grounded on.
type GroundingSource struct {
	Title string `json:"title" bson:"title"`
	URI   string `json:"uri" bson:"uri"`
}

// Verdict is the structured multi-section result of resolving a scenario.
type Verdict struct {
	Decision              string              `json:"decision" bson:"decision"`
	SimpleDecision        string              `json:"simpleDecision" bson:"simple_decision"`
	ConfidenceScore       float64             `json:"confidenceScore" bson:"confidence_score"`
	UrgencyLevel          UrgencyLevel        `json:"urgencyLevel" bson:"urgency_level"`
	ThinkingLevel         string              `json:"thinkingLevel" bson:"thinking_level"`
	Reasons               []Reason            `json:"reasons" bson:"reasons"`
	CriticalRisk          string              `json:"criticalRisk" bson:"critical_risk"`
	SimpleCriticalRisk    string              `json:"simpleCriticalRisk" bson:"simple_critical_risk"`
	RiskElaboration       string              `json:"riskElaboration" bson:"risk_elaboration"`
	SimpleRiskElaboration string              `json:"simpleRiskElaboration" bson:"simple_risk_elaboration"`
	FailureChain          []FailureStep       `json:"failureChain" bson:"failure_chain"`
	MarketSentiment       MarketSentiment     `json:"marketSentiment" bson:"market_sentiment"`
	Vectors               []InfluenceVector   `json:"vectors" bson:"vectors"`
	ExecutionPlan         *ExecutionPlan      `json:"executionPlan,omitempty" bson:"execution_plan,omitempty"`
	WarGame               *WarGameResult      `json:"warGame,omitempty" bson:"war_game,omitempty"`
	Audit                 *CollaborativeAudit `json:"audit,omitempty" bson:"audit,omitempty"`
	GroundingSources      []GroundingSource   `json:"groundingSources,omitempty" bson:"grounding_sources,omitempty"`
	// AudioData is the base64 PCM readback of the headline decision, when
	// synthesis succeeded.
	AudioData    string `json:"audioData,omitempty" bson:"audio_data,omitempty"`
	ProtocolHash string `json:"protocolHash,omitempty" bson:"protocol_hash,omitempty"`
}

// Headline returns the decision string in the requested register. Used to
// seed a live session's system context.
func (v *Verdict) Headline(simplified bool) string {
	if simplified && v.SimpleDecision != "" {
		return v.SimpleDecision
	}
	return v.Decision
}

// SavedEntry is one resolved scenario kept in history.
type SavedEntry struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Scenario  Scenario  `json:"scenario" bson:"scenario"`
	Verdict   Verdict   `json:"verdict" bson:"verdict"`
}
