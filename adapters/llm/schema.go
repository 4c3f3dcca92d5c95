package llm

import "google.golang.org/genai"

// Response schemas for structured verdict generation. The engine asks for
// JSON constrained by these so parsing never depends on prompt discipline.

func reasonSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"main":   {Type: genai.TypeString},
			"nuance": {Type: genai.TypeString},
			"simple": {Type: genai.TypeString},
		},
		Required: []string{"main", "nuance", "simple"},
	}
}

func verdictSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"decision":        {Type: genai.TypeString},
			"simpleDecision":  {Type: genai.TypeString},
			"confidenceScore": {Type: genai.TypeNumber},
			"urgencyLevel": {
				Type: genai.TypeString,
				Enum: []string{"Critical", "High", "Moderate", "Strategic"},
			},
			"thinkingLevel": {Type: genai.TypeString},
			"reasons": {
				Type:  genai.TypeArray,
				Items: reasonSchema(),
			},
			"criticalRisk":          {Type: genai.TypeString},
			"simpleCriticalRisk":    {Type: genai.TypeString},
			"riskElaboration":       {Type: genai.TypeString},
			"simpleRiskElaboration": {Type: genai.TypeString},
			"failureChain": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"title":  {Type: genai.TypeString},
						"impact": {Type: genai.TypeString},
					},
					Required: []string{"title", "impact"},
				},
			},
			"marketSentiment": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"preScore":       {Type: genai.TypeNumber},
					"postScore":      {Type: genai.TypeNumber},
					"analysis":       {Type: genai.TypeString},
					"simpleAnalysis": {Type: genai.TypeString},
				},
				Required: []string{"preScore", "postScore", "analysis", "simpleAnalysis"},
			},
			"vectors": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"category":    {Type: genai.TypeString},
						"weight":      {Type: genai.TypeNumber},
						"description": {Type: genai.TypeString},
					},
					Required: []string{"category", "weight", "description"},
				},
			},
			"executionPlan": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"actions": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"id":          {Type: genai.TypeString},
								"title":       {Type: genai.TypeString},
								"description": {Type: genai.TypeString},
								"phase": {
									Type: genai.TypeString,
									Enum: []string{"Immediate", "Short-Term", "Long-Term"},
								},
								"department":        {Type: genai.TypeString},
								"simpleDescription": {Type: genai.TypeString},
							},
							Required: []string{"id", "title", "description", "phase", "department", "simpleDescription"},
						},
					},
					"briefs": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"id":       {Type: genai.TypeString},
								"audience": {Type: genai.TypeString},
								"subject":  {Type: genai.TypeString},
								"content":  {Type: genai.TypeString},
								"tone":     {Type: genai.TypeString},
							},
							Required: []string{"id", "audience", "subject", "content", "tone"},
						},
					},
				},
				Required: []string{"actions", "briefs"},
			},
		},
		Required: []string{
			"decision", "simpleDecision", "confidenceScore", "urgencyLevel",
			"reasons", "criticalRisk", "simpleCriticalRisk",
			"riskElaboration", "simpleRiskElaboration",
			"failureChain", "marketSentiment", "vectors",
		},
	}
}

func warGameSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"paths": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"id":                 {Type: genai.TypeString},
						"strategyName":       {Type: genai.TypeString},
						"successProbability": {Type: genai.TypeNumber},
						"attritionRate":      {Type: genai.TypeNumber},
						"timeToValue":        {Type: genai.TypeString},
						"terminalOutcome":    {Type: genai.TypeString},
						"simpleOutcome":      {Type: genai.TypeString},
						"risks": {
							Type:  genai.TypeArray,
							Items: &genai.Schema{Type: genai.TypeString},
						},
					},
					Required: []string{
						"id", "strategyName", "successProbability", "attritionRate",
						"timeToValue", "terminalOutcome", "simpleOutcome", "risks",
					},
				},
			},
			"recommendedPathId":   {Type: genai.TypeString},
			"comparativeAnalysis": {Type: genai.TypeString},
			"simpleComparison":    {Type: genai.TypeString},
		},
		Required: []string{"paths", "recommendedPathId", "comparativeAnalysis", "simpleComparison"},
	}
}

func auditSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"nodes": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"agentRole":   {Type: genai.TypeString},
						"perspective": {Type: genai.TypeString},
						"sentiment": {
							Type: genai.TypeString,
							Enum: []string{"Aligned", "Cautious", "Opposed"},
						},
						"score": {Type: genai.TypeNumber},
					},
					Required: []string{"agentRole", "perspective", "sentiment", "score"},
				},
			},
			"consensusScore":  {Type: genai.TypeNumber},
			"terminalSummary": {Type: genai.TypeString},
			"simpleSummary":   {Type: genai.TypeString},
		},
		Required: []string{"nodes", "consensusScore", "terminalSummary", "simpleSummary"},
	}
}
