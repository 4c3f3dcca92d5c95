package api

import (
	"time"

	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
)

// TokenRequest represents the request payload for client authentication
type TokenRequest struct {
	ClientID  string `json:"client_id" validate:"required"`
	AccessKey string `json:"access_key" validate:"required"`
}

// TokenResponse represents the response payload for client authentication
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	ClientID  string    `json:"client_id"`
}

// ResolveRequest carries a scenario and the engine settings to resolve it
// with.
type ResolveRequest struct {
	Scenario entities.Scenario           `json:"scenario"`
	Settings repositories.EngineSettings `json:"settings"`
}

// ContestRequest reruns an enrichment against an existing decision.
type ContestRequest struct {
	Decision string `json:"decision" validate:"required"`
	Context  string `json:"context"`
}

// DraftRequest asks for a generated scenario description.
type DraftRequest struct {
	Title  string                  `json:"title" validate:"required"`
	Domain entities.ScenarioDomain `json:"domain"`
}

// DraftResponse carries the generated scenario description.
type DraftResponse struct {
	Context string `json:"context"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
