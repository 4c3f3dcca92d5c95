package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/adapters"
	"github.com/ritz-devbox/decisiv/domain/entities"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/saga"
	"github.com/ritz-devbox/decisiv/internal/saga/resolution"
	"github.com/ritz-devbox/decisiv/usecase"
)

type stubEngine struct{}

func (stubEngine) Resolve(ctx context.Context, scenario entities.Scenario, settings repositories.EngineSettings) (*entities.Verdict, error) {
	return &entities.Verdict{Decision: "Proceed", ConfidenceScore: 0.9}, nil
}

func (stubEngine) WarGame(ctx context.Context, decision, scenarioContext string) (*entities.WarGameResult, error) {
	return &entities.WarGameResult{RecommendedPathID: "p1"}, nil
}

func (stubEngine) Audit(ctx context.Context, decision, scenarioContext string) (*entities.CollaborativeAudit, error) {
	return &entities.CollaborativeAudit{ConsensusScore: 0.5}, nil
}

func (stubEngine) DraftScenario(ctx context.Context, title string, domain entities.ScenarioDomain) (string, error) {
	return "a briefing", nil
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	logger := zap.NewNop()
	history := adapters.NewMemoryHistoryRepository()
	pipeline := resolution.NewService(saga.NewManager(logger), stubEngine{}, nil, history, logger)
	decisions := usecase.NewDecisionService(pipeline, stubEngine{}, history, logger)

	e := echo.New()
	InitRoutes(e, decisions, logger)
	return e
}

func bearerToken(t *testing.T, e *echo.Echo) string {
	t.Helper()
	os.Setenv("DECISIV_ACCESS_KEY", "sesame")
	t.Cleanup(func() { os.Unsetenv("DECISIV_ACCESS_KEY") })

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token",
		strings.NewReader(`{"client_id":"console","access_key":"sesame"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("token issuance status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding token response: %v", err)
	}
	return resp.Token
}

func TestIssueTokenRejectsBadKey(t *testing.T) {
	e := newTestServer(t)
	os.Setenv("DECISIV_ACCESS_KEY", "sesame")
	defer os.Unsetenv("DECISIV_ACCESS_KEY")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token",
		strings.NewReader(`{"client_id":"console","access_key":"wrong"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}
}

func TestResolveEndpoint(t *testing.T) {
	e := newTestServer(t)
	token := bearerToken(t, e)

	body := `{"scenario":{"title":"expand","context":"emerging market"},"settings":{"simplified":false}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolutions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var verdict entities.Verdict
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decoding verdict: %v", err)
	}
	if verdict.Decision != "Proceed" {
		t.Errorf("decision = %q", verdict.Decision)
	}

	// The resolution is now visible in history.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history status = %d", rec.Code)
	}
	var entries []entities.SavedEntry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(entries) != 1 || entries[0].Scenario.Title != "expand" {
		t.Fatalf("history = %+v", entries)
	}

	// And can be cleared.
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/history", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", rec.Code)
	}
}

func TestResolveEndpointValidatesScenario(t *testing.T) {
	e := newTestServer(t)
	token := bearerToken(t, e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resolutions",
		strings.NewReader(`{"scenario":{"title":""}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDraftEndpoint(t *testing.T) {
	e := newTestServer(t)
	token := bearerToken(t, e)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenarios/draft",
		strings.NewReader(`{"title":"pivot","domain":"Legal"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp DraftResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding draft: %v", err)
	}
	if resp.Context == "" {
		t.Error("empty draft")
	}
}

func TestHealthEndpoint(t *testing.T) {
	e := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
