package api

import (
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/internal/auth"
	"github.com/ritz-devbox/decisiv/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, decisions *usecase.DecisionService, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "decisiv-server",
		})
	})

	// Prometheus scrape endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Client token issuance
	e.POST("/api/v1/auth/token", func(c echo.Context) error {
		return issueToken(c, logger)
	})

	// API v1 routes, JWT protected
	v1 := e.Group("/api/v1", requireClientToken(logger))

	v1.POST("/resolutions", func(c echo.Context) error {
		return resolveScenario(c, decisions, logger)
	})
	v1.POST("/resolutions/wargame", func(c echo.Context) error {
		return rerunWarGame(c, decisions, logger)
	})
	v1.POST("/resolutions/audit", func(c echo.Context) error {
		return rerunAudit(c, decisions, logger)
	})
	v1.POST("/scenarios/draft", func(c echo.Context) error {
		return draftScenario(c, decisions, logger)
	})
	v1.GET("/history", func(c echo.Context) error {
		return listHistory(c, decisions, logger)
	})
	v1.DELETE("/history", func(c echo.Context) error {
		return clearHistory(c, decisions, logger)
	})
}

// issueToken exchanges the configured access key for a client JWT.
func issueToken(c echo.Context, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if req.ClientID == "" || req.AccessKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Client ID and access key are required",
		})
	}

	expected := os.Getenv("DECISIV_ACCESS_KEY")
	if expected == "" || req.AccessKey != expected {
		logger.Warn("Client authentication failed", zap.String("client_id", req.ClientID))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid access key",
		})
	}

	token, err := auth.GenerateClientToken(req.ClientID)
	if err != nil {
		logger.Error("Failed to generate client token",
			zap.String("client_id", req.ClientID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Client authenticated", zap.String("client_id", req.ClientID))
	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		ClientID:  req.ClientID,
	})
}

// requireClientToken validates the Bearer token on protected routes.
func requireClientToken(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			authHeader := c.Request().Header.Get("Authorization")
			if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
				token = authHeader[7:]
			}
			if token == "" {
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "missing_token",
					Message: "JWT token is required in Authorization header",
				})
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				logger.Warn("Request rejected: invalid token", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, ErrorResponse{
					Error:   "invalid_token",
					Message: "Invalid or expired JWT token",
				})
			}
			if claims.Role != "client" {
				return c.JSON(http.StatusForbidden, ErrorResponse{
					Error:   "invalid_role",
					Message: "Only client tokens are accepted",
				})
			}

			c.Set("client_id", claims.ClientID)
			return next(c)
		}
	}
}

func resolveScenario(c echo.Context, decisions *usecase.DecisionService, logger *zap.Logger) error {
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}
	if err := req.Scenario.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_scenario",
			Message: err.Error(),
		})
	}

	verdict, err := decisions.Resolve(c.Request().Context(), req.Scenario, req.Settings)
	if err != nil {
		logger.Error("Resolution failed",
			zap.String("title", req.Scenario.Title),
			zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "resolution_failed",
			Message: "The resolution engine could not produce a verdict",
		})
	}
	return c.JSON(http.StatusOK, verdict)
}

func rerunWarGame(c echo.Context, decisions *usecase.DecisionService, logger *zap.Logger) error {
	var req ContestRequest
	if err := c.Bind(&req); err != nil || req.Decision == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Decision is required",
		})
	}

	result, err := decisions.WarGame(c.Request().Context(), req.Decision, req.Context)
	if err != nil {
		logger.Error("War game failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "wargame_failed",
			Message: "The simulation could not be completed",
		})
	}
	return c.JSON(http.StatusOK, result)
}

func rerunAudit(c echo.Context, decisions *usecase.DecisionService, logger *zap.Logger) error {
	var req ContestRequest
	if err := c.Bind(&req); err != nil || req.Decision == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Decision is required",
		})
	}

	audit, err := decisions.Audit(c.Request().Context(), req.Decision, req.Context)
	if err != nil {
		logger.Error("Audit failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "audit_failed",
			Message: "The review could not be completed",
		})
	}
	return c.JSON(http.StatusOK, audit)
}

func draftScenario(c echo.Context, decisions *usecase.DecisionService, logger *zap.Logger) error {
	var req DraftRequest
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Title is required",
		})
	}

	text, err := decisions.DraftScenario(c.Request().Context(), req.Title, req.Domain)
	if err != nil {
		logger.Error("Scenario drafting failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "draft_failed",
			Message: "The scenario could not be drafted",
		})
	}
	return c.JSON(http.StatusOK, DraftResponse{Context: text})
}

func listHistory(c echo.Context, decisions *usecase.DecisionService, logger *zap.Logger) error {
	entries, err := decisions.History(c.Request().Context())
	if err != nil {
		logger.Error("History listing failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_failed",
			Message: "History could not be read",
		})
	}
	return c.JSON(http.StatusOK, entries)
}

func clearHistory(c echo.Context, decisions *usecase.DecisionService, logger *zap.Logger) error {
	if err := decisions.ClearHistory(c.Request().Context()); err != nil {
		logger.Error("History clearing failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "history_failed",
			Message: "History could not be cleared",
		})
	}
	return c.NoContent(http.StatusNoContent)
}
