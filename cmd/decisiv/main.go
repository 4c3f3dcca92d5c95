package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ritz-devbox/decisiv/adapters"
	"github.com/ritz-devbox/decisiv/adapters/llm"
	decisivmongo "github.com/ritz-devbox/decisiv/adapters/mongo"
	"github.com/ritz-devbox/decisiv/adapters/tts"
	"github.com/ritz-devbox/decisiv/domain/repositories"
	"github.com/ritz-devbox/decisiv/internal/api"
	"github.com/ritz-devbox/decisiv/internal/auth"
	"github.com/ritz-devbox/decisiv/internal/saga"
	"github.com/ritz-devbox/decisiv/internal/saga/resolution"
	"github.com/ritz-devbox/decisiv/usecase"
)

func main() {
	godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	auth.Init()

	ctx := context.Background()

	// Initialize adapters
	engine, err := llm.NewEngine(ctx, llm.GeminiConfig{
		APIKey:     os.Getenv("GEMINI_API_KEY"),
		ProModel:   os.Getenv("GEMINI_PRO_MODEL"),
		FlashModel: os.Getenv("GEMINI_FLASH_MODEL"),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize resolution engine", zap.Error(err))
	}

	// The readback voice is optional; without it verdicts are served
	// without audio.
	var speech repositories.TextToSpeech
	if ttsService, err := tts.NewGeminiTTS(ctx, tts.NewGeminiTTSConfigFromEnv(), logger); err != nil {
		logger.Warn("Verdict readback disabled", zap.Error(err))
	} else {
		speech = ttsService
	}

	history, cleanup := newHistoryRepository(logger)
	defer cleanup()

	// Initialize usecase services
	manager := saga.NewManager(logger)
	pipeline := resolution.NewService(manager, engine, speech, history, logger)
	decisions := usecase.NewDecisionService(pipeline, engine, history, logger)

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize API routes
	api.InitRoutes(e, decisions, logger)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Decisiv server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newHistoryRepository connects to MongoDB when MONGODB_URI is set and
// falls back to the in-memory store otherwise.
func newHistoryRepository(logger *zap.Logger) (repositories.HistoryRepository, func()) {
	if os.Getenv("MONGODB_URI") == "" {
		logger.Info("MONGODB_URI not set, keeping history in memory")
		return adapters.NewMemoryHistoryRepository(), func() {}
	}

	client, err := decisivmongo.NewClient(decisivmongo.NewConfigFromEnv(), logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, keeping history in memory", zap.Error(err))
		return adapters.NewMemoryHistoryRepository(), func() {}
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(ctx); err != nil {
			logger.Error("Failed to close MongoDB connection", zap.Error(err))
		}
	}
	return decisivmongo.NewHistoryRepository(client.Database), cleanup
}
