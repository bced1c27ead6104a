package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/fraudwatch/server/adapters/llm"
	"github.com/fraudwatch/server/adapters/sqlite"
	"github.com/fraudwatch/server/adapters/stt"
	"github.com/fraudwatch/server/domain/repositories"
	"github.com/fraudwatch/server/internal/api"
	"github.com/fraudwatch/server/internal/auth"
	"github.com/fraudwatch/server/internal/config"
	"github.com/fraudwatch/server/internal/metrics"
	"github.com/fraudwatch/server/internal/scratch"
	"github.com/fraudwatch/server/internal/websocket"
	"github.com/fraudwatch/server/usecase"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Persistence
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := sqlite.Open(ctx, cfg.DatabasePath, logger)
	cancel()
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	userRepo := sqlite.NewUserRepository(db)
	analysisRepo := sqlite.NewAnalysisRepository(db)

	// Providers. Mocks keep the server usable without cloud credentials.
	var speechToText repositories.SpeechToText = stt.NewGoogleSpeechToText()
	if os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
		logger.Warn("GOOGLE_APPLICATION_CREDENTIALS not set, using mock transcription")
		speechToText = stt.NewMockSpeechToText(logger)
	}

	var classifier repositories.Classifier
	if cfg.GeminiAPIKey != "" {
		classifier, err = llm.NewGeminiClassifier(llm.GeminiConfig{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			PromptTemplate: cfg.PromptTemplate,
			TimeoutSeconds: int(cfg.ProviderTimeout / time.Second),
		}, logger)
		if err != nil {
			logger.Fatal("Failed to create classifier", zap.Error(err))
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, using mock classifier")
		classifier = llm.NewMockClassifier()
	}

	scratchStore, err := scratch.NewStore(cfg.ScratchDir, logger)
	if err != nil {
		logger.Fatal("Failed to create scratch store", zap.Error(err))
	}

	sessions := usecase.NewSessionStore(cfg.SessionTTL, logger)
	sessions.Start()
	defer sessions.Stop()

	// Initialize usecase services
	service := usecase.NewAnalysisService(
		speechToText,
		classifier,
		analysisRepo,
		scratchStore,
		sessions,
		metrics.NewMetrics(),
		usecase.Options{
			Language:        cfg.Language,
			ProviderTimeout: cfg.ProviderTimeout,
			MinChunkBytes:   cfg.MinChunkBytes,
			MinRMS:          cfg.MinRMS,
		},
		logger,
	)

	// Initialize WebSocket hub
	hub := websocket.NewHub(service, logger)
	go hub.Run()

	// Initialize API routes
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	api.InitRoutes(e, service, userRepo, analysisRepo, tokens, hub, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
