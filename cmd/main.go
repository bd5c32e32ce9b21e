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

	"github.com/kresnabayu/cermin/server/adapters/hume"
	"github.com/kresnabayu/cermin/server/adapters/mongo"
	"github.com/kresnabayu/cermin/server/domain/repositories"
	"github.com/kresnabayu/cermin/server/internal/api"
	"github.com/kresnabayu/cermin/server/internal/websocket"
	"github.com/kresnabayu/cermin/server/usecase"
)

func main() {
	// Load environment variables from .env when present. Running without
	// one is normal in production.
	_ = godotenv.Load()

	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Create Echo instance
	e := echo.New()

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Initialize emotion inference adapter. Without an API key the server
	// runs against the mock, which is enough for local development.
	var inference repositories.EmotionInference
	humeConfig := hume.NewConfigFromEnv()
	if humeConfig.APIKey != "" {
		client, err := hume.NewClient(humeConfig, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Hume client", zap.Error(err))
		}
		inference = client
	} else {
		logger.Warn("HUME_API_KEY not set, using mock inference")
		inference = hume.NewMockInference(logger)
	}

	// Initialize the derived-scores archive when MongoDB is configured
	var archive repositories.ExpressionArchive
	mongoConfig := mongo.NewConfigFromEnv()
	if mongoConfig.URI != "" {
		mongoClient, err := mongo.NewClient(mongoConfig, logger)
		if err != nil {
			logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Close(ctx)
		}()
		archive = mongo.NewExpressionRepository(mongoClient.Database)
	} else {
		logger.Info("MONGODB_URI not set, expression archive disabled")
	}

	// Initialize WebSocket hub for the live expression feed
	hub := websocket.NewHub(logger)
	go hub.Run()

	// Initialize usecase services
	sessions := usecase.NewSessionService(inference, archive, hub, usecase.PipelineConfig{}, logger)

	// Initialize API routes
	api.InitRoutes(e, sessions, hub, logger)

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

	logger.Info("Server started", zap.String("port", port))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
