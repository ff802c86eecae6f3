package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/config"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/handlers"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/utils"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/internal/workers"
	"github.com/Sabareeswaran070/Online-Examination-System-OES--sub001/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(slogLogger)
	logger := utils.NewSlogLogger(slogLogger)

	// Storage, identity, events and services
	engine, err := pkg.BuildEngine(context.Background(), cfg, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}

	// Authentication
	var auth handlers.Authenticator
	if cfg.Auth.Mode == "jwt" {
		auth = handlers.NewJWTAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, engine.Static)
	} else {
		auth = handlers.NewCasdoorAuthMiddleware(cfg.Casdoor, engine.Identity, logger)
	}

	// Background workers
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	repo := engine.Repos.GetRepository()
	reaper := workers.NewDeadlineReaper(repo.Attempt(), engine.Services.Attempt(), engine.Clock, slogLogger,
		cfg.Engine.ReaperInterval, cfg.Engine.ReaperBatchSize)
	notifier := workers.NewStatusNotifier(repo.Exam(), engine.Bus, engine.Clock, slogLogger,
		cfg.Engine.StatusNotifierInterval)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); reaper.Start(workerCtx) }()
	go func() { defer wg.Done(); notifier.Start(workerCtx) }()

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(engine.Services, engine.Validator, logger, auth, engine.Identity, cfg.AllowedOrigins)

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, cfg.AllowedOrigins)
	handlerManager.SetupRoutes(router)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"storage", cfg.StorageDriver,
			"auth", cfg.Auth.Mode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	stopWorkers()
	wg.Wait()

	// flushes pending leaderboards, then closes the bus, storage and Redis
	engine.Close(ctx)

	logger.Info("Server exited")
}
