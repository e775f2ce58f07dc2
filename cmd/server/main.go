package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lessonlab-backend/internal/client"
	"lessonlab-backend/internal/config"
	"lessonlab-backend/internal/database"
	"lessonlab-backend/internal/handlers"
	"lessonlab-backend/internal/logger"
	"lessonlab-backend/internal/middleware"
	"lessonlab-backend/internal/repository"
	"lessonlab-backend/internal/router"
	"lessonlab-backend/internal/services"
	"lessonlab-backend/internal/session"
	"lessonlab-backend/internal/ui"
	"lessonlab-backend/internal/web"
	"lessonlab-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting LessonLab", "env", cfg.Env)

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("PostgreSQL connection failed", "error", err)
	}
	defer pool.Close()

	// ──── Step 3: Initialize Redis ────
	rdb, err := database.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatal("Redis connection failed", "error", err)
	}
	defer rdb.Close()

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, cfg.MigrationsDir, log); err != nil {
		log.Fatal("Database migration failed", "error", err)
	}

	// ──── Initialize Repositories ────
	userRepo := repository.NewUserRepo(pool)
	lessonRepo := repository.NewLessonRepo(pool)

	// ──── Step 5: Initialize Gemini Client ────
	gemini, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, log)
	if err != nil {
		log.Fatal("Gemini client initialization failed", "error", err)
	}
	defer gemini.Close()

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret, cfg.JWTAudience)
	authService := services.NewAuthService(userRepo, services.NewRedisTokenStore(rdb), jwtAuth)
	lessonService := services.NewLessonService(lessonRepo, gemini, log)

	// ──── Step 6: Web pages and typing preview ────
	apiClient := client.New(cfg.LessonAPIURL, nil)
	sessions := web.NewSessions(apiClient, cfg.WebFallbackPath, func(id string) session.Store {
		return session.RedisStore{Client: rdb, Key: "websession:" + id, TTL: 7 * 24 * time.Hour}
	})
	webServer, err := web.New(sessions, log)
	if err != nil {
		log.Fatal("Web templates failed to load", "error", err)
	}
	preview := websocket.NewPreviewHub(ui.DefaultScripts, ui.DefaultPreviewDelays(), log)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	generateLimiter := middleware.NewRateLimiter(cfg.GenerateRateLimit, time.Hour)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	generateLimiter.StartCleanup(ctx)
	authLimiter.StartCleanup(ctx)
	sessions.StartCleanup(ctx, 10*time.Minute)

	// ──── Step 7: Start HTTP Server ────
	r := router.New(router.Deps{
		JWTAuth:         jwtAuth,
		AuthHandler:     handlers.NewAuthHandler(authService),
		LessonHandler:   handlers.NewLessonHandler(lessonService, log),
		GenerateLimiter: generateLimiter,
		AuthLimiter:     authLimiter,
		Preview:         preview,
		Web:             webServer,
		FrontendURL:     cfg.FrontendURL,
	})

	// Generation makes several model calls, so writes get more room than reads.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down")
		stop()
		preview.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Shutdown failed", "error", err)
		}
	}()

	log.Info("LessonLab ready", "addr", "http://localhost:"+cfg.Port, "api", cfg.LessonAPIURL)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Server error", "error", err)
	}
}
