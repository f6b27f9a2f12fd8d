package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"libu-backend/internal/config"
	"libu-backend/internal/database"
	"libu-backend/internal/handlers"
	"libu-backend/internal/logger"
	"libu-backend/internal/middleware"
	"libu-backend/internal/router"
	"libu-backend/internal/services"
	"libu-backend/internal/session"
	"libu-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", "error", err)
	}
	log.Info("starting libu backend", "env", cfg.Env, "store", cfg.StoreDriver)

	// ──── Step 2: Optional Redis (events and/or storage) ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatal("redis connection failed", "error", err)
		}
		defer redisClients.Close()
		log.Info("redis connected")
	}

	// ──── Step 3: Session Store ────
	store, closeStore, err := openStore(cfg, redisClients, log)
	if err != nil {
		log.Fatal("session store init failed", "driver", cfg.StoreDriver, "error", err)
	}
	defer closeStore()
	log.Info("session store ready", "driver", cfg.StoreDriver)
	if cfg.StoreDriver == config.StoreRedis || cfg.StoreDriver == config.StorePostgres {
		log.Info("learner writes are serialised per process; run a single instance against this store")
	}

	// ──── Step 4: Initialize Gemini Client ────
	var gemini *services.GeminiService
	if cfg.GeminiAPIKey != "" {
		gemini, err = services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs, log)
		if err != nil {
			log.Fatal("gemini client init failed", "error", err)
		}
		defer gemini.Close()
		log.Info("gemini client initialized", "model", cfg.GeminiModel)
	} else {
		log.Warn("GEMINI_API_KEY not set, module analysis disabled")
	}

	// ──── Step 5: WebSocket Hub and Session Manager ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	var pubsubClient *redis.Client
	if redisClients != nil {
		pubsubClient = redisClients.PubSub
	}
	wsHub := websocket.NewHub(pubsubClient, jwtAuth, cfg.FrontendURL, log)

	sessions := session.NewManager(store, wsHub, log)
	extractor := services.NewExtractor(time.Duration(cfg.ExtractTimeoutSeconds)*time.Second, log)

	// ──── Step 6: Start HTTP Server ────
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	r := router.New(
		ctx,
		log,
		jwtAuth,
		handlers.NewAuthHandler(jwtAuth, log),
		handlers.NewSessionHandler(sessions, log),
		handlers.NewModuleHandler(sessions, gemini, log),
		handlers.NewLibraryHandler(sessions, log),
		handlers.NewExtractHandler(extractor),
		wsHub,
		cfg.FrontendURL,
		cfg.AnalyzeRatePerMin,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Info("libu backend ready", "addr", server.Addr, "api", "/api/v1", "ws", "/api/v1/ws")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("server error", "error", err)
	}
}
