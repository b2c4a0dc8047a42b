package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"learntrust-backend/internal/certificates"
	"learntrust-backend/internal/config"
	"learntrust-backend/internal/database"
	"learntrust-backend/internal/handlers"
	"learntrust-backend/internal/ledger"
	"learntrust-backend/internal/middleware"
	"learntrust-backend/internal/policy"
	"learntrust-backend/internal/repository"
	"learntrust-backend/internal/router"
	"learntrust-backend/internal/sequence"
	"learntrust-backend/internal/services"
	"learntrust-backend/internal/token"
	"learntrust-backend/internal/websocket"
	"learntrust-backend/internal/worker"
)

func main() {
	log.Println("🚀 Starting LearnTrust Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Initialize Repositories ────
	eventRepo := repository.NewEventRepo(pool)
	auditRepo := repository.NewAuditRepo(pool)
	moduleRepo := repository.NewModuleRepo(pool)
	progressRepo := repository.NewProgressRepo(pool)
	quizRepo := repository.NewQuizRepo(pool)
	certificateRepo := repository.NewCertificateRepo(pool)

	// ──── Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	tokens := token.NewService(cfg.ServerSecret)

	auditChain := ledger.New(auditRepo, tokens, redisClients.PubSub)
	guard := sequence.NewGuard(pool, eventRepo, auditChain,
		time.Duration(cfg.HeartbeatStalenessSeconds)*time.Second)

	failureCounter := policy.NewRedisFailureCounter(redisClients.Queue,
		time.Duration(cfg.QuizFailureTTLSeconds)*time.Second)
	engine := policy.NewEngine(progressRepo, quizRepo, failureCounter, auditChain,
		cfg.WatchPercentThreshold, cfg.QuizFailureLimit)

	certService := certificates.NewService(pool, certificateRepo, tokens, auditChain)
	heatmapService := services.NewHeatmapService(eventRepo)

	// ──── Initialize Handlers ────
	eventsHandler := handlers.NewEventsHandler(guard)
	modulesHandler := handlers.NewModulesHandler(moduleRepo, engine, tokens, heatmapService,
		time.Duration(cfg.StreamTokenTTLSeconds)*time.Second)
	progressHandler := handlers.NewProgressHandler(progressRepo, moduleRepo, quizRepo, engine, auditChain)
	certificatesHandler := handlers.NewCertificatesHandler(certService, certificateRepo, progressRepo, redisClients.Queue)
	auditHandler := handlers.NewAuditHandler(auditChain, auditRepo)

	// ──── Step 5: Start Job Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, certService, progressRepo, 5)
	workerPool.Start()
	log.Println("✓ Worker pool started (5 goroutines)")

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, cfg.JWTSecret)
	log.Println("✓ WebSocket hub started")

	// ──── Step 7: Start Chain Integrity Sweeper ────
	sweeper := services.NewIntegritySweeper(auditChain, wsHub,
		time.Duration(cfg.ChainVerifyIntervalSeconds)*time.Second)
	sweeper.Start()
	log.Println("✓ Chain integrity sweeper started")

	// ──── Step 8: Start HTTP Server ────
	r := router.New(
		jwtAuth,
		eventsHandler,
		modulesHandler,
		progressHandler,
		certificatesHandler,
		auditHandler,
		wsHub,
		sweeper,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()
		sweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ LearnTrust Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws/audit", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
