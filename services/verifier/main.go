package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/pflag"

	"github.com/diagnosis/luxsuv-checkin/pkg/config"
	"github.com/diagnosis/luxsuv-checkin/pkg/database"
	"github.com/diagnosis/luxsuv-checkin/pkg/events"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
	mw "github.com/diagnosis/luxsuv-checkin/pkg/middleware"
	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/domain"
	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/handlers"
	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/repository"
	"github.com/diagnosis/luxsuv-checkin/services/verifier/internal/service"
)

func main() {
	cfg := config.Load()

	addInspector := pflag.String("add-inspector", "", "create an inspector with this name and exit")
	inspectorCode := pflag.String("code", "", "access code for --add-inspector")
	pflag.Parse()

	// Connect to database
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if *addInspector != "" {
		if err := createInspector(ctx, repository.NewInspectorRepository(pool), *addInspector, *inspectorCode); err != nil {
			logger.Error("Failed to create inspector", "error", err)
			os.Exit(1)
		}
		return
	}

	// Idempotency cache
	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Connect to event bus
	var eventBus events.Publisher = events.NopPublisher{}
	if cfg.NATS.Enabled {
		nb, err := events.NewNATSEventBus(cfg.NATS.URL, "verifier")
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		eventBus = nb
	}
	defer eventBus.Close()

	// Initialize repositories
	inspectorRepo := repository.NewInspectorRepository(pool)
	registrationRepo := repository.NewRegistrationRepository(pool)

	// Initialize services
	checkinService := service.NewCheckinService(inspectorRepo, registrationRepo, eventBus, cfg)

	// Initialize handlers
	h := handlers.New(checkinService, mw.NewRedisIdempotencyStore(rdb), mw.NewRedisRateLimitStore(rdb))

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("verifier"))
	r.Use(mw.TerminalID(""))
	r.Use(mw.Logging)
	r.Use(mw.Health)

	r.Mount("/v1", h.Routes())

	// Start server
	srv := &http.Server{
		Addr:         ":" + cfg.Verifier.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down verifier service...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Verifier service shutdown error", "error", err)
		}
	}()

	logger.Info("Starting verifier service", "port", cfg.Verifier.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Verifier service error", "error", err)
		os.Exit(1)
	}
}

func createInspector(ctx context.Context, repo repository.InspectorRepository, name, code string) error {
	if len(code) < 6 {
		return fmt.Errorf("access code must be at least 6 characters")
	}
	hash, err := argon2id.CreateHash(code, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash access code: %w", err)
	}
	inspector, err := repo.Create(ctx, name, hash, domain.CodeDigest(code))
	if err != nil {
		return err
	}
	logger.Info("Inspector created", "inspector_id", inspector.ID, "name", inspector.Name)
	return nil
}
