package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/luxsuv-checkin/internal/camera"
	"github.com/diagnosis/luxsuv-checkin/internal/hid"
	"github.com/diagnosis/luxsuv-checkin/internal/http/handlers/terminal"
	"github.com/diagnosis/luxsuv-checkin/internal/operator"
	"github.com/diagnosis/luxsuv-checkin/internal/optical"
	"github.com/diagnosis/luxsuv-checkin/internal/scan"
	"github.com/diagnosis/luxsuv-checkin/internal/verify"
	"github.com/diagnosis/luxsuv-checkin/pkg/clock"
	"github.com/diagnosis/luxsuv-checkin/pkg/config"
	"github.com/diagnosis/luxsuv-checkin/pkg/database"
	"github.com/diagnosis/luxsuv-checkin/pkg/events"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
	mw "github.com/diagnosis/luxsuv-checkin/pkg/middleware"
	"github.com/diagnosis/luxsuv-checkin/services/terminal/internal/publish"
)

func main() {
	cfg := config.Load()
	if cfg.ProfileErr != nil {
		logger.Warn("Scanner profile not applied", "error", cfg.ProfileErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = context.WithValue(ctx, logger.ServiceKey, "terminal")
	ctx = context.WithValue(ctx, logger.TerminalIDKey, cfg.Terminal.ID)

	clk := clock.Real()

	// Operator sessions survive kiosk restarts when Redis is reachable
	var operators operator.Store
	rdb, err := database.ConnectRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("Redis unavailable, operator sessions kept in memory", "error", err)
		operators = operator.NewMemoryStore(clk)
	} else {
		defer rdb.Close()
		operators = operator.NewRedisStore(rdb, cfg.Terminal.ID, clk)
	}

	// Connect to event bus
	var bus events.Publisher = events.NopPublisher{}
	if cfg.NATS.Enabled {
		nb, err := events.NewNATSEventBus(cfg.NATS.URL, "terminal-"+cfg.Terminal.ID)
		if err != nil {
			logger.Warn("NATS unavailable, scan events disabled", "error", err)
		} else {
			bus = nb
		}
	}
	defer bus.Close()

	// Verification service
	dispatcher := verify.NewDispatcher(verify.NewClient(cfg.Verifier.BaseURL, cfg.Verifier.Timeout))

	// Acquisition channels. The kiosk webview owns the real camera and
	// decoder and reports into the relays.
	relay := camera.NewRelay()
	decoder := optical.NewRelayDecoder()
	cameras := camera.NewManager(relay, clk, camera.Options{
		Width:               cfg.Scanner.PreferredWidth,
		Height:              cfg.Scanner.PreferredHeight,
		AttachRetry:         cfg.Scanner.AttachRetry,
		AttachRetryInterval: cfg.Scanner.AttachRetryInterval,
	})
	opticalInput := scan.NewOptical(cameras, relay.Surface, camera.Facing(cfg.Scanner.Facing))

	feed := hid.NewFeed()
	keystrokes := hid.New(clk, hid.Options{
		ResetAfter:    cfg.Scanner.KeystrokeReset,
		FinalizeAfter: cfg.Scanner.KeystrokeFinalize,
	})

	coord := scan.New(scan.Options{
		Channels: map[scan.Mode]scan.Channel{
			scan.ModeOpticalQR:      opticalInput.Channel(optical.NewStillLoop(clk, decoder, cfg.Scanner.FrameInterval)),
			scan.ModeOpticalBarcode: opticalInput.Channel(optical.NewStreamLoop(clk, decoder)),
			scan.ModeHID:            scan.NewHID(feed, keystrokes),
		},
		Verifier:    dispatcher,
		Credentials: operators,
		Clock:       clk,
	})
	defer coord.Close()

	coord.Observe(scan.LogTransitions(ctx))
	coord.Observe(publish.NewBridge(ctx, bus, cfg.Terminal.ID, clk).Observe)

	if mode, ok := scan.ParseMode(cfg.Scanner.DefaultMode); ok {
		if err := coord.SelectMode(mode); err != nil {
			logger.Warn("Default scan mode not available", "mode", mode, "error", err)
		}
	}

	// Initialize handlers
	h := &terminal.Handler{
		Scan:      coord,
		Feed:      feed,
		Camera:    relay,
		Decoder:   decoder,
		Operators: operators,
		Auth:      dispatcher,
		JWTSecret: cfg.Auth.JWTSecret,
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("terminal"))
	r.Use(mw.TerminalID(cfg.Terminal.ID))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(mw.CORS(cfg.Terminal.AllowedOrigins))

	r.Mount("/v1", h.Routes())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting terminal service", "port", cfg.Server.Port, "terminal_id", cfg.Terminal.ID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down terminal service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		coord.Suspend()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Terminal service error", "error", err)
		os.Exit(1)
	}
}
