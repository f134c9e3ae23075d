package main

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/diagnosis/luxsuv-checkin/pkg/config"
	"github.com/diagnosis/luxsuv-checkin/pkg/events"
	"github.com/diagnosis/luxsuv-checkin/pkg/logger"
	mw "github.com/diagnosis/luxsuv-checkin/pkg/middleware"
	"github.com/diagnosis/luxsuv-checkin/services/audit/internal/audit"
)

func main() {
	cfg := config.Load()
	port := cfg.Audit.Port

	bus, err := events.NewNATSEventBus(cfg.NATS.URL, "audit")
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	recorder := audit.NewRecorder()
	for _, subject := range audit.Subjects {
		if err := bus.QueueSubscribe(subject, "audit", recorder.Handle); err != nil {
			logger.Error("Failed to subscribe", "subject", subject, "error", err)
			os.Exit(1)
		}
	}

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("audit"))
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Mount("/v1", recorder.Routes())

	logger.Info("Starting audit service", "port", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		logger.Error("Audit service error", "error", err)
		os.Exit(1)
	}
}
