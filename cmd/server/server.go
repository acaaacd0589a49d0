// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/api"
	"github.com/codr1/slotwise/internal/api/bookings"
	"github.com/codr1/slotwise/internal/api/cyclic"
	"github.com/codr1/slotwise/internal/api/resources"
	"github.com/codr1/slotwise/internal/api/verify"
	"github.com/codr1/slotwise/internal/availability"
	"github.com/codr1/slotwise/internal/booking"
	"github.com/codr1/slotwise/internal/clock"
	"github.com/codr1/slotwise/internal/config"
	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/email"
	"github.com/codr1/slotwise/internal/metrics"
	"github.com/codr1/slotwise/internal/notify"
	"github.com/codr1/slotwise/internal/ratelimit"
	"github.com/codr1/slotwise/internal/scheduler"
	"github.com/codr1/slotwise/internal/sms"
	"github.com/codr1/slotwise/internal/verification"
)

// app holds the services shared by the HTTP server and the scheduler.
type app struct {
	bookings     *booking.Service
	orchestrator *booking.Orchestrator
	engine       *availability.Engine
	verification *verification.Service
	maintenance  *scheduler.Maintenance
	metrics      *metrics.Metrics
	limiter      *ratelimit.Limiter
}

func newApp(cfg *config.Config, database *db.DB) (*app, error) {
	clk := clock.System{Location: cfg.Location()}

	var emailSender email.EmailSender = email.LogSender{}
	if cfg.Email.Enabled() {
		client, err := email.NewSESClient(cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey, cfg.Email.Region, cfg.Email.Sender)
		if err != nil {
			return nil, fmt.Errorf("create ses client: %w", err)
		}
		emailSender = client
	} else {
		log.Warn().Msg("SES not configured, emails will only be logged")
	}

	var smsSender sms.Sender = sms.LogSender{}
	if cfg.SMS.Enabled() {
		twilio, err := sms.NewTwilioSender(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber, cfg.SMS.DefaultRegion)
		if err != nil {
			return nil, fmt.Errorf("create twilio sender: %w", err)
		}
		smsSender = twilio
	}

	notifier := notify.New(emailSender, smsSender, notify.Config{
		RatePerSecond: cfg.Notifications.RatePerSecond,
		Burst:         cfg.Notifications.Burst,
		SMSFallback:   cfg.Notifications.SMSFallback,
	})

	var m *metrics.Metrics
	if cfg.Features.EnableMetrics {
		m = metrics.New("slotwise")
	}

	limiterCfg := ratelimit.DefaultConfig()
	limiterCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
	limiterCfg.Burst = cfg.RateLimit.Burst
	limiterCfg.TrustProxy = cfg.RateLimit.TrustProxy

	bookingService := booking.NewService(database, clk)
	return &app{
		bookings:     bookingService,
		orchestrator: booking.NewOrchestrator(bookingService),
		engine:       availability.NewEngine(database.Queries, clk),
		verification: verification.NewService(database, notifier, clk, cfg.App.BaseURL),
		maintenance:  scheduler.NewMaintenance(database, notifier, clk, m),
		metrics:      m,
		limiter:      ratelimit.New(limiterCfg),
	}, nil
}

func newServer(cfg *config.Config, a *app) *http.Server {
	router := http.NewServeMux()

	// Metrics must wrap the mux directly to see the matched route pattern.
	handler := api.ChainMiddleware(
		router,
		api.WithMetrics(a.metrics),
		api.WithRateLimit(a.limiter),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	bookings.InitHandlers(a.bookings)
	cyclic.InitHandlers(a.orchestrator)
	resources.InitHandlers(a.engine, cfg.Location())
	verify.InitHandlers(a.verification)
	registerRoutes(router, a)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux, a *app) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}

	// Booking routes
	mux.HandleFunc("POST /api/v1/bookings", bookings.HandleBookingCreate)
	mux.HandleFunc("GET /api/v1/bookings", bookings.HandleBookingsList)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bookings.HandleBookingGet)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/status", bookings.HandleBookingStatusUpdate)
	mux.HandleFunc("PATCH /api/v1/bookings/{id}/notes", bookings.HandleBookingNotesUpdate)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", bookings.HandleBookingDelete)

	// Cyclic booking routes
	mux.HandleFunc("POST /api/v1/cyclic-bookings", cyclic.HandleCyclicCreate)
	mux.HandleFunc("GET /api/v1/cyclic-bookings", cyclic.HandleCyclicList)
	mux.HandleFunc("GET /api/v1/cyclic-bookings/{id}", cyclic.HandleCyclicGet)
	mux.HandleFunc("PATCH /api/v1/cyclic-bookings/{id}/status", cyclic.HandleCyclicStatusUpdate)
	mux.HandleFunc("PATCH /api/v1/cyclic-bookings/{id}/notes", cyclic.HandleCyclicNotesUpdate)
	mux.HandleFunc("DELETE /api/v1/cyclic-bookings/{id}", cyclic.HandleCyclicDelete)

	// Availability routes
	mux.HandleFunc("GET /api/v1/resources/{id}/slots", resources.HandleAvailableSlots)
	mux.HandleFunc("GET /api/v1/resources/{id}/dates", resources.HandleAvailableDates)

	// Verification routes
	mux.HandleFunc("POST /api/v1/users/{id}/verification", verify.HandleIssue)
	mux.HandleFunc("GET /api/v1/verify", verify.HandleConsume)
}
