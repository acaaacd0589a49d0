// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/slotwise/internal/config"
	"github.com/codr1/slotwise/internal/db"
	"github.com/codr1/slotwise/internal/scheduler"
)

func setupLogger(cfg *config.Config) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Features.EnableDebug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", *configPath).Msg("Failed to load configuration")
	}
	setupLogger(cfg)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	app, err := newApp(cfg, database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize application")
	}

	if err := scheduler.Init(cfg.Location()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize scheduler")
	}
	svc, err := scheduler.ServiceInstance()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scheduler")
	}
	if err := scheduler.RegisterMaintenanceJobs(svc, app.maintenance, cronsFromConfig(cfg)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register maintenance jobs")
	}

	server := newServer(cfg, app)

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Str("timezone", cfg.App.Timezone).Msg("Starting server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		svc.Start()
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				app.limiter.Sweep()
			}
		}
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.App.ShutdownTimeout)*time.Second)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := svc.Stop(); err != nil {
			log.Error().Err(err).Msg("Scheduler shutdown error")
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}

func cronsFromConfig(cfg *config.Config) scheduler.Crons {
	return scheduler.Crons{
		SweepExpiredTokens:    cfg.Scheduler.SweepExpiredTokens,
		AutoCompleteBookings:  cfg.Scheduler.AutoCompleteBookings,
		AutoCancelBookings:    cfg.Scheduler.AutoCancelBookings,
		DispatchNotifications: cfg.Scheduler.DispatchNotifications,
		SendDailyReminders:    cfg.Scheduler.SendDailyReminders,
		PurgeNotifications:    cfg.Scheduler.PurgeNotifications,
	}
}
