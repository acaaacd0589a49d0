// cmd/dbtools/migrate/main.go
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/slotwise/internal/config"
)

func main() {
	var (
		configPath     = flag.String("config", "", "Path to config.yaml; supplies -db when set")
		dbPath         = flag.String("db", "", "Path to SQLite database")
		migrationsPath = flag.String("migrations", "internal/db/migrations", "Path to migrations directory")
		command        = flag.String("command", "", "Command to run (up, down, steps, version, force)")
		steps          = flag.Int("n", 1, "Number of steps for the steps command, or the version for force")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *configPath != "" && *dbPath == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		*dbPath = cfg.Database.Filename
	}
	if *dbPath == "" || *command == "" {
		flag.Usage()
		os.Exit(1)
	}

	absMigrations, err := filepath.Abs(*migrationsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid migrations path")
	}
	if _, err := os.Stat(absMigrations); os.IsNotExist(err) {
		log.Fatal().Str("path", absMigrations).Msg("Migrations directory does not exist")
	}
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatal().Err(err).Msg("Failed to create database directory")
	}

	m, err := migrate.New(
		fmt.Sprintf("file://%s", filepath.ToSlash(absMigrations)),
		fmt.Sprintf("sqlite3://%s?_fk=1", filepath.ToSlash(*dbPath)),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration init failed")
	}
	defer m.Close()

	logger := log.With().Str("command", *command).Str("db", *dbPath).Logger()
	switch *command {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		err = m.Steps(*steps)
	case "force":
		err = m.Force(*steps)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			logger.Fatal().Err(verr).Msg("Get version failed")
		}
		fmt.Printf("Version: %d, Dirty: %v\n", version, dirty)
		return
	default:
		logger.Fatal().Msg("Unknown command")
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal().Err(err).Msg("Migration failed")
	}
	logger.Info().Msg("Migration finished")
}
