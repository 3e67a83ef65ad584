package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/afero"

	"github.com/liamcoop/tablerules/internal/config"
	"github.com/liamcoop/tablerules/internal/logger"
)

// migrator is the part of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
}

// runCommand applies command to m and returns a message describing the result.
func runCommand(m migrator, command string, args []string) (string, error) {
	switch command {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			return "no migrations to run (database is up to date)", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to run migrations: %w", err)
		}
		return "migrations completed", nil

	case "down":
		err := m.Down()
		if errors.Is(err, migrate.ErrNoChange) {
			return "nothing to roll back", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to rollback migrations: %w", err)
		}
		return "rollback completed", nil

	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return "no migration applied", nil
		}
		if err != nil {
			return "", fmt.Errorf("failed to get version: %w", err)
		}
		return fmt.Sprintf("current version: %d (dirty: %v)", version, dirty), nil

	case "force":
		if len(args) < 1 {
			return "", errors.New("force requires a version number: -command force <version>")
		}
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return "", fmt.Errorf("invalid version number %q: %w", args[0], err)
		}
		if err := m.Force(version); err != nil {
			return "", fmt.Errorf("failed to force version: %w", err)
		}
		return fmt.Sprintf("forced version to %d", version), nil

	default:
		return "", fmt.Errorf("unknown command: %s (use: up, down, version, force)", command)
	}
}

func main() {
	var databaseURL string
	var migrationsPath string
	var command string

	flag.StringVar(&databaseURL, "database", "", "Database URL (default from DATABASE_URL)")
	flag.StringVar(&migrationsPath, "path", "migrations", "Path to migrations directory")
	flag.StringVar(&command, "command", "up", "Migration command: up, down, version, force")
	flag.Parse()

	cfg, err := config.Load(afero.NewOsFs(), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.LoggerOptions()); err != nil {
		logger.Warn("logger setup incomplete", "error", err)
	}

	if databaseURL == "" {
		databaseURL = cfg.Server.DatabaseURL
	}
	if databaseURL == "" {
		logger.Error("database URL is required, use -database or DATABASE_URL")
		os.Exit(1)
	}

	logger.Info("connecting to database", "migrations", migrationsPath, "command", command)

	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		logger.Error("failed to create migration instance", "error", err)
		os.Exit(1)
	}
	defer m.Close()

	msg, err := runCommand(m, command, flag.Args())
	if err != nil {
		logger.Error("migration failed", "command", command, "error", err)
		os.Exit(1)
	}
	logger.Info(msg, "command", command)
}
