package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/ogurasousui/site-roster/internal/platform/config"
	"github.com/ogurasousui/site-roster/internal/platform/logging"
)

func main() {
	var (
		configPath    = flag.String("config", "", "path to config file (defaults to CONFIG_PATH env or assets/local.yaml)")
		migrationsDir = flag.String("dir", "assets/migrations", "directory containing migration files")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [up|down|drop|version|steps N|force V]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	action := "up"
	if flag.NArg() > 0 {
		action = flag.Arg(0)
	}

	cfg, err := config.Load(effectiveConfigPath(*configPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.New(cfg.Log, os.Stderr)

	if cfg.Database.Host == "" {
		logger.Error("database section is required for migrations")
		os.Exit(1)
	}

	if err := runMigration(logger, action, flag.Arg(1), *migrationsDir, cfg.Database.DSN()); err != nil {
		logger.Error("migration failed", "action", action, "error", err)
		os.Exit(1)
	}

	logger.Info("migration completed", "action", action)
}

func effectiveConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); env != "" {
		return env
	}
	return "assets/local.yaml"
}

func runMigration(logger *slog.Logger, action, arg, dir, dsn string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve path for %s: %w", dir, err)
	}
	absDir = filepath.ToSlash(absDir)

	m, err := migrate.New(fmt.Sprintf("file://%s", absDir), dsn)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	switch action {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		return ignoreNoChange(m.Down())
	case "drop":
		return m.Drop()
	case "steps":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("steps requires an integer argument: %w", err)
		}
		return ignoreNoChange(m.Steps(n))
	case "force":
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("force requires a version argument: %w", err)
		}
		return m.Force(v)
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migration applied")
			return nil
		}
		if err != nil {
			return err
		}
		logger.Info("current migration", "version", version, "dirty", dirty)
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
