// Command preflightd runs the preflight worker daemon: it claims queued
// jobs from the shared job table, runs the check pipeline on them, and
// sweeps expired jobs on schedule.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/printforge/preflight"
	"github.com/printforge/preflight/pkg/config"
	"github.com/printforge/preflight/pkg/pipeline"
)

func main() {
	cfg := config.Load()

	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(cfg.Database.DSN)
	if err != nil {
		log.Error("could not open database", "dsn_kind", dsnKind(cfg.Database.DSN), "error", err)
		os.Exit(1)
	}

	store := preflight.NewGormStore(db)
	if err := store.Migrate(ctx); err != nil {
		log.Error("migration failed", "error", err)
		os.Exit(1)
	}
	log.Info("database ready", "dsn_kind", dsnKind(cfg.Database.DSN))

	files := preflight.NewLocalStore(cfg.Files.TempRoot)

	runner := preflight.NewExecRunner(cfg.Jobs.ToolTimeout, log)
	avail, versions := preflight.NewDetector(runner, log).Detect(ctx)
	for tool, ok := range avail {
		if ok {
			log.Info("tool available", "tool", tool, "version", versions[tool])
		} else {
			log.Warn("tool missing, related checks will degrade", "tool", tool)
		}
	}

	pipeCfg := pipeline.DefaultConfig()
	pipeCfg.ProofDPI = cfg.Jobs.ProofDPI
	orch := preflight.NewOrchestrator(files, files, store, runner, avail, versions,
		files.Paths(), pipeCfg, log)
	proc := preflight.NewProcessor(store, orch, files, log)

	sched, err := sweepSchedule(cfg)
	if err != nil {
		log.Error("invalid sweep schedule", "cron", cfg.Sweep.CronExpr, "error", err)
		os.Exit(1)
	}

	rt := preflight.NewRuntime(
		preflight.NewPoller(proc, cfg.Jobs.PollInterval, cfg.Jobs.Concurrency, log),
		preflight.NewSweeper(store, files, sched, log),
		log,
	)

	log.Info("preflightd started",
		"temp_root", cfg.Files.TempRoot,
		"job_ttl", cfg.Jobs.TTL,
		"concurrency", cfg.Jobs.Concurrency)

	if err := rt.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("runtime exited", "error", err)
		os.Exit(1)
	}
	log.Info("preflightd stopped")
}

// openDatabase picks the driver by DSN shape: postgres URLs go to the
// postgres driver, anything else is treated as a SQLite file path.
func openDatabase(dsn string) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)}
	if isPostgresDSN(dsn) {
		return gorm.Open(postgres.Open(dsn), gormCfg)
	}
	return gorm.Open(sqlite.Open(dsn), gormCfg)
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

func dsnKind(dsn string) string {
	if isPostgresDSN(dsn) {
		return "postgres"
	}
	return "sqlite"
}

func sweepSchedule(cfg *config.Config) (preflight.Schedule, error) {
	if cfg.Sweep.CronExpr != "" {
		return preflight.Cron(cfg.Sweep.CronExpr)
	}
	if cfg.Sweep.Interval > 0 {
		return preflight.Every(cfg.Sweep.Interval), nil
	}
	return nil, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
