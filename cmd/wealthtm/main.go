// WealthTimeMachine - goal-based savings plans across three risk tiers.
// Copyright (c) 2025 cffa-as
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/api"
	"github.com/cffa-as/WealthTimeMachine/internal/bus"
	"github.com/cffa-as/WealthTimeMachine/internal/cache"
	"github.com/cffa-as/WealthTimeMachine/internal/config"
	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/cffa-as/WealthTimeMachine/internal/planner"
	"github.com/cffa-as/WealthTimeMachine/internal/rationale"
	"github.com/cffa-as/WealthTimeMachine/internal/repository"
	"github.com/cffa-as/WealthTimeMachine/internal/risk"
	"github.com/cffa-as/WealthTimeMachine/internal/scheduler"
	"github.com/cffa-as/WealthTimeMachine/internal/tiers"
	"github.com/cffa-as/WealthTimeMachine/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults to $WTM_CONFIG)")
	flag.Parse()

	// Bootstrap logger until the configured one is known
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Logging))

	slog.Info("starting wealthtm",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"trials", cfg.Engine.MonteCarloTrials,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("wealthtm exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("wealthtm shutdown complete")
}

func run(ctx context.Context, cfg *domain.Config) error {
	// Initialize Repository
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	storedTiers, storedClauses, err := repository.Seed(ctx, repo, tiers.Defaults(), rationale.DefaultClauses())
	if err != nil {
		return fmt.Errorf("seed repository: %w", err)
	}

	table, err := loadTierTable(cfg.Engine.TiersFile, storedTiers)
	if err != nil {
		return err
	}

	// Rationale composer, hot-reloadable from the clause table
	composer, err := rationale.NewComposer()
	if err != nil {
		return fmt.Errorf("initialize composer: %w", err)
	}
	if err := composer.Load(storedClauses); err != nil {
		return fmt.Errorf("load rationale clauses: %w", err)
	}
	slog.Info("rationale composer initialized", "clauses_count", len(storedClauses))

	// Risk scorers: the learned ensemble is primary when it trains, the
	// formula is always the fallback and the audit reference.
	formula := risk.NewFormulaScorer()
	var primary domain.RiskScorer
	if cfg.Engine.LearnedScorer.Enabled {
		start := time.Now()
		learned, err := risk.TrainLearnedScorer(ctx, cfg.Engine.LearnedScorer)
		if err != nil {
			slog.Warn("learned scorer unavailable, using formula scorer", "error", err)
		} else {
			primary = learned
			slog.Info("learned scorer trained",
				"trees", cfg.Engine.LearnedScorer.Trees,
				"samples", cfg.Engine.LearnedScorer.Samples,
				"duration", time.Since(start),
			)
		}
	}
	estimator := risk.NewEstimator(risk.NewTargetEstimator(cfg.Goals), primary, formula)
	scorerKind := formula.Kind()
	if primary != nil {
		scorerKind = primary.Kind()
	}

	engine := planner.NewEngine(table, estimator, composer, cfg.Engine.MonteCarloTrials)

	// Initialize Cache
	planCache, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("initialize cache: %w", err)
	}
	defer planCache.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize EventBus
	eventBus, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("initialize event bus: %w", err)
	}
	defer eventBus.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Async plan worker
	planWorker := worker.NewWorker(eventBus, planCache, engine, worker.Config{
		PlanTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		PlanTTL:     cfg.Cache.PlanTTL,
	})
	if err := planWorker.Start(); err != nil {
		return fmt.Errorf("start plan worker: %w", err)
	}

	// Background jobs
	var jobs *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		opts := scheduler.Options{Clauses: repo, Loader: composer}
		if primary != nil {
			opts.Candidate, opts.Reference = primary, formula
		}
		jobs, err = scheduler.New(ctx, cfg.Scheduler, opts)
		if err != nil {
			return fmt.Errorf("initialize scheduler: %w", err)
		}
		jobs.Start()
		slog.Info("scheduler started", "jobs", jobs.JobCount())
	}

	srv := api.NewServer(cfg.Server, cfg.RateLimit, api.Options{
		Planner:        engine,
		Composer:       composer,
		Repo:           repo,
		Cache:          planCache,
		Bus:            eventBus,
		Async:          true,
		PlanTTL:        cfg.Cache.PlanTTL,
		RequestTimeout: time.Duration(cfg.Server.RequestTimeout) * time.Second,
		ScorerKind:     scorerKind,
		Version:        Version,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("wealthtm is ready",
		"addr", srv.Addr(),
		"scorer", scorerKind,
	)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	case runErr = <-errCh:
		slog.Error("server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	srv.Handler().SetReady(false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	if jobs != nil {
		jobs.Stop(shutdownCtx)
	}
	if err := planWorker.Stop(); err != nil {
		slog.Error("failed to stop plan worker", "error", err)
	}
	return runErr
}

// loadTierTable prefers an explicit tiers file, then the stored rows.
func loadTierTable(path string, stored []*domain.RiskTierConfig) (*tiers.Table, error) {
	if path != "" {
		table, err := tiers.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load tiers file: %w", err)
		}
		slog.Info("risk tiers loaded from file", "path", path)
		return table, nil
	}

	configs := make([]domain.RiskTierConfig, 0, len(stored))
	for _, c := range stored {
		configs = append(configs, *c)
	}
	table, err := tiers.New(configs)
	if err != nil {
		return nil, fmt.Errorf("load stored risk tiers: %w", err)
	}
	slog.Info("risk tiers loaded from repository", "count", len(configs))
	return table, nil
}

func newLogger(cfg domain.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
