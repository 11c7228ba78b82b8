// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/cffa-as/WealthTimeMachine/internal/risk"
	"github.com/robfig/cron/v3"
)

// ClauseSource lists the stored rationale clauses.
type ClauseSource interface {
	ListClauses(ctx context.Context) ([]*domain.RationaleClause, error)
}

// ClauseLoader swaps in a new clause set.
type ClauseLoader interface {
	Load(clauses []*domain.RationaleClause) error
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context

	candidate domain.RiskScorer
	reference domain.RiskScorer

	source ClauseSource
	loader ClauseLoader

	lastAudit atomic.Pointer[risk.AuditReport]
}

// Options wires the jobs. A job whose dependencies are nil is not registered.
type Options struct {
	// Candidate is audited against Reference.
	Candidate domain.RiskScorer
	Reference domain.RiskScorer

	Clauses ClauseSource
	Loader  ClauseLoader
}

// New creates a scheduler and registers its jobs.
func New(ctx context.Context, cfg domain.SchedulerConfig, opts Options) (*Scheduler, error) {
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn))

	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:       ctx,
		candidate: opts.Candidate,
		reference: opts.Reference,
		source:    opts.Clauses,
		loader:    opts.Loader,
	}

	if s.candidate != nil && s.reference != nil && cfg.AuditCron != "" {
		if _, err := s.cron.AddFunc(cfg.AuditCron, s.auditTask); err != nil {
			return nil, fmt.Errorf("register audit job: %w", err)
		}
	}
	if s.source != nil && s.loader != nil && cfg.ReloadCron != "" {
		if _, err := s.cron.AddFunc(cfg.ReloadCron, s.reloadTask); err != nil {
			return nil, fmt.Errorf("register reload job: %w", err)
		}
	}
	return s, nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs up to the context deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out")
	}
	slog.Info("scheduler stopped")
}

// JobCount returns the number of registered jobs.
func (s *Scheduler) JobCount() int {
	return len(s.cron.Entries())
}

// RunAudit compares the candidate scorer against the reference now.
func (s *Scheduler) RunAudit() (*risk.AuditReport, error) {
	if s.candidate == nil || s.reference == nil {
		return nil, fmt.Errorf("audit requires two scorers")
	}
	report, err := risk.Audit(s.candidate, s.reference)
	if err != nil {
		return nil, err
	}
	s.lastAudit.Store(report)
	return report, nil
}

// LastAudit returns the most recent audit, or nil.
func (s *Scheduler) LastAudit() *risk.AuditReport {
	return s.lastAudit.Load()
}

// ReloadClauses replaces the composer's clauses with the stored ones.
// On error the composer keeps its current clauses.
func (s *Scheduler) ReloadClauses() (int, error) {
	if s.source == nil || s.loader == nil {
		return 0, fmt.Errorf("reload requires a clause source and loader")
	}
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	clauses, err := s.source.ListClauses(ctx)
	if err != nil {
		return 0, fmt.Errorf("list clauses: %w", err)
	}
	if len(clauses) == 0 {
		return 0, fmt.Errorf("no enabled clauses stored")
	}
	if err := s.loader.Load(clauses); err != nil {
		return 0, fmt.Errorf("load clauses: %w", err)
	}
	return len(clauses), nil
}

func (s *Scheduler) auditTask() {
	start := time.Now()
	report, err := s.RunAudit()
	if err != nil {
		slog.Error("scorer audit failed", "error", err)
		return
	}

	level := slog.LevelInfo
	if report.TierDisagreements > report.Points/10 {
		level = slog.LevelWarn
	}
	slog.Log(s.ctx, level, "scorer audit",
		"candidate", s.candidate.Kind(),
		"reference", s.reference.Kind(),
		"points", report.Points,
		"mean_abs_deviation", report.MeanAbsDeviation,
		"max_abs_deviation", report.MaxAbsDeviation,
		"tier_disagreements", report.TierDisagreements,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Scheduler) reloadTask() {
	n, err := s.ReloadClauses()
	if err != nil {
		slog.Error("clause reload failed", "error", err)
		return
	}
	slog.Debug("rationale clauses reloaded", "count", n)
}
