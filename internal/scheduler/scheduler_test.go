package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/cffa-as/WealthTimeMachine/internal/rationale"
	"github.com/cffa-as/WealthTimeMachine/internal/risk"
)

type offsetScorer struct {
	base   domain.RiskScorer
	offset float64
}

func (s offsetScorer) Kind() string { return "offset" }
func (s offsetScorer) Score(f domain.RiskFactors) (float64, error) {
	v, err := s.base.Score(f)
	return min(1, v+s.offset), err
}

type memSource struct {
	clauses []*domain.RationaleClause
	err     error
}

func (m memSource) ListClauses(ctx context.Context) ([]*domain.RationaleClause, error) {
	return m.clauses, m.err
}

func TestNew(t *testing.T) {
	formula := risk.NewFormulaScorer()
	composer, err := rationale.NewComposer()
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}

	t.Run("RegistersConfiguredJobs", func(t *testing.T) {
		s, err := New(context.Background(), domain.SchedulerConfig{AuditCron: "@every 1h", ReloadCron: "@every 5m"}, Options{
			Candidate: formula, Reference: formula,
			Clauses: memSource{}, Loader: composer,
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if s.JobCount() != 2 {
			t.Errorf("expected 2 jobs, got %d", s.JobCount())
		}
	})

	t.Run("SkipsJobsWithoutDependencies", func(t *testing.T) {
		s, err := New(context.Background(), domain.SchedulerConfig{AuditCron: "@every 1h", ReloadCron: "@every 5m"}, Options{
			Reference: formula,
		})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if s.JobCount() != 0 {
			t.Errorf("expected 0 jobs, got %d", s.JobCount())
		}
	})

	t.Run("InvalidSpec", func(t *testing.T) {
		_, err := New(context.Background(), domain.SchedulerConfig{AuditCron: "every hour"}, Options{
			Candidate: formula, Reference: formula,
		})
		if err == nil {
			t.Error("expected error for invalid cron spec")
		}
	})
}

func TestRunAudit(t *testing.T) {
	formula := risk.NewFormulaScorer()

	s, err := New(context.Background(), domain.SchedulerConfig{}, Options{
		Candidate: offsetScorer{base: formula, offset: 0.1},
		Reference: formula,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if s.LastAudit() != nil {
		t.Fatal("expected no audit before the first run")
	}

	report, err := s.RunAudit()
	if err != nil {
		t.Fatalf("RunAudit failed: %v", err)
	}
	if report.Points == 0 {
		t.Fatal("expected audit points")
	}
	if report.MaxAbsDeviation > 0.1+1e-9 || report.MeanAbsDeviation <= 0 {
		t.Errorf("unexpected deviations: mean=%v max=%v", report.MeanAbsDeviation, report.MaxAbsDeviation)
	}
	if s.LastAudit() != report {
		t.Error("expected last audit to be recorded")
	}
}

func TestReloadClauses(t *testing.T) {
	composer, err := rationale.NewComposer()
	if err != nil {
		t.Fatalf("NewComposer failed: %v", err)
	}
	if err := composer.Load(rationale.DefaultClauses()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	before := len(composer.Clauses())

	t.Run("ReplacesClauses", func(t *testing.T) {
		src := memSource{clauses: []*domain.RationaleClause{
			{ID: "only", Group: domain.GroupAge, Condition: "true", Template: "age matters", Enabled: true},
		}}
		s, _ := New(context.Background(), domain.SchedulerConfig{}, Options{Clauses: src, Loader: composer})

		n, err := s.ReloadClauses()
		if err != nil {
			t.Fatalf("ReloadClauses failed: %v", err)
		}
		if n != 1 || len(composer.Clauses()) != 1 {
			t.Errorf("expected 1 clause loaded, got n=%d composer=%d", n, len(composer.Clauses()))
		}
	})

	t.Run("KeepsClausesOnError", func(t *testing.T) {
		if err := composer.Load(rationale.DefaultClauses()); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		for _, src := range []memSource{
			{err: errors.New("db down")},
			{},
			{clauses: []*domain.RationaleClause{{ID: "bad", Group: domain.GroupAge, Condition: "nope(", Template: "x", Enabled: true}}},
		} {
			s, _ := New(context.Background(), domain.SchedulerConfig{}, Options{Clauses: src, Loader: composer})
			if _, err := s.ReloadClauses(); err == nil {
				t.Error("expected reload error")
			}
			if len(composer.Clauses()) != before {
				t.Errorf("expected %d clauses kept, got %d", before, len(composer.Clauses()))
			}
		}
	})
}

func TestStartStop(t *testing.T) {
	s, err := New(context.Background(), domain.SchedulerConfig{}, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
