// Package rationale composes the human-readable reason for a recommendation
// from data-driven clauses with CEL conditions.
package rationale

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"text/template"
	"unicode"
	"unicode/utf8"

	"github.com/cffa-as/WealthTimeMachine/internal/domain"
	"github.com/google/cel-go/cel"
)

// groupOrder is the order factor groups are considered in.
var groupOrder = []string{
	domain.GroupAssetCoverage,
	domain.GroupTimePressure,
	domain.GroupAge,
	domain.GroupIncomeStability,
}

// Composer selects and renders rationale clauses.
type Composer struct {
	mu      sync.RWMutex
	env     *cel.Env
	clauses []*compiledClause
}

type compiledClause struct {
	config   *domain.RationaleClause
	program  cel.Program
	template *template.Template
}

// NewComposer creates a composer with no clauses loaded.
func NewComposer() (*Composer, error) {
	env, err := cel.NewEnv(
		cel.Variable("asset_coverage_pct", cel.DoubleType),
		cel.Variable("time_pressure_pct", cel.DoubleType),
		cel.Variable("age_factor", cel.DoubleType),
		cel.Variable("income_stability", cel.DoubleType),
		cel.Variable("risk_level", cel.StringType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Composer{env: env}, nil
}

// Validate compiles a clause without loading it.
func (c *Composer) Validate(cfg *domain.RationaleClause) error {
	if cfg == nil {
		return fmt.Errorf("clause config is required")
	}
	_, err := c.compile(cfg)
	return err
}

// Load replaces the loaded clauses. Disabled clauses are skipped.
// On error the previously loaded clauses stay in place.
func (c *Composer) Load(configs []*domain.RationaleClause) error {
	compiled := make([]*compiledClause, 0, len(configs))
	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		cc, err := c.compile(cfg)
		if err != nil {
			return err
		}
		compiled = append(compiled, cc)
	}

	slices.SortStableFunc(compiled, func(a, b *compiledClause) int {
		if r := cmp.Compare(groupRank(a.config.Group), groupRank(b.config.Group)); r != 0 {
			return r
		}
		if r := cmp.Compare(a.config.Group, b.config.Group); r != 0 {
			return r
		}
		return cmp.Compare(a.config.Priority, b.config.Priority)
	})

	c.mu.Lock()
	c.clauses = compiled
	c.mu.Unlock()
	return nil
}

// Clauses returns the loaded clause configurations in evaluation order.
func (c *Composer) Clauses() []*domain.RationaleClause {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*domain.RationaleClause, len(c.clauses))
	for i, cc := range c.clauses {
		out[i] = cc.config
	}
	return out
}

// Compose builds the reason for tier. The first matching clause of each group
// is taken, and at most domain.MaxRationaleClauses are appended to the opening
// sentence. Conditions see the factors as displayed: rounded to two decimals,
// with coverage capped at 1.
func (c *Composer) Compose(tier domain.RiskTier, a domain.RiskAssessment) string {
	vars := map[string]any{
		"asset_coverage_pct": domain.Round(a.DisplayCoverage(), 2) * 100,
		"time_pressure_pct":  domain.Round(a.Factors.TimePressure, 2) * 100,
		"age_factor":         domain.Round(a.Factors.AgeFactor, 2),
		"income_stability":   domain.Round(a.Factors.IncomeStability, 2),
		"risk_level":         string(tier),
	}

	c.mu.RLock()
	clauses := c.clauses
	c.mu.RUnlock()

	var parts []string
	usedGroup := ""
	for _, cc := range clauses {
		if len(parts) == domain.MaxRationaleClauses {
			break
		}
		if cc.config.Group == usedGroup {
			continue
		}

		ok, err := cc.matches(vars)
		if err != nil {
			slog.Warn("rationale clause evaluation failed", "clause", cc.config.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		var sb strings.Builder
		if err := cc.template.Execute(&sb, vars); err != nil {
			slog.Warn("rationale clause render failed", "clause", cc.config.ID, "error", err)
			continue
		}
		parts = append(parts, sb.String())
		usedGroup = cc.config.Group
	}

	reason := fmt.Sprintf("Based on your financial profile, we recommend the %s plan.", tier.DisplayName())
	if len(parts) > 0 {
		reason += " " + capitalize(strings.Join(parts, "; ")) + "."
	}
	return reason
}

func (cc *compiledClause) matches(vars map[string]any) (bool, error) {
	out, _, err := cc.program.Eval(vars)
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition returned %T", out.Value())
	}
	return b, nil
}

func (c *Composer) compile(cfg *domain.RationaleClause) (*compiledClause, error) {
	if cfg.ID == "" || cfg.Group == "" {
		return nil, fmt.Errorf("clause id and group are required")
	}

	ast, issues := c.env.Compile(cfg.Condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile clause %s: %w", cfg.ID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("clause %s: condition must return bool, got %s", cfg.ID, ast.OutputType())
	}

	program, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for clause %s: %w", cfg.ID, err)
	}

	tmpl, err := template.New(cfg.ID).Option("missingkey=error").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template for clause %s: %w", cfg.ID, err)
	}

	return &compiledClause{config: cfg, program: program, template: tmpl}, nil
}

func groupRank(g string) int {
	if i := slices.Index(groupOrder, g); i >= 0 {
		return i
	}
	return len(groupOrder)
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
