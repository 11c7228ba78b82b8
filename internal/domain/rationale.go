package domain

// RationaleClause is one templated sentence fragment of a recommendation reason.
// Clauses sharing a Group describe the same factor; at most one per group is used.
type RationaleClause struct {
	ID       string `json:"id" yaml:"id"`
	Group    string `json:"group" yaml:"group"`
	Priority int    `json:"priority" yaml:"priority"`

	// Condition is a CEL boolean expression over the display factors.
	Condition string `json:"condition" yaml:"condition"`

	// Template is a text/template rendered with the same variables.
	Template string `json:"template" yaml:"template"`

	Enabled bool `json:"enabled" yaml:"enabled"`
}

// Rationale groups, in the order they are considered.
const (
	GroupAssetCoverage   = "asset_coverage"
	GroupTimePressure    = "time_pressure"
	GroupAge             = "age"
	GroupIncomeStability = "income_stability"
)

// MaxRationaleClauses is the number of clauses appended to the opening sentence.
const MaxRationaleClauses = 3
