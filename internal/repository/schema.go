package repository

// Schema definitions for engine configuration.
// Compatible with both SQLite and PostgreSQL.

const schemaRiskTiers = `
CREATE TABLE IF NOT EXISTS risk_tiers (
    tier TEXT PRIMARY KEY,
    expected_return REAL NOT NULL,
    volatility REAL NOT NULL,
    max_drawdown REAL NOT NULL,
    alloc_stocks REAL NOT NULL,
    alloc_bonds REAL NOT NULL,
    alloc_cash REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaRationaleClauses = `
CREATE TABLE IF NOT EXISTS rationale_clauses (
    id TEXT PRIMARY KEY,
    clause_group TEXT NOT NULL,
    priority INTEGER NOT NULL DEFAULT 0,
    condition TEXT NOT NULL,
    template TEXT NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rationale_clauses_group ON rationale_clauses(clause_group, priority);
`

// AllSchemas returns all schema definitions in order.
func AllSchemas() []string {
	return []string{
		schemaRiskTiers,
		schemaRationaleClauses,
	}
}
