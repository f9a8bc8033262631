package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

// ViolationRepository is the long-term audit log for policy violations,
// keyed by trace id. Append-only.
type ViolationRepository struct {
	db *sql.DB
}

func NewViolationRepository(db *sql.DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

func (r *ViolationRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent service startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS policy_violations (
	id BIGSERIAL PRIMARY KEY,
	trace_id TEXT NOT NULL,
	chunk_id TEXT,
	violation TEXT NOT NULL,
	reason TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policy_violations_trace ON policy_violations(trace_id);
CREATE INDEX IF NOT EXISTS idx_policy_violations_created_at ON policy_violations(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ViolationRepository) RecordViolations(ctx context.Context, traceID string, violations []domain.PolicyViolation) error {
	if len(violations) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin violations tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, v := range violations {
		_, err := tx.ExecContext(ctx, `
INSERT INTO policy_violations (trace_id, chunk_id, violation, reason, created_at)
VALUES ($1, $2, $3, $4, $5)
`, traceID, v.ChunkID, string(v.Violation), v.Reason, now)
		if err != nil {
			return fmt.Errorf("insert violation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit violations tx: %w", err)
	}
	return nil
}

// CountByTrace reports recorded violations for one trace; used by
// operational tooling.
func (r *ViolationRepository) CountByTrace(ctx context.Context, traceID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM policy_violations WHERE trace_id = $1`, traceID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count violations: %w", err)
	}
	return count, nil
}
