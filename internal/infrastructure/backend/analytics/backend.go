// Package analytics adapts the columnar analytics store (Postgres) to the
// core's SearchBackend contract.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/infrastructure/resilience"
)

const SourceName = "analytics"

type Backend struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewBackend(db *sql.DB, executor *resilience.Executor) *Backend {
	return &Backend{db: db, executor: executor}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (b *Backend) EnsureSchema(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS analytics_chunks (
	chunk_id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL,
	channel_id TEXT,
	title TEXT,
	text TEXT NOT NULL,
	published_at TIMESTAMPTZ,
	tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', coalesce(title, '') || ' ' || text)) STORED
);

CREATE INDEX IF NOT EXISTS idx_analytics_chunks_tsv ON analytics_chunks USING GIN (tsv);
CREATE INDEX IF NOT EXISTS idx_analytics_chunks_channel ON analytics_chunks(channel_id);
`
	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	return nil
}

func (b *Backend) Name() string { return SourceName }

func (b *Backend) Search(ctx context.Context, query string, filters map[string]any, limit int) ([]domain.SearchResult, error) {
	var results []domain.SearchResult

	call := func(ctx context.Context) error {
		var err error
		results, err = b.search(ctx, query, filters, limit)
		return err
	}

	if b.executor != nil {
		if err := b.executor.Execute(ctx, "analytics.search", call, resilience.ClassifyBackendError); err != nil {
			return nil, err
		}
		return results, nil
	}
	if err := call(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

func (b *Backend) search(ctx context.Context, query string, filters map[string]any, limit int) ([]domain.SearchResult, error) {
	channel, _ := filters["channel_id"].(string)

	rows, err := b.db.QueryContext(ctx, `
SELECT chunk_id, doc_id, COALESCE(channel_id, ''), COALESCE(title, ''), text,
       ts_rank(tsv, plainto_tsquery('english', $1)) AS score
FROM analytics_chunks
WHERE tsv @@ plainto_tsquery('english', $1)
  AND ($2 = '' OR channel_id = $2)
ORDER BY score DESC, chunk_id
LIMIT $3
`, query, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("query analytics chunks: %w", err)
	}
	defer rows.Close()

	var results []domain.SearchResult
	for rows.Next() {
		var r domain.SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocID, &r.ChannelID, &r.Title, &r.Text, &r.Score); err != nil {
			return nil, fmt.Errorf("scan analytics chunk: %w", err)
		}
		r.Rank = len(results) + 1
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate analytics chunks: %w", err)
	}
	return results, nil
}
