// Package graph adapts the semantic/graph content store (Neo4j) to the
// core's SearchBackend contract.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
	"github.com/kirillkom/retrieval-core/internal/infrastructure/resilience"
)

const SourceName = "semantic"

const searchCypher = `
CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
WHERE ($channel = '' OR node.channel_id = $channel)
RETURN node.chunk_id AS chunk_id,
       node.doc_id AS doc_id,
       node.channel_id AS channel_id,
       node.title AS title,
       node.text AS text,
       score
ORDER BY score DESC
LIMIT $limit`

type Backend struct {
	driver   neo4j.DriverWithContext
	database string
	index    string
	executor *resilience.Executor
}

func New(ctx context.Context, uri, user, password, database, index string, executor *resilience.Executor) (*Backend, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Backend{
		driver:   driver,
		database: database,
		index:    index,
		executor: executor,
	}, nil
}

func (b *Backend) Name() string { return SourceName }

func (b *Backend) Close(ctx context.Context) error {
	return b.driver.Close(ctx)
}

func (b *Backend) Search(ctx context.Context, query string, filters map[string]any, limit int) ([]domain.SearchResult, error) {
	var results []domain.SearchResult

	call := func(ctx context.Context) error {
		var err error
		results, err = b.search(ctx, query, filters, limit)
		return err
	}

	if b.executor != nil {
		if err := b.executor.Execute(ctx, "neo4j.search", call, resilience.ClassifyBackendError); err != nil {
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
	session := b.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: b.database,
	})
	defer func() {
		_ = session.Close(ctx)
	}()

	channel, _ := filters["channel_id"].(string)
	params := map[string]any{
		"index":   b.index,
		"query":   query,
		"channel": channel,
		"limit":   limit,
	}

	results, err := neo4j.ExecuteRead(ctx, session, func(tx neo4j.ManagedTransaction) ([]domain.SearchResult, error) {
		res, err := tx.Run(ctx, searchCypher, params)
		if err != nil {
			return nil, fmt.Errorf("run fulltext query: %w", err)
		}

		var out []domain.SearchResult
		for res.Next(ctx) {
			record := res.Record()
			result := domain.SearchResult{
				ChunkID:   stringValue(record, "chunk_id"),
				DocID:     stringValue(record, "doc_id"),
				ChannelID: stringValue(record, "channel_id"),
				Title:     stringValue(record, "title"),
				Text:      stringValue(record, "text"),
				Rank:      len(out) + 1,
			}
			if score, ok := record.Get("score"); ok {
				if f, ok := score.(float64); ok {
					result.Score = f
				}
			}
			out = append(out, result)
		}
		if err := res.Err(); err != nil {
			return nil, fmt.Errorf("consume fulltext results: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j search: %w", err)
	}
	return results, nil
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
