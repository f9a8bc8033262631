// Package keyword adapts the keyword/BM25 content store (a Bleve index) to
// the core's SearchBackend contract.
package keyword

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

const SourceName = "keyword"

// Chunk is the indexed document shape.
type Chunk struct {
	ChunkID   string `json:"chunk_id"`
	DocID     string `json:"doc_id"`
	ChannelID string `json:"channel_id"`
	Title     string `json:"title"`
	Text      string `json:"text"`
}

type Backend struct {
	index bleve.Index
}

// Open opens the on-disk index, creating it when absent.
func Open(path string) (*Backend, error) {
	index, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open bleve index: %w", err)
	}
	return &Backend{index: index}, nil
}

// NewInMemory builds a memory-only index; used by tests.
func NewInMemory() (*Backend, error) {
	index, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("create in-memory bleve index: %w", err)
	}
	return &Backend{index: index}, nil
}

func buildMapping() mapping.IndexMapping {
	chunk := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	chunk.AddFieldMappingsAt("text", text)
	chunk.AddFieldMappingsAt("title", text)

	// Identifiers must match exactly, never through the text analyzer.
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keywordanalyzer.Name
	chunk.AddFieldMappingsAt("chunk_id", exact)
	chunk.AddFieldMappingsAt("doc_id", exact)
	chunk.AddFieldMappingsAt("channel_id", exact)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = chunk
	return m
}

func (b *Backend) Name() string { return SourceName }

func (b *Backend) Close() error {
	return b.index.Close()
}

// IndexChunks adds chunks to the index in one batch.
func (b *Backend) IndexChunks(chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, chunk := range chunks {
		if err := batch.Index(chunk.ChunkID, chunk); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ChunkID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	return nil
}

func (b *Backend) Search(ctx context.Context, queryText string, filters map[string]any, limit int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, nil
	}

	match := bleve.NewMatchQuery(queryText)
	match.SetField("text")

	var q query.Query = match
	if channel, _ := filters["channel_id"].(string); channel != "" {
		term := bleve.NewTermQuery(channel)
		term.SetField("channel_id")
		q = bleve.NewConjunctionQuery(match, term)
	}

	req := bleve.NewSearchRequestOptions(q, limit, 0, false)
	req.Fields = []string{"doc_id", "channel_id", "title", "text"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(res.Hits))
	for i, hit := range res.Hits {
		results = append(results, domain.SearchResult{
			ChunkID:   hit.ID,
			DocID:     fieldString(hit.Fields, "doc_id"),
			ChannelID: fieldString(hit.Fields, "channel_id"),
			Title:     fieldString(hit.Fields, "title"),
			Text:      fieldString(hit.Fields, "text"),
			Score:     hit.Score,
			Rank:      i + 1,
		})
	}
	return results, nil
}

func fieldString(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return s
}
