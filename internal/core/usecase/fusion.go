package usecase

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

const defaultRRFK = 60

// FusionEngine merges ranked lists from all responding backends into one
// deduplicated ranking via Reciprocal Rank Fusion. This is the only place
// where cross-source identity is resolved; chunk id equality is exact-match.
type FusionEngine struct {
	k      int
	logger *slog.Logger
}

func NewFusionEngine(k int, logger *slog.Logger) *FusionEngine {
	if k <= 0 {
		k = defaultRRFK
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FusionEngine{k: k, logger: logger}
}

type fusedCandidate struct {
	result   domain.SearchResult
	score    float64
	bestRank int
	sources  map[string]struct{}
}

// Fuse accrues 1/(k+rank) per source occurrence into an accumulator keyed by
// chunk id. Ordering is fully deterministic: descending fused score, then the
// smallest rank seen in any single source, then chunk id. A limit above zero
// truncates the fused set.
func (e *FusionEngine) Fuse(responses []domain.AdapterResponse, limit int) domain.FusionResult {
	start := time.Now()
	acc := make(map[string]*fusedCandidate)
	sourcesUsed := make([]string, 0, len(responses))
	okCount := 0

	for _, resp := range responses {
		if !resp.OK() {
			continue
		}
		okCount++
		sourcesUsed = append(sourcesUsed, resp.SourceName)
		for _, result := range resp.Results {
			key := e.fusionKey(result)
			candidate, ok := acc[key]
			if !ok {
				candidate = &fusedCandidate{
					result:   result,
					bestRank: result.Rank,
					sources:  make(map[string]struct{}, 2),
				}
				acc[key] = candidate
			}
			candidate.score += 1.0 / float64(e.k+result.Rank)
			if result.Rank < candidate.bestRank {
				candidate.bestRank = result.Rank
			}
			candidate.result = preferRicherResult(candidate.result, result)
			candidate.sources[resp.SourceName] = struct{}{}
		}
	}

	type ordered struct {
		key      string
		bestRank int
		result   domain.SearchResult
	}
	merged := make([]ordered, 0, len(acc))
	for key, c := range acc {
		result := c.result
		result.Score = c.score
		result.Sources = sortedSourceSet(c.sources)
		merged = append(merged, ordered{key: key, bestRank: c.bestRank, result: result})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].result.Score != merged[j].result.Score {
			return merged[i].result.Score > merged[j].result.Score
		}
		if merged[i].bestRank != merged[j].bestRank {
			return merged[i].bestRank < merged[j].bestRank
		}
		return merged[i].key < merged[j].key
	})

	fused := make([]domain.SearchResult, 0, len(merged))
	for i, m := range merged {
		m.result.Rank = i + 1
		fused = append(fused, m.result)
	}
	if limit > 0 && len(fused) > limit {
		fused = fused[:limit]
	}

	coverage := 0.0
	if len(responses) > 0 {
		coverage = float64(okCount) / float64(len(responses)) * 100.0
	}

	sort.Strings(sourcesUsed)

	return domain.FusionResult{
		Results:      fused,
		TotalResults: len(fused),
		SourcesUsed:  sourcesUsed,
		FusionMethod: domain.FusionMethodRRF,
		LatencyMS:    time.Since(start).Milliseconds(),
		Coverage:     coverage,
	}
}

// fusionKey is the dedup identity. A missing chunk id would break the dedup
// invariant, so it is logged loudly and replaced by a stable composite key
// instead of failing the request.
func (e *FusionEngine) fusionKey(result domain.SearchResult) string {
	if result.ChunkID != "" {
		return result.ChunkID
	}
	e.logger.Error("fusion_missing_chunk_id", "doc_id", result.DocID, "title", result.Title)
	return fmt.Sprintf("%s|%s|%s", result.DocID, result.Title, result.Text)
}

func preferRicherResult(current, candidate domain.SearchResult) domain.SearchResult {
	if current.Text == "" && candidate.Text != "" {
		current.Text = candidate.Text
	}
	if current.Title == "" && candidate.Title != "" {
		current.Title = candidate.Title
	}
	if current.DocID == "" && candidate.DocID != "" {
		current.DocID = candidate.DocID
	}
	if current.ChannelID == "" && candidate.ChannelID != "" {
		current.ChannelID = candidate.ChannelID
	}
	return current
}

func sortedSourceSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
