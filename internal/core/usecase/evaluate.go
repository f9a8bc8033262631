package usecase

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

const fusedSetName = "fused"

// EvaluateUseCase is the offline evaluation harness. It computes standard IR
// ranking-quality metrics against supplied ground truth plus cross-source
// overlap statistics, and is never invoked inline with a live request.
type EvaluateUseCase struct{}

func NewEvaluateUseCase() *EvaluateUseCase {
	return &EvaluateUseCase{}
}

func (uc *EvaluateUseCase) Evaluate(_ context.Context, req domain.EvaluationRequest) (*domain.EvaluationReport, error) {
	if len(req.FusedResults) == 0 && len(req.PerSourceResults) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate", errors.New("no result sets supplied"))
	}
	if req.ExperimentID == "" {
		req.ExperimentID = uuid.NewString()
	}
	if req.K <= 0 {
		req.K = len(req.FusedResults)
	}

	report := &domain.EvaluationReport{
		ExperimentID: req.ExperimentID,
		Query:        req.Query,
		K:            req.K,
		GeneratedAt:  time.Now().UTC(),
	}

	// Relevance metrics only exist with ground truth; a nil map keeps
	// "no ground truth" distinguishable from "zero relevance".
	if len(req.GroundTruth) > 0 {
		relevant := toIDSet(req.GroundTruth)
		report.RelevanceMetrics = map[string]domain.RelevanceMetrics{
			fusedSetName: relevanceAtK(chunkIDs(req.FusedResults), relevant, req.K),
		}
		for source, results := range req.PerSourceResults {
			report.RelevanceMetrics[source] = relevanceAtK(chunkIDs(results), relevant, req.K)
		}
	}

	if len(req.PerSourceResults) > 0 {
		fusedSet := toIDSet(chunkIDs(req.FusedResults))
		report.SourceOverlap = make(map[string]domain.OverlapStats, len(req.PerSourceResults))
		for source, results := range req.PerSourceResults {
			report.SourceOverlap[source] = overlapStats(fusedSet, chunkIDs(results))
		}
	}

	return report, nil
}

func relevanceAtK(retrieved []string, relevant map[string]struct{}, k int) domain.RelevanceMetrics {
	head := retrieved
	if len(head) > k {
		head = head[:k]
	}

	hits := 0
	dcg := 0.0
	mrr := 0.0
	for i, id := range head {
		if _, ok := relevant[id]; !ok {
			continue
		}
		hits++
		rank := i + 1
		dcg += 1.0 / math.Log2(float64(rank)+1)
		if mrr == 0 {
			mrr = 1.0 / float64(rank)
		}
	}

	m := domain.RelevanceMetrics{
		MRR:       mrr,
		Retrieved: len(retrieved),
		Relevant:  len(relevant),
	}
	if k > 0 {
		m.PrecisionAtK = float64(hits) / float64(k)
	}
	if len(relevant) > 0 {
		m.RecallAtK = float64(hits) / float64(len(relevant))
	}
	if ideal := idealDCG(len(relevant), k); ideal > 0 {
		m.NDCGAtK = dcg / ideal
	}
	return m
}

// idealDCG is the DCG of the best possible ordering: every relevant item
// placed at the top, binary gain 1/log2(rank+1).
func idealDCG(relevantCount, k int) float64 {
	n := relevantCount
	if n > k {
		n = k
	}
	ideal := 0.0
	for rank := 1; rank <= n; rank++ {
		ideal += 1.0 / math.Log2(float64(rank)+1)
	}
	return ideal
}

func overlapStats(fused map[string]struct{}, sourceIDs []string) domain.OverlapStats {
	count := 0
	for _, id := range dedupe(sourceIDs) {
		if _, ok := fused[id]; ok {
			count++
		}
	}
	stats := domain.OverlapStats{
		SourceResults: len(sourceIDs),
		OverlapCount:  count,
	}
	if len(sourceIDs) > 0 {
		stats.OverlapRatio = float64(count) / float64(len(sourceIDs))
	}
	return stats
}

func chunkIDs(results []domain.SearchResult) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.ChunkID)
	}
	return out
}

func toIDSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
