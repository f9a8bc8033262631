package domain

import "time"

// EvaluationRequest carries recorded experiment data into the offline
// evaluation harness. GroundTruth is the set of known-relevant chunk ids;
// when absent, relevance metrics are omitted from the report entirely so that
// "no ground truth" stays distinguishable from "zero relevance".
type EvaluationRequest struct {
	ExperimentID     string                    `json:"experiment_id"`
	Query            string                    `json:"query"`
	K                int                       `json:"k"`
	FusedResults     []SearchResult            `json:"fused_results"`
	PerSourceResults map[string][]SearchResult `json:"per_source_results,omitempty"`
	GroundTruth      []string                  `json:"ground_truth,omitempty"`
}

// RelevanceMetrics are standard IR ranking-quality metrics at cutoff K.
type RelevanceMetrics struct {
	PrecisionAtK float64 `json:"precision_at_k"`
	RecallAtK    float64 `json:"recall_at_k"`
	NDCGAtK      float64 `json:"ndcg_at_k"`
	MRR          float64 `json:"mrr"`
	Retrieved    int     `json:"retrieved"`
	Relevant     int     `json:"relevant"`
}

// OverlapStats compares one per-source result set against the fused set.
type OverlapStats struct {
	SourceResults int     `json:"source_results"`
	OverlapCount  int     `json:"overlap_count"`
	OverlapRatio  float64 `json:"overlap_ratio"`
}

// EvaluationReport is keyed by result-set name: "fused" plus one entry per
// supplied source. RelevanceMetrics is nil when no ground truth was supplied.
type EvaluationReport struct {
	ExperimentID     string                      `json:"experiment_id"`
	Query            string                      `json:"query"`
	K                int                         `json:"k"`
	GeneratedAt      time.Time                   `json:"generated_at"`
	RelevanceMetrics map[string]RelevanceMetrics `json:"relevance_metrics,omitempty"`
	SourceOverlap    map[string]OverlapStats     `json:"source_overlap,omitempty"`
}
