package domain

// FusionMethodRRF is the only fusion method implemented today.
const FusionMethodRRF = "rrf"

type Query struct {
	Text    string         `json:"text"`
	Filters map[string]any `json:"filters,omitempty"`
	Limit   int            `json:"limit"`
}

// SearchResult is one retrieved content chunk. ChunkID is the identity used
// for cross-source deduplication; Rank is 1-based within the source that
// returned the result. After fusion, Sources holds every source that returned
// the same chunk.
type SearchResult struct {
	ChunkID   string         `json:"chunk_id"`
	DocID     string         `json:"doc_id"`
	ChannelID string         `json:"channel_id,omitempty"`
	Title     string         `json:"title,omitempty"`
	Text      string         `json:"text"`
	Score     float64        `json:"score"`
	Rank      int            `json:"rank"`
	Sources   []string       `json:"sources,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// AdapterResponse is the settled outcome of one backend call. Exactly one is
// produced per backend per request; a failed or timed-out backend yields an
// AdapterResponse with Err set and no results.
type AdapterResponse struct {
	SourceName string
	Results    []SearchResult
	LatencyMS  int64
	Err        error
}

func (r AdapterResponse) OK() bool {
	return r.Err == nil
}

// FusionResult is the merged, deduplicated ranking across all responding
// backends. Coverage is the percentage of backends that answered without
// error.
type FusionResult struct {
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	SourcesUsed  []string       `json:"sources_used"`
	FusionMethod string         `json:"fusion_method"`
	LatencyMS    int64          `json:"latency_ms"`
	Coverage     float64        `json:"coverage"`
}

// SearchResponse is the public answer of the retrieval core. Coverage and
// SourcesUsed are always populated so callers can detect partial-source
// degradation even when the call succeeds.
type SearchResponse struct {
	Results         []SearchResult   `json:"results"`
	TotalResults    int              `json:"total_results"`
	SourcesUsed     []string         `json:"sources_used"`
	FusionMethod    string           `json:"fusion_method"`
	Coverage        float64          `json:"coverage"`
	LatencyMS       int64            `json:"latency_ms"`
	TraceID         string           `json:"trace_id"`
	SourceLatencies map[string]int64 `json:"source_latencies,omitempty"`
	FilteredCount   int              `json:"filtered_count"`
	RedactedCount   int              `json:"redacted_count"`
}
