package evaluation

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

func TestWriteXLSXRoundTrip(t *testing.T) {
	report := &domain.EvaluationReport{
		ExperimentID: "exp-1",
		Query:        "q",
		K:            5,
		GeneratedAt:  time.Now().UTC(),
		RelevanceMetrics: map[string]domain.RelevanceMetrics{
			"fused":    {PrecisionAtK: 0.4, RecallAtK: 0.5, NDCGAtK: 0.7, MRR: 1, Retrieved: 5, Relevant: 4},
			"semantic": {PrecisionAtK: 0.2, Retrieved: 5, Relevant: 4},
		},
		SourceOverlap: map[string]domain.OverlapStats{
			"semantic": {SourceResults: 5, OverlapCount: 3, OverlapRatio: 0.6},
		},
	}

	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := WriteXLSX(report, path); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen xlsx: %v", err)
	}
	defer func() {
		_ = f.Close()
	}()

	rows, err := f.GetRows("relevance")
	if err != nil {
		t.Fatalf("read relevance sheet: %v", err)
	}
	// Header plus one row per result set, sorted by name.
	if len(rows) != 3 {
		t.Fatalf("expected 3 relevance rows, got %d", len(rows))
	}
	if rows[1][0] != "fused" || rows[2][0] != "semantic" {
		t.Fatalf("expected sorted result sets, got %v / %v", rows[1][0], rows[2][0])
	}

	overlap, err := f.GetRows("overlap")
	if err != nil {
		t.Fatalf("read overlap sheet: %v", err)
	}
	if len(overlap) != 2 || overlap[1][0] != "semantic" {
		t.Fatalf("unexpected overlap sheet: %v", overlap)
	}
}
