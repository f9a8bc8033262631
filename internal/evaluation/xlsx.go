// Package evaluation exports evaluation reports for experiment analysis.
package evaluation

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

const (
	relevanceSheet = "relevance"
	overlapSheet   = "overlap"
)

// WriteXLSX renders a report as a spreadsheet: one sheet of relevance
// metrics per result set, one of cross-source overlap statistics.
func WriteXLSX(report *domain.EvaluationReport, path string) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", relevanceSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"result_set", "precision_at_k", "recall_at_k", "ndcg_at_k", "mrr", "retrieved", "relevant"}
	if err := f.SetSheetRow(relevanceSheet, "A1", &header); err != nil {
		return fmt.Errorf("write relevance header: %w", err)
	}
	for i, name := range sortedKeys(report.RelevanceMetrics) {
		m := report.RelevanceMetrics[name]
		row := []any{name, m.PrecisionAtK, m.RecallAtK, m.NDCGAtK, m.MRR, m.Retrieved, m.Relevant}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(relevanceSheet, cell, &row); err != nil {
			return fmt.Errorf("write relevance row %s: %w", name, err)
		}
	}

	if _, err := f.NewSheet(overlapSheet); err != nil {
		return fmt.Errorf("create overlap sheet: %w", err)
	}
	overlapHeader := []any{"source", "source_results", "overlap_count", "overlap_ratio"}
	if err := f.SetSheetRow(overlapSheet, "A1", &overlapHeader); err != nil {
		return fmt.Errorf("write overlap header: %w", err)
	}
	for i, name := range sortedKeys(report.SourceOverlap) {
		s := report.SourceOverlap[name]
		row := []any{name, s.SourceResults, s.OverlapCount, s.OverlapRatio}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(overlapSheet, cell, &row); err != nil {
			return fmt.Errorf("write overlap row %s: %w", name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
