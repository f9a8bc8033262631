package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newBackendWithMock(t *testing.T) (*Backend, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &Backend{db: db}, mock, func() { _ = db.Close() }
}

func TestSearchScansRankedRows(t *testing.T) {
	backend, mock, done := newBackendWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"chunk_id", "doc_id", "channel_id", "title", "text", "score"}).
		AddRow("c1", "d1", "ch1", "First", "first text", 0.8).
		AddRow("c2", "d1", "ch1", "Second", "second text", 0.4)

	mock.ExpectQuery("SELECT chunk_id, doc_id").
		WithArgs("report", "", 10).
		WillReturnRows(rows)

	results, err := backend.Search(context.Background(), "report", nil, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ChunkID != "c1" || results[0].Rank != 1 {
		t.Fatalf("expected c1 at rank 1, got %+v", results[0])
	}
	if results[1].Rank != 2 {
		t.Fatalf("expected sequential ranks, got %+v", results[1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchAppliesChannelFilter(t *testing.T) {
	backend, mock, done := newBackendWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT chunk_id, doc_id").
		WithArgs("report", "ch2", 5).
		WillReturnRows(sqlmock.NewRows([]string{"chunk_id", "doc_id", "channel_id", "title", "text", "score"}))

	results, err := backend.Search(context.Background(), "report", map[string]any{"channel_id": "ch2"}, 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results, got %d", len(results))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSearchPropagatesQueryError(t *testing.T) {
	backend, mock, done := newBackendWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT chunk_id, doc_id").
		WithArgs("report", "", 10).
		WillReturnError(errors.New("relation does not exist"))

	if _, err := backend.Search(context.Background(), "report", nil, 10); err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
