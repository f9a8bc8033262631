package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/retrieval-core/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*ViolationRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &ViolationRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestRecordViolationsInsertsEachRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO policy_violations").
		WithArgs("rag_1_aa", "c1", "authorization_failed", "channel denied", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO policy_violations").
		WithArgs("rag_1_aa", "c2", "pii_detected", "email matched", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	err := repo.RecordViolations(context.Background(), "rag_1_aa", []domain.PolicyViolation{
		{ChunkID: "c1", Violation: domain.ViolationAuthorizationFailed, Reason: "channel denied"},
		{ChunkID: "c2", Violation: domain.ViolationPIIDetected, Reason: "email matched"},
	})
	if err != nil {
		t.Fatalf("record violations: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordViolationsNoopOnEmptySlice(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	if err := repo.RecordViolations(context.Background(), "rag_1_aa", nil); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordViolationsRollsBackOnInsertError(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO policy_violations").
		WithArgs("rag_1_aa", "c1", "policy_error", "boom", sqlmock.AnyArg()).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := repo.RecordViolations(context.Background(), "rag_1_aa", []domain.PolicyViolation{
		{ChunkID: "c1", Violation: domain.ViolationPolicyError, Reason: "boom"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCountByTrace(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs("rag_1_aa").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := repo.CountByTrace(context.Background(), "rag_1_aa")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
