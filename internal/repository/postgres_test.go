package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"surveysearch/internal/model"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return NewPostgresRepositoryFromDB(sqlx.NewDb(db, "postgres")), mock, func() { _ = db.Close() }
}

func TestGetRespondentReturnsNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT\\s+respondent_id, gender, birth_year").
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetRespondent(context.Background(), 42)
	if !model.IsKind(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetRespondentScansRow(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"respondent_id", "gender", "birth_year", "age", "region", "answer_text"}).
		AddRow(int64(7), "F", int64(1994), int64(31), "Seoul", "I run every morning")
	mock.ExpectQuery("FROM respondents").WithArgs(int64(7)).WillReturnRows(rows)

	got, err := repo.GetRespondent(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetRespondent() error = %v", err)
	}
	if got.ID != 7 || got.Region == nil || *got.Region != "Seoul" || got.Age == nil || *got.Age != 31 {
		t.Fatalf("unexpected respondent: %+v", got)
	}
}

func TestLogFeedbackUnknownSearchIsNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE search_logs").
		WithArgs("missing", int64(3), "click").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.LogFeedback(context.Background(), "missing", 3, "CLICK")
	if !model.IsKind(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLogSearchWritesEntry(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	fallback := model.FallbackSemanticNoThreshold
	mock.ExpectExec("INSERT INTO search_logs").
		WithArgs("sid", "runners", "semantic_only", &fallback, sqlmock.AnyArg(), 4, 12).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.LogSearch(context.Background(), SearchLogEntry{
		SearchID: "sid", Query: "runners", Strategy: model.SemanticOnly, Fallback: &fallback,
		Keywords: []string{"running"}, ResultCount: 4, ResponseTimeMs: 12,
	})
	if err != nil {
		t.Fatalf("LogSearch() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
