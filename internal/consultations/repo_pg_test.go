package consultations

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGRepoCreate(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	c := Consultation{
		ID:               "c-1",
		Status:           StatusPending,
		PhotoKey:         "consultations/c-1.jpg",
		PhotoContentType: "image/jpeg",
		CreatedAt:        time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO consultations").
		WithArgs("c-1", "pending", c.PhotoKey, "image/jpeg", nil, 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateStatusGuardsSourceStates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	p := oilyProfile()
	mock.ExpectExec(`UPDATE consultations .* WHERE id = \$1 AND status IN \(\$11\)`).
		WithArgs(
			"c-1",
			"completed",
			sqlmock.AnyArg(), // profile
			nil,              // recommendation
			nil,              // error_message
			2,
			nil,              // started_at untouched
			sqlmock.AnyArg(), // completed_at
			sqlmock.AnyArg(), // updated_at
			nil,              // failure_counts kept
			"analyzing",
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "c-1", StatusCompleted, Update{Profile: &p, Attempts: 2}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateStatusAnalyzingAllowsPendingAndRetry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec(`status IN \(\$11, \$12\)`).
		WithArgs("c-1", "analyzing", nil, nil, nil, 1, sqlmock.AnyArg(), nil, sqlmock.AnyArg(), nil, "pending", "analyzing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateStatus(context.Background(), "c-1", StatusAnalyzing, Update{Attempts: 1}); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoUpdateStatusReportsInvalidTransition(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("UPDATE consultations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM consultations").
		WithArgs("c-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("completed"))

	err = repo.UpdateStatus(context.Background(), "c-1", StatusAnalyzing, Update{Attempts: 2})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestPGRepoUpdateStatusReportsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec("UPDATE consultations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM consultations").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	err = repo.UpdateStatus(context.Background(), "missing", StatusAnalyzing, Update{})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoGetByIDDecodesJSONB(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	now := time.Now().UTC()
	profile := `{"face_detected":true,"skin_type":"oily","concerns":["acne"],"severity":{"acne":"moderate"},"notes":"Shine."}`
	rec := `{"picks":{"cleanser":[{"name":"Gel Cleanser","brand":"CeraVe","price":12.5,"url":"","image":"","tags":["acne"]}]},"rationale":"Because."}`
	rows := sqlmock.NewRows([]string{
		"id", "status", "photo_key", "photo_content_type", "message", "profile", "recommendation",
		"error_message", "attempts", "failure_counts", "started_at", "completed_at", "created_at", "updated_at",
	}).AddRow("c-1", "completed", "k", "image/jpeg", nil, profile, rec, nil, 3, `{"analysis":2}`, now, now, now, now)
	mock.ExpectQuery("SELECT id, status, photo_key").WithArgs("c-1").WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != StatusCompleted || got.Profile == nil || got.Recommendation == nil {
		t.Fatalf("unexpected consultation %+v", got)
	}
	if got.Profile.SkinType != "oily" || len(got.Recommendation.Picks["cleanser"]) != 1 {
		t.Fatalf("unexpected decoded payloads %+v %+v", got.Profile, got.Recommendation)
	}
	if got.ErrorMessage != nil {
		t.Fatalf("expected nil error message")
	}
	if got.Failures["analysis"] != 2 {
		t.Fatalf("expected decoded failure counts, got %v", got.Failures)
	}
}

func TestPGRepoUpdateStatusWritesFailureCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := &PGRepo{DB: db}
	mock.ExpectExec(`failure_counts = COALESCE\(\$10::jsonb, failure_counts\)`).
		WithArgs("c-1", "analyzing", nil, nil, nil, 2, sqlmock.AnyArg(), nil, sqlmock.AnyArg(), `{"analysis":1}`, "pending", "analyzing").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateStatus(context.Background(), "c-1", StatusAnalyzing, Update{Attempts: 2, Failures: map[string]int{"analysis": 1}})
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT id, status, photo_key").WithArgs("nope").WillReturnError(sql.ErrNoRows)
	if _, err := (&PGRepo{DB: db}).GetByID(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
