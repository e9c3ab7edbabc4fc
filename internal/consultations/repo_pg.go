package consultations

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"skincare-backend/internal/skin"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new consultation.
func (r *PGRepo) Create(ctx context.Context, c Consultation) error {
	const query = `
INSERT INTO consultations (
	id, status, photo_key, photo_content_type, message, attempts, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.DB.ExecContext(ctx, query,
		c.ID,
		string(c.Status),
		c.PhotoKey,
		c.PhotoContentType,
		nullIfEmpty(c.Message),
		c.Attempts,
		c.CreatedAt,
		c.CreatedAt,
	)
	return err
}

// GetByID returns a consultation by ID.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Consultation, error) {
	const query = `
SELECT id, status, photo_key, photo_content_type, message, profile, recommendation,
       error_message, attempts, failure_counts, started_at, completed_at, created_at, updated_at
FROM consultations
WHERE id = $1
LIMIT 1`
	var c Consultation
	var status string
	var message sql.NullString
	var profile sql.NullString
	var recommendation sql.NullString
	var errorMessage sql.NullString
	var failures sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&status,
		&c.PhotoKey,
		&c.PhotoContentType,
		&message,
		&profile,
		&recommendation,
		&errorMessage,
		&c.Attempts,
		&failures,
		&startedAt,
		&completedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Consultation{}, ErrNotFound
		}
		return Consultation{}, err
	}
	c.Status = Status(status)
	if message.Valid {
		c.Message = message.String
	}
	if profile.Valid {
		var p skin.Profile
		if err := json.Unmarshal([]byte(profile.String), &p); err != nil {
			return Consultation{}, fmt.Errorf("decode profile: %w", err)
		}
		c.Profile = &p
	}
	if recommendation.Valid {
		var rec skin.RecommendationResult
		if err := json.Unmarshal([]byte(recommendation.String), &rec); err != nil {
			return Consultation{}, fmt.Errorf("decode recommendation: %w", err)
		}
		c.Recommendation = &rec
	}
	if errorMessage.Valid {
		msg := errorMessage.String
		c.ErrorMessage = &msg
	}
	if failures.Valid && failures.String != "" {
		if err := json.Unmarshal([]byte(failures.String), &c.Failures); err != nil {
			return Consultation{}, fmt.Errorf("decode failure counts: %w", err)
		}
	}
	if startedAt.Valid {
		c.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return c, nil
}

// UpdateStatus applies a guarded status change. The allowed source states
// are part of the WHERE clause so concurrent writers cannot regress a row.
func (r *PGRepo) UpdateStatus(ctx context.Context, id string, status Status, u Update) error {
	froms := allowedSources(status)
	if len(froms) == 0 {
		return ErrInvalidTransition
	}
	profilePayload, err := marshalJSONB(u.Profile)
	if err != nil {
		return err
	}
	recPayload, err := marshalJSONB(u.Recommendation)
	if err != nil {
		return err
	}

	now := u.timestamp()
	var startedAt, completedAt any
	if status == StatusAnalyzing {
		startedAt = now
	}
	if status.Terminal() {
		completedAt = now
	}
	var errorMessage any
	if u.ErrorMessage != nil {
		errorMessage = *u.ErrorMessage
	}
	var failures any
	if u.Failures != nil {
		payload, err := json.Marshal(u.Failures)
		if err != nil {
			return err
		}
		failures = string(payload)
	}

	args := []any{id, string(status), profilePayload, recPayload, errorMessage, u.Attempts, startedAt, completedAt, now, failures}
	placeholders := make([]string, 0, len(froms))
	for _, from := range froms {
		args = append(args, string(from))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	query := `
UPDATE consultations
SET status = $2,
    profile = $3,
    recommendation = $4,
    error_message = $5,
    attempts = GREATEST(attempts, $6),
    started_at = COALESCE(started_at, $7),
    completed_at = $8,
    updated_at = $9,
    failure_counts = COALESCE($10::jsonb, failure_counts)
WHERE id = $1 AND status IN (` + strings.Join(placeholders, ", ") + `)`

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var current string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM consultations WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
}

func marshalJSONB(value any) (any, error) {
	switch v := value.(type) {
	case *skin.Profile:
		if v == nil {
			return nil, nil
		}
	case *skin.RecommendationResult:
		if v == nil {
			return nil, nil
		}
	case nil:
		return nil, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
