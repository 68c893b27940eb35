package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/repository"
)

var _ repository.ReadingRepository = (*ReadingRepo)(nil)

type ReadingRepo struct {
	pool *pgxpool.Pool
}

func NewReadingRepo(pool *pgxpool.Pool) *ReadingRepo {
	return &ReadingRepo{pool: pool}
}

func (r *ReadingRepo) CreateProcessing(ctx context.Context, rec *model.ReadingRecord) error {
	const q = `
INSERT INTO readings (id, owner_id, session_group_id, status, persona, topic,
                      vision_result, created_at, updated_at)
VALUES ($1, $2, $3, 'processing', $4, $5, $6, now(), now());`

	_, err := r.pool.Exec(ctx, q,
		rec.ID, rec.OwnerID, rec.SessionGroupID, rec.Persona, rec.Topic, rec.VisionResult)
	if err == nil {
		rec.Status = model.ReadingProcessing
	}
	return err
}

func (r *ReadingRepo) FindByID(ctx context.Context, id string) (*model.ReadingRecord, error) {
	const q = `
SELECT id, owner_id, session_group_id, status, persona, topic,
       COALESCE(vision_result, ''), COALESCE(interpretation, ''),
       tokens_used, processing_ms, COALESCE(error_message, ''),
       created_at, updated_at, delivered_at
  FROM readings WHERE id = $1;`

	var rec model.ReadingRecord
	var status string
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&rec.ID, &rec.OwnerID, &rec.SessionGroupID, &status, &rec.Persona, &rec.Topic,
		&rec.VisionResult, &rec.Interpretation,
		&rec.TokensUsed, &rec.ProcessingMs, &rec.ErrorMessage,
		&rec.CreatedAt, &rec.UpdatedAt, &rec.DeliveredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec.Status = model.ReadingStatus(status)
	return &rec, nil
}

// Complete transitions processing -> completed exactly once.
func (r *ReadingRepo) Complete(ctx context.Context, id, interpretation, visionResult string, tokensUsed int, processingMs int64) error {
	const q = `
UPDATE readings
   SET status = 'completed', interpretation = $2, vision_result = $3,
       tokens_used = $4, processing_ms = $5, updated_at = now()
 WHERE id = $1 AND status = 'processing';`

	tag, err := r.pool.Exec(ctx, q, id, interpretation, visionResult, tokensUsed, processingMs)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ReadingRepo) Fail(ctx context.Context, id, errorMessage string) error {
	const q = `
UPDATE readings
   SET status = 'failed', error_message = $2, updated_at = now()
 WHERE id = $1 AND status = 'processing';`

	tag, err := r.pool.Exec(ctx, q, id, errorMessage)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ReadingRepo) ListCoveredTopics(ctx context.Context, sessionGroupID string) ([]string, error) {
	const q = `
SELECT DISTINCT topic FROM readings
 WHERE session_group_id = $1 AND status = 'completed';`

	rows, err := r.pool.Query(ctx, q, sessionGroupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

func (r *ReadingRepo) MarkDelivered(ctx context.Context, id string) error {
	const q = `UPDATE readings SET delivered_at = now(), updated_at = now() WHERE id = $1;`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}
