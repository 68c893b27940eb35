package repository

import (
	"context"

	"telegram-fortune-reading/internal/domain/model"
)

// ReadingRepository is the context store for reading records and the
// covered-topics history of a session group.
type ReadingRepository interface {
	// CreateProcessing inserts a new record in processing state and
	// returns it. A processing shell always exists before any paid
	// operation so a stuck row is observable after a crash.
	CreateProcessing(ctx context.Context, rec *model.ReadingRecord) error

	// FindByID returns a record, or domain.ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.ReadingRecord, error)

	// Complete transitions the record to completed with result fields.
	Complete(ctx context.Context, id, interpretation, visionResult string, tokensUsed int, processingMs int64) error

	// Fail transitions the record to failed with the error message.
	Fail(ctx context.Context, id, errorMessage string) error

	// ListCoveredTopics returns the topics of completed readings in a
	// session group.
	ListCoveredTopics(ctx context.Context, sessionGroupID string) ([]string, error)

	// MarkDelivered stamps delivered_at; best-effort bookkeeping.
	MarkDelivered(ctx context.Context, id string) error
}
