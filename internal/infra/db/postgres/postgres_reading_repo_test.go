//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
)

func createShell(t *testing.T, repo *ReadingRepo, sessionGroup, topic string) *model.ReadingRecord {
	t.Helper()
	rec := &model.ReadingRecord{
		ID:             uuid.NewString(),
		OwnerID:        "u1",
		SessionGroupID: sessionGroup,
		Persona:        "classic",
		Topic:          topic,
	}
	if err := repo.CreateProcessing(context.Background(), rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	return rec
}

func TestReadingLifecycle(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewReadingRepo(testPool)

	rec := createShell(t, repo, uuid.NewString(), "love")

	got, err := repo.FindByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Status != model.ReadingProcessing {
		t.Fatalf("status = %s, want processing", got.Status)
	}

	if err := repo.Complete(ctx, rec.ID, "a bird brings news", `[{"symbol":"bird"}]`, 25, 1200); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ = repo.FindByID(ctx, rec.ID)
	if got.Status != model.ReadingCompleted || got.Interpretation == "" || got.TokensUsed != 25 {
		t.Fatalf("completed record = %+v", got)
	}
	if !got.IsDeliverable() {
		t.Fatal("completed record should be deliverable")
	}

	// Terminal states are write-once.
	if err := repo.Complete(ctx, rec.ID, "again", "", 1, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("double complete = %v, want ErrNotFound", err)
	}
	if err := repo.Fail(ctx, rec.ID, "late failure"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("fail after complete = %v, want ErrNotFound", err)
	}

	if err := repo.MarkDelivered(ctx, rec.ID); err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	got, _ = repo.FindByID(ctx, rec.ID)
	if got.DeliveredAt == nil {
		t.Fatal("delivered_at not stamped")
	}
}

func TestReadingFindUnknown(t *testing.T) {
	cleanup(t)
	repo := NewReadingRepo(testPool)
	if _, err := repo.FindByID(context.Background(), uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestListCoveredTopics(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	repo := NewReadingRepo(testPool)

	group := uuid.NewString()
	done := createShell(t, repo, group, "love")
	if err := repo.Complete(ctx, done.ID, "text", "{}", 1, 1); err != nil {
		t.Fatalf("complete: %v", err)
	}
	createShell(t, repo, group, "career")            // still processing
	failed := createShell(t, repo, group, "money")   // failed
	if err := repo.Fail(ctx, failed.ID, "boom"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	other := createShell(t, repo, uuid.NewString(), "health") // other session
	if err := repo.Complete(ctx, other.ID, "text", "{}", 1, 1); err != nil {
		t.Fatalf("complete other: %v", err)
	}

	topics, err := repo.ListCoveredTopics(ctx, group)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(topics) != 1 || topics[0] != "love" {
		t.Fatalf("covered topics = %v, want [love]", topics)
	}
}
