package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/domain/ports/repository"
)

// ChatReplyHandler answers free-form follow-up questions about a completed
// reading. Follow-ups are included in the paid reading, so no credit is
// reserved and no compensation is needed; failures are alerted and
// re-thrown for the queue's retry policy.
type ChatReplyHandler struct {
	readings repository.ReadingRepository
	personas adapter.Interpreter
	delivery adapter.DeliveryChannel
	alerter  adapter.OperatorAlerter
	retry    RetryPolicy
	log      *zerolog.Logger
}

func NewChatReplyHandler(
	readings repository.ReadingRepository,
	personas adapter.Interpreter,
	delivery adapter.DeliveryChannel,
	alerter adapter.OperatorAlerter,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *ChatReplyHandler {
	l := logger.With().Str("component", "ChatReplyHandler").Logger()
	return &ChatReplyHandler{readings: readings, personas: personas, delivery: delivery, alerter: alerter, retry: retry, log: &l}
}

func (h *ChatReplyHandler) Handle(ctx context.Context, job *model.Job) error {
	p, err := model.DecodePayload[model.ChatReplyPayload](job.Payload)
	if err != nil {
		return domain.NonRetryable(err)
	}

	rec, err := h.readings.FindByID(ctx, p.ReadingID)
	if err != nil {
		if err == domain.ErrNotFound {
			return domain.NonRetryable(fmt.Errorf("reading %s: %w", p.ReadingID, err))
		}
		return fmt.Errorf("load reading: %w", err)
	}
	if rec.OwnerID != p.UserID {
		return domain.NonRetryable(fmt.Errorf("reading %s: owner mismatch", p.ReadingID))
	}
	if !rec.IsDeliverable() {
		return domain.NonRetryable(fmt.Errorf("reading %s is not completed", p.ReadingID))
	}

	var out adapter.Reading
	err = withRetry(ctx, h.retry, func(ctx context.Context) error {
		var ierr error
		out, ierr = h.personas.Interpret(ctx, adapter.Input{
			VisionResult: rec.VisionResult,
			Question:     p.Question,
		}, adapter.Options{Persona: p.Persona, Topic: rec.Topic, Language: p.Language})
		return ierr
	})
	if err != nil {
		h.alerter.Alert(ctx, err, adapter.AlertContext{Queue: job.Queue, JobID: job.ID, UserID: p.UserID, ReadingID: rec.ID})
		return fmt.Errorf("chat reply: %w", err)
	}
	if out.Text == "" {
		return domain.NonRetryable(domain.ErrEmptyDelivery)
	}
	if err := h.delivery.Send(ctx, p.ChatID, out.Text, adapter.Format{}); err != nil {
		h.alerter.Alert(ctx, err, adapter.AlertContext{Queue: job.Queue, JobID: job.ID, UserID: p.UserID, ReadingID: rec.ID})
		return fmt.Errorf("deliver chat reply: %w", err)
	}
	return nil
}
