package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/textsplit"
)

// OutboundHandler covers the two light queues: arbitrary outbound texts
// and re-engagement nudges. Whether a user actually qualifies for a nudge
// is decided by the producer; this side only delivers.
type OutboundHandler struct {
	delivery adapter.DeliveryChannel
	log      *zerolog.Logger
}

func NewOutboundHandler(delivery adapter.DeliveryChannel, logger *zerolog.Logger) *OutboundHandler {
	l := logger.With().Str("component", "OutboundHandler").Logger()
	return &OutboundHandler{delivery: delivery, log: &l}
}

func (h *OutboundHandler) HandleSendMessage(ctx context.Context, job *model.Job) error {
	p, err := model.DecodePayload[model.SendMessagePayload](job.Payload)
	if err != nil {
		return domain.NonRetryable(err)
	}
	return h.sendChunked(ctx, p.ChatID, p.Text)
}

func (h *OutboundHandler) HandleEngagement(ctx context.Context, job *model.Job) error {
	p, err := model.DecodePayload[model.EngagementPayload](job.Payload)
	if err != nil {
		return domain.NonRetryable(err)
	}
	h.log.Debug().Str("user_id", p.UserID).Int("inactive_days", p.InactiveDays).Msg("sending engagement nudge")
	return h.sendChunked(ctx, p.ChatID, nudgeMessage(p.Language))
}

func (h *OutboundHandler) sendChunked(ctx context.Context, chatID int64, text string) error {
	chunks := textsplit.Split(text, h.delivery.MaxMessageLen())
	if len(chunks) == 0 {
		return domain.NonRetryable(domain.ErrEmptyDelivery)
	}
	for i, c := range chunks {
		if err := h.delivery.Send(ctx, chatID, c, adapter.Format{}); err != nil {
			return fmt.Errorf("deliver chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}
