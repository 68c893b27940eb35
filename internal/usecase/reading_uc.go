package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/domain/ports/repository"
	"telegram-fortune-reading/internal/infra/metrics"
	"telegram-fortune-reading/internal/textsplit"
)

// ReadingOrchestrator drives one paid reading job end to end: reserve a
// credit, run the vision/interpretation workflow, persist the record,
// deliver the result in ordered chunks, and compensate the ledger when a
// step after the reservation fails. Handlers are registered on the durable
// queue; each invocation is an independent reservation attempt.
type ReadingOrchestrator struct {
	ledger   repository.CreditLedger
	readings repository.ReadingRepository
	vision   adapter.Interpreter
	personas adapter.Interpreter
	delivery adapter.DeliveryChannel
	alerter  adapter.OperatorAlerter
	retry    RetryPolicy
	log      *zerolog.Logger
}

func NewReadingOrchestrator(
	ledger repository.CreditLedger,
	readings repository.ReadingRepository,
	vision adapter.Interpreter,
	personas adapter.Interpreter,
	delivery adapter.DeliveryChannel,
	alerter adapter.OperatorAlerter,
	retry RetryPolicy,
	logger *zerolog.Logger,
) *ReadingOrchestrator {
	l := logger.With().Str("component", "ReadingOrchestrator").Logger()
	return &ReadingOrchestrator{
		ledger:   ledger,
		readings: readings,
		vision:   vision,
		personas: personas,
		delivery: delivery,
		alerter:  alerter,
		retry:    retry,
		log:      &l,
	}
}

// HandlePhotoAnalysis processes one first-time photo reading job.
func (o *ReadingOrchestrator) HandlePhotoAnalysis(ctx context.Context, job *model.Job) error {
	p, err := model.DecodePayload[model.PhotoAnalysisPayload](job.Payload)
	if err != nil {
		return domain.NonRetryable(err)
	}

	rec := &model.ReadingRecord{
		ID:             uuid.NewString(),
		OwnerID:        p.UserID,
		SessionGroupID: uuid.NewString(),
		Persona:        p.Persona,
		Topic:          p.Topic,
	}
	if err := o.readings.CreateProcessing(ctx, rec); err != nil {
		return fmt.Errorf("create processing record: %w", err)
	}

	actx := adapter.AlertContext{Queue: job.Queue, JobID: job.ID, UserID: p.UserID, ReadingID: rec.ID}
	consumed, err := o.reserve(ctx, p.UserID, p.CreditType, p.ChatID, p.Language, rec.ID)
	if err != nil {
		return o.fail(ctx, actx, p.ChatID, p.Language, p.UserID, p.CreditType, rec.ID, false, err)
	}
	if !consumed {
		return nil
	}

	start := time.Now()
	var vis adapter.Reading
	err = withRetry(ctx, o.retry, func(ctx context.Context) error {
		var ierr error
		vis, ierr = o.vision.Interpret(ctx, adapter.Input{PhotoURL: p.PhotoURL}, adapter.Options{
			Topic: p.Topic, Language: p.Language, UserName: p.UserName,
		})
		return ierr
	})
	if err != nil {
		return o.fail(ctx, actx, p.ChatID, p.Language, p.UserID, p.CreditType, rec.ID, true, fmt.Errorf("vision: %w", err))
	}

	var out adapter.Reading
	err = withRetry(ctx, o.retry, func(ctx context.Context) error {
		var ierr error
		out, ierr = o.personas.Interpret(ctx, adapter.Input{VisionResult: vis.Text}, adapter.Options{
			Persona: p.Persona, Topic: p.Topic, Language: p.Language, UserName: p.UserName,
		})
		return ierr
	})
	if err != nil {
		return o.fail(ctx, actx, p.ChatID, p.Language, p.UserID, p.CreditType, rec.ID, true, fmt.Errorf("interpret: %w", err))
	}
	elapsed := time.Since(start)

	o.persistSuccess(ctx, rec.ID, out.Text, vis.Text, vis.TokensUsed+out.TokensUsed, elapsed)

	if err := o.deliver(ctx, p.ChatID, out.Text); err != nil {
		return o.fail(ctx, actx, p.ChatID, p.Language, p.UserID, p.CreditType, rec.ID, true, err)
	}

	o.afterDelivery(ctx, rec.ID)
	metrics.ObserveReading("analysis", vis.TokensUsed+out.TokensUsed, elapsed)
	return nil
}

// HandleRetopic re-interprets an earlier reading's cached vision result
// for a new topic. The origin must exist, belong to the requesting user,
// and carry a vision result; violations are fatal before any credit is
// touched.
func (o *ReadingOrchestrator) HandleRetopic(ctx context.Context, job *model.Job) error {
	p, err := model.DecodePayload[model.RetopicPayload](job.Payload)
	if err != nil {
		return domain.NonRetryable(err)
	}

	origin, err := o.readings.FindByID(ctx, p.OriginID)
	if err != nil {
		if err == domain.ErrNotFound {
			return domain.NonRetryable(fmt.Errorf("retopic origin %s: %w", p.OriginID, err))
		}
		return fmt.Errorf("load retopic origin: %w", err)
	}
	if origin.OwnerID != p.UserID {
		return domain.NonRetryable(fmt.Errorf("retopic origin %s: owner mismatch", p.OriginID))
	}
	if origin.VisionResult == "" {
		return domain.NonRetryable(fmt.Errorf("retopic origin %s has no vision result", p.OriginID))
	}
	covered, err := o.readings.ListCoveredTopics(ctx, origin.SessionGroupID)
	if err != nil {
		return fmt.Errorf("list covered topics: %w", err)
	}
	for _, t := range covered {
		if t == p.Topic {
			o.notify(ctx, p.ChatID, topicCoveredMessage(p.Language))
			return domain.NonRetryable(fmt.Errorf("topic %q already covered in session %s", p.Topic, origin.SessionGroupID))
		}
	}

	rec := &model.ReadingRecord{
		ID:             uuid.NewString(),
		OwnerID:        p.UserID,
		SessionGroupID: origin.SessionGroupID,
		Persona:        p.Persona,
		Topic:          p.Topic,
		VisionResult:   origin.VisionResult,
	}
	if err := o.readings.CreateProcessing(ctx, rec); err != nil {
		return fmt.Errorf("create processing record: %w", err)
	}

	actx := adapter.AlertContext{Queue: job.Queue, JobID: job.ID, UserID: p.UserID, ReadingID: rec.ID}
	consumed, err := o.reserve(ctx, p.UserID, p.CreditType, p.ChatID, p.Language, rec.ID)
	if err != nil {
		return o.fail(ctx, actx, p.ChatID, p.Language, p.UserID, p.CreditType, rec.ID, false, err)
	}
	if !consumed {
		return nil
	}

	start := time.Now()
	var out adapter.Reading
	err = withRetry(ctx, o.retry, func(ctx context.Context) error {
		var ierr error
		out, ierr = o.personas.Interpret(ctx, adapter.Input{VisionResult: origin.VisionResult}, adapter.Options{
			Persona: p.Persona, Topic: p.Topic, Language: p.Language, UserName: p.UserName,
		})
		return ierr
	})
	if err != nil {
		return o.fail(ctx, actx, p.ChatID, p.Language, p.UserID, p.CreditType, rec.ID, true, fmt.Errorf("interpret: %w", err))
	}
	elapsed := time.Since(start)

	o.persistSuccess(ctx, rec.ID, out.Text, origin.VisionResult, out.TokensUsed, elapsed)

	if err := o.deliver(ctx, p.ChatID, out.Text); err != nil {
		return o.fail(ctx, actx, p.ChatID, p.Language, p.UserID, p.CreditType, rec.ID, true, err)
	}

	o.afterDelivery(ctx, rec.ID)
	metrics.ObserveReading("retopic", out.TokensUsed, elapsed)
	return nil
}

// reserve runs the credit reservation step. The (false, nil) return means
// insufficient funds: the user was told to top up and the job completes
// without an error, a retry, or a refund, because nothing was consumed.
func (o *ReadingOrchestrator) reserve(ctx context.Context, userID string, ct model.CreditType, chatID int64, lang, recID string) (bool, error) {
	ok, err := o.ledger.Consume(ctx, userID, ct)
	if err != nil {
		return false, fmt.Errorf("reserve credit: %w", err)
	}
	if !ok {
		metrics.IncInsufficientCredits(string(ct))
		o.log.Info().Str("user_id", userID).Str("credit_type", string(ct)).Msg("insufficient credits, skipping job")
		if ferr := o.readings.Fail(ctx, recID, "insufficient credits"); ferr != nil {
			o.log.Error().Err(ferr).Str("reading_id", recID).Msg("could not close out reading record")
		}
		o.notify(ctx, chatID, topUpMessage(lang))
		return false, nil
	}
	metrics.IncCreditOp("consume", string(ct))
	return true, nil
}

// fail runs the compensation sequence and re-throws origErr so the queue's
// retry policy can decide what to do with the job. The refund happens if
// and only if this execution consumed a credit, and at most once.
func (o *ReadingOrchestrator) fail(ctx context.Context, actx adapter.AlertContext, chatID int64, lang, userID string, ct model.CreditType, recID string, consumed bool, origErr error) error {
	o.alerter.Alert(ctx, origErr, actx)

	if consumed {
		if rerr := o.ledger.Refund(ctx, userID, ct); rerr != nil {
			o.log.Error().Err(rerr).Str("user_id", userID).Msg("credit refund failed")
		} else {
			metrics.IncCreditOp("refund", string(ct))
		}
	}

	if ferr := o.readings.Fail(ctx, recID, origErr.Error()); ferr != nil {
		o.log.Error().Err(ferr).Str("reading_id", recID).Msg("could not mark reading failed")
	}

	if consumed {
		o.notify(ctx, chatID, refundMessage(lang))
	}

	return origErr
}

// deliver splits text at the transport limit and sends every chunk in
// order. Chunk n+1 is not sent before chunk n's send resolves so the
// recipient reads them in sequence.
func (o *ReadingOrchestrator) deliver(ctx context.Context, chatID int64, text string) error {
	chunks := textsplit.Split(text, o.delivery.MaxMessageLen())
	if len(chunks) == 0 {
		return domain.NonRetryable(domain.ErrEmptyDelivery)
	}
	for i, c := range chunks {
		if err := o.delivery.Send(ctx, chatID, c, adapter.Format{}); err != nil {
			return fmt.Errorf("deliver chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

// persistSuccess records the completed reading. A failure here is logged
// and swallowed: the user already has a valid result in hand and delivery
// proceeds.
func (o *ReadingOrchestrator) persistSuccess(ctx context.Context, recID, text, vision string, tokens int, elapsed time.Duration) {
	if err := o.readings.Complete(ctx, recID, text, vision, tokens, elapsed.Milliseconds()); err != nil {
		o.log.Error().Err(err).Str("reading_id", recID).Msg("could not persist completed reading")
	}
}

// afterDelivery records post-delivery bookkeeping, best-effort.
func (o *ReadingOrchestrator) afterDelivery(ctx context.Context, recID string) {
	if err := o.readings.MarkDelivered(ctx, recID); err != nil {
		o.log.Warn().Err(err).Str("reading_id", recID).Msg("could not stamp delivery")
	}
}

// notify sends a short service message, swallowing any error.
func (o *ReadingOrchestrator) notify(ctx context.Context, chatID int64, text string) {
	if err := o.delivery.Send(ctx, chatID, text, adapter.Format{}); err != nil {
		o.log.Warn().Err(err).Int64("chat_id", chatID).Msg("service notification not delivered")
	}
}
