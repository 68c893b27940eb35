//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/usecase"
)

type orchestratorFixture struct {
	ledger   *MockLedger
	readings *MockReadings
	vision   *MockInterpreter
	personas *MockInterpreter
	delivery *MockDelivery
	alerter  *MockAlerter
	orch     *usecase.ReadingOrchestrator
}

func newFixture() *orchestratorFixture {
	log := zerolog.Nop()
	f := &orchestratorFixture{
		ledger:   &MockLedger{Balances: map[string]int{}},
		readings: NewMockReadings(),
		vision:   &MockInterpreter{},
		personas: &MockInterpreter{},
		delivery: &MockDelivery{},
		alerter:  &MockAlerter{},
	}
	retry := usecase.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
	f.orch = usecase.NewReadingOrchestrator(
		f.ledger, f.readings, f.vision, f.personas, f.delivery, f.alerter, retry, &log)
	return f
}

func photoJob(t *testing.T, p model.PhotoAnalysisPayload) *model.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return &model.Job{ID: "job-1", Queue: model.QueuePhotoAnalysis, Payload: raw}
}

func basePayload() model.PhotoAnalysisPayload {
	return model.PhotoAnalysisPayload{
		UserID:     "u1",
		ChatID:     42,
		PhotoURL:   "https://example.com/cup.jpg",
		CreditType: model.CreditBasic,
		Persona:    "classic",
		Topic:      "love",
		Language:   "en",
		UserName:   "Ada",
	}
}

func TestPhotoAnalysisHappyPath(t *testing.T) {
	f := newFixture()
	f.ledger.Balances["u1|basic"] = 1
	f.vision.InterpretFunc = func(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
		if in.PhotoURL == "" {
			t.Error("vision pass should receive the photo url")
		}
		return adapter.Reading{Text: `[{"symbol":"bird"}]`, TokensUsed: 5}, nil
	}
	f.personas.InterpretFunc = func(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
		if in.VisionResult == "" {
			t.Error("interpretation should receive the vision result")
		}
		if opts.Persona != "classic" || opts.Topic != "love" {
			t.Errorf("opts not forwarded: %+v", opts)
		}
		return adapter.Reading{Text: "a bird brings news of love", TokensUsed: 20}, nil
	}

	err := f.orch.HandlePhotoAnalysis(context.Background(), photoJob(t, basePayload()))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if got := f.ledger.balance("u1", model.CreditBasic); got != 0 {
		t.Errorf("balance = %d, want 0 (one credit consumed)", got)
	}
	if f.ledger.Refunded != 0 {
		t.Errorf("refunds = %d, want 0", f.ledger.Refunded)
	}
	rec := f.readings.single()
	if rec == nil || rec.Status != model.ReadingCompleted {
		t.Fatalf("record = %+v, want completed", rec)
	}
	if rec.TokensUsed != 25 {
		t.Errorf("tokens = %d, want 25 (vision+interpretation)", rec.TokensUsed)
	}
	if rec.DeliveredAt == nil {
		t.Error("delivery not stamped")
	}
	if len(f.delivery.Sent) != 1 || f.delivery.Sent[0].ChatID != 42 {
		t.Errorf("sent = %+v", f.delivery.Sent)
	}
	if f.alerter.count() != 0 {
		t.Errorf("alerts = %d, want 0", f.alerter.count())
	}
}

func TestPhotoAnalysisInsufficientCredits(t *testing.T) {
	f := newFixture()
	// Balance is zero: the job must complete without error, consume
	// nothing, alert no one and tell the user to top up.
	err := f.orch.HandlePhotoAnalysis(context.Background(), photoJob(t, basePayload()))
	if err != nil {
		t.Fatalf("insufficient credits must not be an error, got %v", err)
	}

	if f.vision.Calls != 0 || f.personas.Calls != 0 {
		t.Error("no paid work should run without a credit")
	}
	if f.ledger.Refunded != 0 {
		t.Error("nothing was consumed, nothing to refund")
	}
	if f.alerter.count() != 0 {
		t.Error("insufficient credits is a normal outcome, not an alert")
	}
	rec := f.readings.single()
	if rec == nil || rec.Status != model.ReadingFailed {
		t.Fatalf("record = %+v, want failed shell", rec)
	}
	texts := f.delivery.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "Top up") {
		t.Errorf("user notice = %q, want a top-up prompt", texts)
	}
}

func TestPhotoAnalysisVisionFailureRefundsOnce(t *testing.T) {
	f := newFixture()
	f.ledger.Balances["u1|basic"] = 1
	f.vision.InterpretFunc = func(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
		return adapter.Reading{}, errors.New("upstream 500")
	}

	err := f.orch.HandlePhotoAnalysis(context.Background(), photoJob(t, basePayload()))
	if err == nil {
		t.Fatal("want the original error re-thrown for the queue")
	}

	if f.vision.Calls != 3 {
		t.Errorf("vision attempts = %d, want 3 (retry policy)", f.vision.Calls)
	}
	if got := f.ledger.balance("u1", model.CreditBasic); got != 1 {
		t.Errorf("balance = %d, want 1 (consumed then refunded exactly once)", got)
	}
	if f.ledger.Refunded != 1 {
		t.Errorf("refunds = %d, want 1", f.ledger.Refunded)
	}
	if f.alerter.count() != 1 {
		t.Errorf("alerts = %d, want 1", f.alerter.count())
	}
	rec := f.readings.single()
	if rec == nil || rec.Status != model.ReadingFailed {
		t.Fatalf("record = %+v, want failed", rec)
	}
	texts := f.delivery.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "returned") {
		t.Errorf("user notice = %q, want a refund notice", texts)
	}
}

func TestPhotoAnalysisLedgerErrorNoRefund(t *testing.T) {
	f := newFixture()
	f.ledger.ConsumeFunc = func(ctx context.Context, userID string, ct model.CreditType) (bool, error) {
		return false, domain.NewLedgerError("consume", errors.New("connection reset"))
	}

	err := f.orch.HandlePhotoAnalysis(context.Background(), photoJob(t, basePayload()))
	if err == nil {
		t.Fatal("ledger storage failure must surface as an error")
	}
	if domain.IsNonRetryable(err) {
		t.Error("a ledger outage is retryable")
	}
	// Consumption never happened, so compensation must not refund.
	if f.ledger.Refunded != 0 {
		t.Errorf("refunds = %d, want 0", f.ledger.Refunded)
	}
	if f.alerter.count() != 1 {
		t.Errorf("alerts = %d, want 1", f.alerter.count())
	}
}

func TestPhotoAnalysisDeliveryFailureCompensates(t *testing.T) {
	f := newFixture()
	f.ledger.Balances["u1|basic"] = 1
	sendErr := errors.New("telegram 502")
	f.delivery.SendFunc = func(ctx context.Context, chatID int64, text string, fm adapter.Format) error {
		// Fail the reading delivery; let the later service notice pass.
		if strings.Contains(text, "reading") {
			return sendErr
		}
		return nil
	}

	err := f.orch.HandlePhotoAnalysis(context.Background(), photoJob(t, basePayload()))
	if !errors.Is(err, sendErr) {
		t.Fatalf("want delivery error re-thrown, got %v", err)
	}
	if f.ledger.Refunded != 1 {
		t.Errorf("refunds = %d, want 1", f.ledger.Refunded)
	}
	if f.alerter.count() != 1 {
		t.Errorf("alerts = %d, want 1", f.alerter.count())
	}
}

func TestPhotoAnalysisBadPayloadNonRetryable(t *testing.T) {
	f := newFixture()
	job := &model.Job{ID: "job-1", Queue: model.QueuePhotoAnalysis, Payload: json.RawMessage(`{"user_id":`)}
	err := f.orch.HandlePhotoAnalysis(context.Background(), job)
	if !domain.IsNonRetryable(err) {
		t.Fatalf("malformed payload must be non-retryable, got %v", err)
	}
}

func TestPhotoAnalysisMultiChunkDeliveryOrdered(t *testing.T) {
	f := newFixture()
	f.ledger.Balances["u1|basic"] = 1
	f.delivery.MaxLen = 80
	long := strings.Repeat("the bird flies over the mountain and the river bends twice ", 10)
	f.personas.InterpretFunc = func(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
		return adapter.Reading{Text: long, TokensUsed: 1}, nil
	}

	if err := f.orch.HandlePhotoAnalysis(context.Background(), photoJob(t, basePayload())); err != nil {
		t.Fatalf("handle: %v", err)
	}

	texts := f.delivery.texts()
	if len(texts) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(texts))
	}
	var joined strings.Builder
	for _, c := range texts {
		if len(c) > 80 {
			t.Errorf("chunk exceeds transport limit: %d runes", len(c))
		}
		joined.WriteString(c)
	}
	if strings.Join(strings.Fields(joined.String()), " ") != strings.Join(strings.Fields(long), " ") {
		t.Error("reassembled chunks do not reproduce the reading")
	}
}

// ---- Retopic ----

func retopicJob(t *testing.T, p model.RetopicPayload) *model.Job {
	t.Helper()
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return &model.Job{ID: "job-2", Queue: model.QueueRetopic, Payload: raw}
}

func seedOrigin(f *orchestratorFixture, owner string) *model.ReadingRecord {
	origin := &model.ReadingRecord{
		ID:             uuid.NewString(),
		OwnerID:        owner,
		SessionGroupID: uuid.NewString(),
		Status:         model.ReadingCompleted,
		Persona:        "classic",
		Topic:          "love",
		VisionResult:   `[{"symbol":"bird"}]`,
		Interpretation: "a bird brings news",
	}
	f.readings.Records[origin.ID] = origin
	return origin
}

func baseRetopic(originID string) model.RetopicPayload {
	return model.RetopicPayload{
		UserID:     "u1",
		ChatID:     42,
		OriginID:   originID,
		CreditType: model.CreditBasic,
		Persona:    "mystic",
		Topic:      "career",
		Language:   "en",
	}
}

func TestRetopicReusesVisionResult(t *testing.T) {
	f := newFixture()
	f.ledger.Balances["u1|basic"] = 1
	origin := seedOrigin(f, "u1")

	f.personas.InterpretFunc = func(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
		if in.VisionResult != origin.VisionResult {
			t.Errorf("vision result not reused: %q", in.VisionResult)
		}
		if in.PhotoURL != "" {
			t.Error("retopic must not carry a photo")
		}
		return adapter.Reading{Text: "new paths open at work", TokensUsed: 15}, nil
	}

	if err := f.orch.HandleRetopic(context.Background(), retopicJob(t, baseRetopic(origin.ID))); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if f.vision.Calls != 0 {
		t.Error("retopic must not run the vision pass")
	}
	var child *model.ReadingRecord
	for _, rec := range f.readings.Records {
		if rec.ID != origin.ID {
			child = rec
		}
	}
	if child == nil {
		t.Fatal("no child record created")
	}
	if child.SessionGroupID != origin.SessionGroupID {
		t.Error("child must share the origin's session group")
	}
	if child.Status != model.ReadingCompleted || child.Topic != "career" {
		t.Errorf("child = %+v", child)
	}
}

func TestRetopicOwnerMismatch(t *testing.T) {
	f := newFixture()
	f.ledger.Balances["u1|basic"] = 1
	origin := seedOrigin(f, "someone-else")

	err := f.orch.HandleRetopic(context.Background(), retopicJob(t, baseRetopic(origin.ID)))
	if !domain.IsNonRetryable(err) {
		t.Fatalf("owner mismatch must be non-retryable, got %v", err)
	}
	if f.ledger.Consumed != 0 {
		t.Error("no credit may be touched before validation passes")
	}
}

func TestRetopicUnknownOrigin(t *testing.T) {
	f := newFixture()
	err := f.orch.HandleRetopic(context.Background(), retopicJob(t, baseRetopic(uuid.NewString())))
	if !domain.IsNonRetryable(err) {
		t.Fatalf("missing origin must be non-retryable, got %v", err)
	}
}

func TestRetopicCoveredTopicRejected(t *testing.T) {
	f := newFixture()
	f.ledger.Balances["u1|basic"] = 1
	origin := seedOrigin(f, "u1")

	p := baseRetopic(origin.ID)
	p.Topic = "love" // already covered by the origin itself

	err := f.orch.HandleRetopic(context.Background(), retopicJob(t, p))
	if !domain.IsNonRetryable(err) {
		t.Fatalf("covered topic must be non-retryable, got %v", err)
	}
	if f.ledger.Consumed != 0 {
		t.Error("covered topic must be rejected before any credit is consumed")
	}
	texts := f.delivery.texts()
	if len(texts) != 1 || !strings.Contains(texts[0], "already covered") {
		t.Errorf("user notice = %q", texts)
	}
}

func TestRetopicInterpreterFailureRefunds(t *testing.T) {
	f := newFixture()
	f.ledger.Balances["u1|basic"] = 1
	origin := seedOrigin(f, "u1")
	f.personas.InterpretFunc = func(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
		return adapter.Reading{}, errors.New("upstream 500")
	}

	err := f.orch.HandleRetopic(context.Background(), retopicJob(t, baseRetopic(origin.ID)))
	if err == nil {
		t.Fatal("want error re-thrown")
	}
	if got := f.ledger.balance("u1", model.CreditBasic); got != 1 {
		t.Errorf("balance = %d, want 1 after refund", got)
	}
	if f.alerter.count() != 1 {
		t.Errorf("alerts = %d, want 1", f.alerter.count())
	}
}
