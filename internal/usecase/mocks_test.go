//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/domain/ports/repository"
)

// ---- Mock CreditLedger ----

type MockLedger struct {
	mu       sync.Mutex
	Balances map[string]int // key: userID|creditType

	Consumed int
	Refunded int

	ConsumeFunc func(ctx context.Context, userID string, ct model.CreditType) (bool, error)
	RefundFunc  func(ctx context.Context, userID string, ct model.CreditType) error
}

var _ repository.CreditLedger = (*MockLedger)(nil)

func key(userID string, ct model.CreditType) string { return userID + "|" + string(ct) }

func nowStamp() time.Time { return time.Now().Truncate(time.Millisecond) }

func (m *MockLedger) Consume(ctx context.Context, userID string, ct model.CreditType) (bool, error) {
	if m.ConsumeFunc != nil {
		return m.ConsumeFunc(ctx, userID, ct)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Balances[key(userID, ct)] < 1 {
		return false, nil
	}
	m.Balances[key(userID, ct)]--
	m.Consumed++
	return true, nil
}

func (m *MockLedger) Refund(ctx context.Context, userID string, ct model.CreditType) error {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, userID, ct)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Balances == nil {
		m.Balances = map[string]int{}
	}
	m.Balances[key(userID, ct)]++
	m.Refunded++
	return nil
}

func (m *MockLedger) Grant(ctx context.Context, userID string, ct model.CreditType, amount int, marker string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Balances == nil {
		m.Balances = map[string]int{}
	}
	m.Balances[key(userID, ct)] += amount
	return nil
}

func (m *MockLedger) Balance(ctx context.Context, userID string) (*model.CreditBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &model.CreditBalance{UserID: userID, Counts: map[model.CreditType]int{}}
	for k, v := range m.Balances {
		if len(k) > len(userID) && k[:len(userID)] == userID {
			out.Counts[model.CreditType(k[len(userID)+1:])] = v
		}
	}
	return out, nil
}

func (m *MockLedger) balance(userID string, ct model.CreditType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balances[key(userID, ct)]
}

// ---- Mock ReadingRepository ----

type MockReadings struct {
	mu      sync.Mutex
	Records map[string]*model.ReadingRecord

	CreateFunc func(ctx context.Context, rec *model.ReadingRecord) error
	FailFunc   func(ctx context.Context, id, msg string) error
}

var _ repository.ReadingRepository = (*MockReadings)(nil)

func NewMockReadings() *MockReadings {
	return &MockReadings{Records: map[string]*model.ReadingRecord{}}
}

func (m *MockReadings) CreateProcessing(ctx context.Context, rec *model.ReadingRecord) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rec)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Status = model.ReadingProcessing
	m.Records[rec.ID] = &cp
	rec.Status = model.ReadingProcessing
	return nil
}

func (m *MockReadings) FindByID(ctx context.Context, id string) (*model.ReadingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MockReadings) Complete(ctx context.Context, id, interpretation, visionResult string, tokensUsed int, processingMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[id]
	if !ok || rec.Status != model.ReadingProcessing {
		return domain.ErrNotFound
	}
	rec.Status = model.ReadingCompleted
	rec.Interpretation = interpretation
	rec.VisionResult = visionResult
	rec.TokensUsed = tokensUsed
	rec.ProcessingMs = processingMs
	return nil
}

func (m *MockReadings) Fail(ctx context.Context, id, errorMessage string) error {
	if m.FailFunc != nil {
		return m.FailFunc(ctx, id, errorMessage)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[id]
	if !ok || rec.Status != model.ReadingProcessing {
		return domain.ErrNotFound
	}
	rec.Status = model.ReadingFailed
	rec.ErrorMessage = errorMessage
	return nil
}

func (m *MockReadings) ListCoveredTopics(ctx context.Context, sessionGroupID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, rec := range m.Records {
		if rec.SessionGroupID == sessionGroupID && rec.Status == model.ReadingCompleted {
			out = append(out, rec.Topic)
		}
	}
	return out, nil
}

func (m *MockReadings) MarkDelivered(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Records[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := nowStamp()
	rec.DeliveredAt = &now
	return nil
}

func (m *MockReadings) single() *model.ReadingRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.Records {
		return rec
	}
	return nil
}

// ---- Mock Interpreter ----

type MockInterpreter struct {
	mu    sync.Mutex
	Calls int
	Last  adapter.Options

	InterpretFunc func(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error)
}

var _ adapter.Interpreter = (*MockInterpreter)(nil)

func (m *MockInterpreter) Interpret(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
	m.mu.Lock()
	m.Calls++
	m.Last = opts
	m.mu.Unlock()
	if m.InterpretFunc != nil {
		return m.InterpretFunc(ctx, in, opts)
	}
	return adapter.Reading{Text: "reading", TokensUsed: 10}, nil
}

// ---- Mock DeliveryChannel ----

type sentMessage struct {
	ChatID int64
	Text   string
}

type MockDelivery struct {
	mu     sync.Mutex
	MaxLen int
	Sent   []sentMessage

	SendFunc func(ctx context.Context, chatID int64, text string, f adapter.Format) error
}

var _ adapter.DeliveryChannel = (*MockDelivery)(nil)

func (m *MockDelivery) MaxMessageLen() int {
	if m.MaxLen == 0 {
		return 4096
	}
	return m.MaxLen
}

func (m *MockDelivery) Send(ctx context.Context, chatID int64, text string, f adapter.Format) error {
	if m.SendFunc != nil {
		if err := m.SendFunc(ctx, chatID, text, f); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, sentMessage{ChatID: chatID, Text: text})
	return nil
}

func (m *MockDelivery) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Sent))
	for i, s := range m.Sent {
		out[i] = s.Text
	}
	return out
}

// ---- Mock OperatorAlerter ----

type MockAlerter struct {
	mu     sync.Mutex
	Alerts []adapter.AlertContext
	Errs   []error
}

var _ adapter.OperatorAlerter = (*MockAlerter)(nil)

func (m *MockAlerter) Alert(ctx context.Context, err error, actx adapter.AlertContext) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Alerts = append(m.Alerts, actx)
	m.Errs = append(m.Errs, err)
}

func (m *MockAlerter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Alerts)
}
