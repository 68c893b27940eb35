package model

import (
	"encoding/json"
	"fmt"
	"time"

	"telegram-fortune-reading/internal/domain"
)

type JobState string

const (
	JobStateCreated   JobState = "created"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateExpired   JobState = "expired"
)

// Queue names form a closed set; each queue carries exactly one payload shape.
const (
	QueuePhotoAnalysis = "photo-analysis"
	QueueRetopic       = "retopic"
	QueueChatReply     = "chat-reply"
	QueueSendMessage   = "send-message"
	QueueEngagement    = "engagement"
)

// Job is one durable unit of work. At most one worker owns a job while it
// is active; an active job whose StartedAt is older than the sweep cutoff
// is treated as abandoned by a crashed worker.
type Job struct {
	ID          string
	Queue       string
	Payload     json.RawMessage
	State       JobState
	RetryCount  int
	RetryLimit  int
	VisibleAt   time.Time
	ExpiresAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	Output      *JobOutput
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// JobOutput is the terminal result blob stored on the job row.
type JobOutput struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Note  string `json:"note,omitempty"`
}

// EnqueueOptions controls retry and expiry behavior for a new job.
type EnqueueOptions struct {
	RetryLimit int
	RetryDelay time.Duration
	ExpireIn   time.Duration
}

func (o EnqueueOptions) withDefaults() EnqueueOptions {
	if o.RetryLimit <= 0 {
		o.RetryLimit = 2
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 30 * time.Second
	}
	if o.ExpireIn <= 0 {
		o.ExpireIn = 15 * time.Minute
	}
	return o
}

// Normalize applies defaults; exported for the queue service.
func (o EnqueueOptions) Normalize() EnqueueOptions { return o.withDefaults() }

// PhotoAnalysisPayload asks for a first-time reading of a submitted photo.
type PhotoAnalysisPayload struct {
	UserID     string     `json:"user_id" validate:"required,max=64"`
	ChatID     int64      `json:"chat_id" validate:"required,gt=0"`
	PhotoURL   string     `json:"photo_url" validate:"required,url,max=2048"`
	CreditType CreditType `json:"credit_type" validate:"required,oneof=basic pro premium"`
	Persona    string     `json:"persona" validate:"required,oneof=classic mystic playful"`
	Topic      string     `json:"topic" validate:"required,oneof=general love career money health"`
	Language   string     `json:"language" validate:"required,len=2"`
	UserName   string     `json:"user_name" validate:"max=128"`
}

// RetopicPayload asks for a re-interpretation of an earlier reading for a
// new topic, reusing that reading's cached vision result.
type RetopicPayload struct {
	UserID     string     `json:"user_id" validate:"required,max=64"`
	ChatID     int64      `json:"chat_id" validate:"required,gt=0"`
	OriginID   string     `json:"origin_id" validate:"required,uuid4"`
	CreditType CreditType `json:"credit_type" validate:"required,oneof=basic pro premium"`
	Persona    string     `json:"persona" validate:"required,oneof=classic mystic playful"`
	Topic      string     `json:"topic" validate:"required,oneof=general love career money health"`
	Language   string     `json:"language" validate:"required,len=2"`
	UserName   string     `json:"user_name" validate:"max=128"`
}

// ChatReplyPayload is a free-form follow-up question about a reading.
// Not credit gated: the product treats follow-ups as part of the paid reading.
type ChatReplyPayload struct {
	UserID    string `json:"user_id" validate:"required,max=64"`
	ChatID    int64  `json:"chat_id" validate:"required,gt=0"`
	ReadingID string `json:"reading_id" validate:"required,uuid4"`
	Question  string `json:"question" validate:"required,min=1,max=2000"`
	Persona   string `json:"persona" validate:"required,oneof=classic mystic playful"`
	Language  string `json:"language" validate:"required,len=2"`
}

// SendMessagePayload delivers an arbitrary text to a chat, split as needed.
type SendMessagePayload struct {
	ChatID int64  `json:"chat_id" validate:"required,gt=0"`
	Text   string `json:"text" validate:"required,min=1,max=32768"`
}

// EngagementPayload nudges a user who has gone quiet.
type EngagementPayload struct {
	UserID       string `json:"user_id" validate:"required,max=64"`
	ChatID       int64  `json:"chat_id" validate:"required,gt=0"`
	InactiveDays int    `json:"inactive_days" validate:"required,gte=1,lte=365"`
	Language     string `json:"language" validate:"required,len=2"`
}

// PayloadFor returns a zero value of the payload type bound to queue, so
// callers can unmarshal and validate against the right shape.
func PayloadFor(queue string) (any, error) {
	switch queue {
	case QueuePhotoAnalysis:
		return &PhotoAnalysisPayload{}, nil
	case QueueRetopic:
		return &RetopicPayload{}, nil
	case QueueChatReply:
		return &ChatReplyPayload{}, nil
	case QueueSendMessage:
		return &SendMessagePayload{}, nil
	case QueueEngagement:
		return &EngagementPayload{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownQueue, queue)
	}
}

// DecodePayload unmarshals raw into the payload type for queue.
func DecodePayload[T any](raw json.RawMessage) (T, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("%w: decode payload: %v", domain.ErrInvalidArgument, err)
	}
	return p, nil
}
