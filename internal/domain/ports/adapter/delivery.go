package adapter

import "context"

// Format options for one outbound message.
type Format struct {
	ParseMode      string // "" | "HTML" | "Markdown"
	DisablePreview bool
}

// DeliveryChannel sends result text to a chat. One call per chunk; the
// channel must preserve the caller's ordering.
type DeliveryChannel interface {
	Send(ctx context.Context, chatID int64, text string, f Format) error

	// MaxMessageLen is the transport's hard per-message size limit.
	MaxMessageLen() int
}
