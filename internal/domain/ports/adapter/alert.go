package adapter

import "context"

// AlertContext identifies the failing work for the operator.
type AlertContext struct {
	Queue     string
	JobID     string
	UserID    string
	ReadingID string
}

// OperatorAlerter notifies operators of failures. Best-effort and
// rate-limited per error signature; it never blocks or fails the caller.
type OperatorAlerter interface {
	Alert(ctx context.Context, err error, actx AlertContext)
}
