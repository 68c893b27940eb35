package interpreter

import (
	"context"

	"telegram-fortune-reading/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.Interpreter = (*limited)(nil)

type limited struct {
	inner adapter.Interpreter
	sem   chan struct{}
}

// NewLimited caps concurrent upstream calls across all workers sharing
// the wrapper. maxConcurrent <= 0 disables the cap.
func NewLimited(inner adapter.Interpreter, maxConcurrent int) adapter.Interpreter {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limited{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limited) Interpret(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return adapter.Reading{}, ctx.Err()
	}
	defer func() { <-l.sem }()
	return l.inner.Interpret(ctx, in, opts)
}
