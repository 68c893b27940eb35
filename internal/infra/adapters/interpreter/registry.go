package interpreter

import (
	"context"
	"strings"

	"telegram-fortune-reading/internal/domain/ports/adapter"
)

var _ adapter.Interpreter = (*Registry)(nil)

// Registry routes an Interpret call to the persona named in the options.
// Callers stay agnostic to which voice (or provider) serves a persona.
type Registry struct {
	defaultPersona string
	byPersona      map[string]adapter.Interpreter
}

func NewRegistry(defaultPersona string, byPersona map[string]adapter.Interpreter) *Registry {
	return &Registry{
		defaultPersona: strings.ToLower(defaultPersona),
		byPersona:      byPersona,
	}
}

func (r *Registry) pick(persona string) adapter.Interpreter {
	if a := r.byPersona[strings.ToLower(persona)]; a != nil {
		return a
	}
	if a := r.byPersona[r.defaultPersona]; a != nil {
		return a
	}
	// last resort: first available
	for _, a := range r.byPersona {
		if a != nil {
			return a
		}
	}
	return nil
}

func (r *Registry) Interpret(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
	return r.pick(opts.Persona).Interpret(ctx, in, opts)
}
