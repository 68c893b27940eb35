package adapter

import "context"

// Input is what an Interpreter works from: either a photo reference for
// the vision step, or a cached vision result for interpretation steps.
// Exactly one of PhotoURL / VisionResult is set per call.
type Input struct {
	PhotoURL     string
	VisionResult string // structured JSON from a prior vision pass
	Question     string // follow-up question, chat-reply flow only
}

// Options steer the persona's output.
type Options struct {
	Persona  string
	Topic    string
	Language string
	UserName string
}

// Reading is an interpreter's result.
type Reading struct {
	Text       string
	TokensUsed int
}

// Interpreter is the polymorphic generation capability. Implementations
// are persona strategies over external model providers; the orchestrator
// is agnostic to which one is selected. Upstream failures surface as
// errors and are retried by the caller.
type Interpreter interface {
	Interpret(ctx context.Context, in Input, opts Options) (Reading, error)
}
