// Package interpreter holds the generation adapters: the Gemini vision
// pass, the OpenAI persona voices, and the registry that routes between
// them.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/infra/metrics"
)

var _ adapter.Interpreter = (*OpenAIPersona)(nil)

// OpenAIPersona turns a vision result (or a follow-up question about one)
// into reading text, voiced by a single persona.
type OpenAIPersona struct {
	client  openai.Client
	model   string
	persona string
}

func NewOpenAIPersona(apiKey, model, persona string) (*OpenAIPersona, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if _, ok := personaPrompts[persona]; !ok {
		return nil, fmt.Errorf("openai: unknown persona %q", persona)
	}
	return &OpenAIPersona{
		client:  openai.NewClient(option.WithAPIKey(apiKey)),
		model:   model,
		persona: persona,
	}, nil
}

func (p *OpenAIPersona) Interpret(ctx context.Context, in adapter.Input, opts adapter.Options) (adapter.Reading, error) {
	if in.VisionResult == "" {
		return adapter.Reading{}, errors.New("openai: interpretation needs a vision result")
	}

	user := interpretRequest(in.VisionResult)
	if in.Question != "" {
		user = followUpRequest(in.VisionResult, in.Question)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt(p.persona, opts.Topic, opts.Language, opts.UserName)),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		metrics.ObserveInterpreterCall("openai", p.persona, 0, time.Since(start), false)
		return adapter.Reading{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		metrics.ObserveInterpreterCall("openai", p.persona, 0, time.Since(start), false)
		return adapter.Reading{}, errors.New("openai: no choice content")
	}

	text := resp.Choices[0].Message.Content
	tokens := int(resp.Usage.TotalTokens)
	if tokens == 0 {
		// Some gateways strip usage; estimate so the record still carries
		// a token figure.
		tokens = estimateTokens(p.model, user) + estimateTokens(p.model, text)
	}
	metrics.ObserveInterpreterCall("openai", p.persona, tokens, time.Since(start), true)
	return adapter.Reading{Text: text, TokensUsed: tokens}, nil
}
