package interpreter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/ports/adapter"
	"telegram-fortune-reading/internal/infra/metrics"
)

var _ adapter.Interpreter = (*GeminiVision)(nil)

// maxPhotoBytes caps the photo download. Telegram file URLs top out well
// below this; anything larger is not a cup photo.
const maxPhotoBytes = 20 << 20

// GeminiVision runs the vision pass: photo in, structured symbol
// inventory (JSON text) out. It never interprets; interpretation belongs
// to the personas.
type GeminiVision struct {
	client *genai.Client
	model  string
	http   *http.Client
	maxOut int
}

func NewGeminiVision(ctx context.Context, apiKey, baseURL, model string, maxOut int) (*GeminiVision, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiVision{
		client: c,
		model:  model,
		http:   &http.Client{Timeout: 30 * time.Second},
		maxOut: maxOut,
	}, nil
}

func (g *GeminiVision) Interpret(ctx context.Context, in adapter.Input, _ adapter.Options) (adapter.Reading, error) {
	if in.PhotoURL == "" {
		return adapter.Reading{}, errors.New("gemini: vision needs a photo url")
	}

	data, mime, err := g.fetchPhoto(ctx, in.PhotoURL)
	if err != nil {
		return adapter.Reading{}, err
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: visionPrompt},
				{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
			},
		}},
		&genai.GenerateContentConfig{
			MaxOutputTokens:  int32(g.maxOut),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		metrics.ObserveInterpreterCall("gemini", "vision", 0, time.Since(start), false)
		return adapter.Reading{}, fmt.Errorf("gemini vision: %w", err)
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	if strings.TrimSpace(text) == "" {
		metrics.ObserveInterpreterCall("gemini", "vision", 0, time.Since(start), false)
		return adapter.Reading{}, errors.New("gemini: empty vision response")
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	metrics.ObserveInterpreterCall("gemini", "vision", tokens, time.Since(start), true)
	return adapter.Reading{Text: text, TokensUsed: tokens}, nil
}

func (g *GeminiVision) fetchPhoto(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", domain.NonRetryable(fmt.Errorf("gemini: bad photo url: %w", err))
	}
	resp, err := g.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("gemini: fetch photo: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		// The file reference expired; retrying the same URL cannot help.
		return nil, "", domain.NonRetryable(fmt.Errorf("gemini: photo gone, http %d", resp.StatusCode))
	default:
		return nil, "", fmt.Errorf("gemini: fetch photo: http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("gemini: read photo: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, "", domain.NonRetryable(errors.New("gemini: photo exceeds size limit"))
	}

	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return nil, "", domain.NonRetryable(fmt.Errorf("gemini: not an image: %s", mime))
	}
	return data, mime, nil
}
