package service

import (
	"context"
	"time"

	"carefinder/internal/config"
	"carefinder/internal/model"
	"carefinder/internal/utils"
)

// IntentExtractor asks the completion service for a JSON intent and recovers the object from its text
type IntentExtractor struct {
	client       CompletionClient
	systemPrompt string
	timeout      time.Duration
}

// NewIntentExtractor creates an extractor whose system prompt is rendered from vocab
func NewIntentExtractor(client CompletionClient, vocab *config.Vocabulary, timeout time.Duration) *IntentExtractor {
	return &IntentExtractor{
		client:       client,
		systemPrompt: BuildSystemPrompt(vocab),
		timeout:      timeout,
	}
}

// Extraction is the outcome of one successful extraction
type Extraction struct {
	Raw      model.RawIntent
	Text     string // model output as received
	Strategy string // recovery strategy that matched
}

// Extract performs exactly one completion call. Failures are *IntentError with kind
// ErrUpstreamUnavailable, ErrUpstreamError or ErrExtractionFailure.
func (e *IntentExtractor) Extract(ctx context.Context, rawText string) (*Extraction, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	text, err := e.client.Generate(ctx, e.systemPrompt, BuildUserPrompt(rawText))
	if err != nil {
		return nil, classifyCompletionError("extract", err)
	}

	obj, strategy, err := utils.ParseAIJSONObject(text)
	if err != nil {
		return nil, &IntentError{Kind: ErrExtractionFailure, Op: "extract", Err: err}
	}

	return &Extraction{
		Raw:      model.RawIntent(obj),
		Text:     text,
		Strategy: strategy,
	}, nil
}

// SystemPrompt returns the rendered system instruction
func (e *IntentExtractor) SystemPrompt() string {
	return e.systemPrompt
}
