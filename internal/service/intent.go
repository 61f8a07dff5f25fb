package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"carefinder/internal/logger"
	"carefinder/internal/model"
)

// IntentParser turns a natural-language query into a ParsedIntent.
// Completion failures never surface as errors: the permissive fallback intent is used instead.
type IntentParser struct {
	extractor    *IntentExtractor
	normalizer   *IntentNormalizer
	defaultLimit int
	logger       *zap.Logger
}

// NewIntentParser creates a new intent parser
func NewIntentParser(extractor *IntentExtractor, normalizer *IntentNormalizer, defaultLimit int, logger *zap.Logger) *IntentParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IntentParser{
		extractor:    extractor,
		normalizer:   normalizer,
		defaultLimit: defaultLimit,
		logger:       logger,
	}
}

// IntentResult is the parsed intent plus what happened while producing it
type IntentResult struct {
	Intent      model.ParsedIntent
	Fallback    bool
	Err         *IntentError   // set when Fallback is true
	Diagnostics []*IntentError // ErrInvalidField entries for dropped fields
	Strategy    string         // JSON recovery strategy, empty on fallback
	ModelOutput string
}

// Parse extracts structured information from query
func (p *IntentParser) Parse(ctx context.Context, query string) IntentResult {
	query = strings.TrimSpace(query)
	log := logger.FromContext(ctx, p.logger)

	extraction, err := p.extractor.Extract(ctx, query)
	if err != nil {
		var intentErr *IntentError
		if !errors.As(err, &intentErr) {
			intentErr = classifyCompletionError("extract", err)
		}

		log.Warn("intent extraction failed, using fallback intent",
			zap.String("kind", string(intentErr.Kind)),
			zap.Int("status_code", intentErr.StatusCode),
			zap.Error(intentErr.Err),
		)
		return IntentResult{
			Intent:   model.FallbackIntent(query, p.defaultLimit),
			Fallback: true,
			Err:      intentErr,
		}
	}

	intent, diags := p.normalizer.Normalize(extraction.Raw)
	for _, d := range diags {
		log.Info("dropped invalid intent field",
			zap.String("field", d.Field),
			zap.Error(d.Err),
		)
	}

	log.Debug("intent parsed",
		zap.String("strategy", extraction.Strategy),
		zap.String("resource_kind", string(intent.ResourceKind)),
		zap.Int("result_limit", intent.ResultLimit),
	)

	return IntentResult{
		Intent:      intent,
		Diagnostics: diags,
		Strategy:    extraction.Strategy,
		ModelOutput: extraction.Text,
	}
}
