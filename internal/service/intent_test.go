package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"carefinder/internal/config"
	"carefinder/internal/model"
)

func newTestIntentParser(client CompletionClient) *IntentParser {
	vocab := config.DefaultVocabulary()
	return NewIntentParser(
		NewIntentExtractor(client, vocab, 5*time.Second),
		NewIntentNormalizer(vocab, config.UnboundedLimit),
		config.UnboundedLimit,
		nil,
	)
}

func TestIntentParser_Parse(t *testing.T) {
	tests := []struct {
		name         string
		client       *fakeCompletion
		query        string
		wantFallback bool
		wantKind     ErrorKind
		wantStrategy string
		wantDiags    int
		check        func(t *testing.T, intent model.ParsedIntent)
	}{
		{
			name:         "Clean extraction",
			client:       &fakeCompletion{text: `{"resource_type": "elderly", "district": "静安", "service_type": "公办"}`},
			query:        "静安区公办养老院",
			wantStrategy: "direct",
			check: func(t *testing.T, intent model.ParsedIntent) {
				if intent.ResourceKind != model.KindElderly {
					t.Errorf("kind = %s", intent.ResourceKind)
				}
				if intent.District == nil || *intent.District != "静安区" {
					t.Errorf("district = %v", intent.District)
				}
				if intent.OwnershipCategory == nil || *intent.OwnershipCategory != "public" {
					t.Errorf("ownership = %v", intent.OwnershipCategory)
				}
				if intent.ResultLimit != config.UnboundedLimit {
					t.Errorf("limit = %d", intent.ResultLimit)
				}
			},
		},
		{
			name:         "Invalid fields are dropped with diagnostics",
			client:       &fakeCompletion{text: `{"resource_type": "health", "radius": -5, "limit": "many"}`},
			query:        "附近的社区医院",
			wantStrategy: "direct",
			wantDiags:    2,
			check: func(t *testing.T, intent model.ParsedIntent) {
				if intent.RadiusMeters != nil {
					t.Errorf("radius = %v, want dropped", *intent.RadiusMeters)
				}
				if intent.ResultLimit != config.UnboundedLimit {
					t.Errorf("limit = %d, want default", intent.ResultLimit)
				}
			},
		},
		{
			name:         "Upstream failure uses the fallback intent",
			client:       &fakeCompletion{err: &HTTPStatusError{Operation: "generate", StatusCode: 500, Status: "500 Internal Server Error"}},
			query:        "  护理院  ",
			wantFallback: true,
			wantKind:     ErrUpstreamError,
			check: func(t *testing.T, intent model.ParsedIntent) {
				if intent.ResourceKind != model.KindBoth {
					t.Errorf("kind = %s, want both", intent.ResourceKind)
				}
				if intent.Keyword == nil || *intent.Keyword != "护理院" {
					t.Errorf("keyword = %v, want trimmed query", intent.Keyword)
				}
			},
		},
		{
			name:         "Network failure uses the fallback intent",
			client:       &fakeCompletion{err: errors.New("dial tcp 127.0.0.1:11434: connection refused")},
			query:        "养老院",
			wantFallback: true,
			wantKind:     ErrUpstreamUnavailable,
		},
		{
			name:         "Unparseable text uses the fallback intent",
			client:       &fakeCompletion{text: "我不确定您想找什么"},
			query:        "帮帮我",
			wantFallback: true,
			wantKind:     ErrExtractionFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestIntentParser(tt.client).Parse(context.Background(), tt.query)

			if got.Fallback != tt.wantFallback {
				t.Fatalf("fallback = %v, want %v", got.Fallback, tt.wantFallback)
			}
			if tt.wantFallback {
				if got.Err == nil || got.Err.Kind != tt.wantKind {
					t.Errorf("err = %v, want kind %s", got.Err, tt.wantKind)
				}
				if !tt.wantKind.TriggersFallback() {
					t.Errorf("%s should trigger the fallback", tt.wantKind)
				}
			} else if got.Err != nil {
				t.Errorf("unexpected err = %v", got.Err)
			}
			if got.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", got.Strategy, tt.wantStrategy)
			}
			if len(got.Diagnostics) != tt.wantDiags {
				t.Errorf("diagnostics = %d, want %d", len(got.Diagnostics), tt.wantDiags)
			}
			if tt.client.calls != 1 {
				t.Errorf("completion calls = %d, want 1", tt.client.calls)
			}
			if tt.check != nil {
				tt.check(t, got.Intent)
			}
		})
	}
}
