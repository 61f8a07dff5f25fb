package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"carefinder/internal/config"
	"carefinder/internal/utils"
)

func TestIntentExtractor_Recovery(t *testing.T) {
	object := `{"resource_type": "health", "radius": 3000, "limit": 20000}`

	tests := []struct {
		name         string
		response     string
		wantStrategy string
	}{
		{name: "Bare JSON", response: object, wantStrategy: "direct"},
		{name: "Fenced JSON", response: "```json\n" + object + "\n```", wantStrategy: "markdown"},
		{name: "JSON in prose", response: "根据您的查询，解析结果为 " + object + " 请查收。", wantStrategy: "braces"},
		{name: "Empty braces in prose", response: "按照 {} 格式输出结果如下: " + object, wantStrategy: "braces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newOllamaStub(t, http.StatusOK, tt.response)
			extractor := NewIntentExtractor(NewOllamaClient(testCompletionConfig(srv.URL)), config.DefaultVocabulary(), 5*time.Second)

			got, err := extractor.Extract(context.Background(), "附近3公里内的社区医院")
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if got.Strategy != tt.wantStrategy {
				t.Errorf("strategy = %q, want %q", got.Strategy, tt.wantStrategy)
			}
			if got.Raw["resource_type"] != "health" {
				t.Errorf("resource_type = %v", got.Raw["resource_type"])
			}
		})
	}
}

func TestIntentExtractor_RequestShape(t *testing.T) {
	stub, srv := newOllamaStub(t, http.StatusOK, `{"resource_type": "elderly"}`)
	vocab := config.DefaultVocabulary()
	extractor := NewIntentExtractor(NewOllamaClient(testCompletionConfig(srv.URL)), vocab, 5*time.Second)

	if _, err := extractor.Extract(context.Background(), "静安区公办的敬老院"); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(stub.requests) != 1 {
		t.Fatalf("expected exactly one completion request, got %d", len(stub.requests))
	}
	req := stub.requests[0]

	if req["model"] != "Qwen2.5:latest" {
		t.Errorf("model = %v", req["model"])
	}
	if req["prompt"] != "用户查询: 静安区公办的敬老院" {
		t.Errorf("prompt = %v", req["prompt"])
	}
	if req["stream"] != false {
		t.Errorf("stream = %v, want false", req["stream"])
	}
	options, _ := req["options"].(map[string]any)
	if options["temperature"] != 0.1 {
		t.Errorf("temperature = %v, want 0.1", options["temperature"])
	}

	system, _ := req["system"].(string)
	for _, want := range append([]string{"elderly", "health", "公建公营", "民建民营"}, vocab.Districts...) {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestIntentExtractor_Failures(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		response       string
		wantKind       ErrorKind
		wantStatusCode int
	}{
		{name: "HTTP 500", status: http.StatusInternalServerError, wantKind: ErrUpstreamError, wantStatusCode: 500},
		{name: "HTTP 404 model missing", status: http.StatusNotFound, wantKind: ErrUpstreamError, wantStatusCode: 404},
		{name: "No JSON in text", status: http.StatusOK, response: "抱歉，我无法理解这个问题。", wantKind: ErrExtractionFailure},
		{name: "JSON array", status: http.StatusOK, response: `["elderly"]`, wantKind: ErrExtractionFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newOllamaStub(t, tt.status, tt.response)
			extractor := NewIntentExtractor(NewOllamaClient(testCompletionConfig(srv.URL)), config.DefaultVocabulary(), 5*time.Second)

			_, err := extractor.Extract(context.Background(), "浦东新区有哪些养老院")
			var intentErr *IntentError
			if !errors.As(err, &intentErr) {
				t.Fatalf("expected *IntentError, got %v", err)
			}
			if intentErr.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", intentErr.Kind, tt.wantKind)
			}
			if intentErr.StatusCode != tt.wantStatusCode {
				t.Errorf("status code = %d, want %d", intentErr.StatusCode, tt.wantStatusCode)
			}
			if tt.wantKind == ErrExtractionFailure && !errors.Is(err, utils.ErrNoJSONObject) {
				t.Errorf("extraction failure should wrap ErrNoJSONObject: %v", err)
			}
		})
	}
}

func TestIntentExtractor_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	extractor := NewIntentExtractor(NewOllamaClient(testCompletionConfig(url)), config.DefaultVocabulary(), 5*time.Second)
	_, err := extractor.Extract(context.Background(), "最近的养老院")

	var intentErr *IntentError
	if !errors.As(err, &intentErr) || intentErr.Kind != ErrUpstreamUnavailable {
		t.Fatalf("expected upstream_unavailable, got %v", err)
	}
}

func TestIntentExtractor_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	extractor := NewIntentExtractor(NewOllamaClient(testCompletionConfig(srv.URL)), config.DefaultVocabulary(), 50*time.Millisecond)
	_, err := extractor.Extract(context.Background(), "最近的养老院")

	var intentErr *IntentError
	if !errors.As(err, &intentErr) || intentErr.Kind != ErrUpstreamUnavailable {
		t.Fatalf("timeout should be upstream_unavailable, got %v", err)
	}
}
