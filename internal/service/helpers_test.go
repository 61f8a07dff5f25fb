package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"carefinder/internal/config"
	"carefinder/internal/model"
)

func strPtr(v string) *string       { return &v }
func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }

// Reference point used by the fixtures: every facility sits due north of it
var testRef = model.GeoPoint{Lng: 121.47, Lat: 31.23}

func facility(id int64, district, name string, beds *int, kind *string, latOffset *float64) model.Facility {
	f := model.Facility{
		ID:       id,
		District: strPtr(district),
		Name:     strPtr(name),
		Address:  strPtr(district + name + "路1号"),
		Beds:     beds,
		Type:     kind,
	}
	if latOffset != nil {
		f.Lng = float64Ptr(testRef.Lng)
		f.Lat = float64Ptr(testRef.Lat + *latOffset)
	}
	return f
}

func fixtureElderly() []model.Facility {
	return []model.Facility{
		facility(1, "浦东新区", "浦东福利院", intPtr(150), strPtr("公建公营"), float64Ptr(0.005)),   // ~556 m
		facility(2, "浦东新区", "张江敬老院", intPtr(80), strPtr("民建民营"), float64Ptr(0.010)),    // ~1112 m
		facility(3, "徐汇区", "徐汇养老院", intPtr(220), strPtr("公建民营"), float64Ptr(0.002)),     // ~222 m
		facility(4, "静安区", "静安护理院", intPtr(120), strPtr("民建民营"), float64Ptr(0.020)),     // ~2224 m
		facility(5, "浦东新区", "高桥养老院", intPtr(100), strPtr("公建民营"), nil),                 // no coordinates
		facility(6, "黄浦区", "黄浦老年公寓", intPtr(60), strPtr("民建民营"), float64Ptr(0.030)),    // ~3336 m
	}
}

func fixtureHealth() []model.Facility {
	return []model.Facility{
		facility(101, "浦东新区", "洋泾社区卫生服务中心", nil, nil, float64Ptr(0.008)),  // ~890 m
		facility(102, "徐汇区", "枫林社区卫生服务中心", nil, nil, float64Ptr(0.025)),    // ~2780 m
		facility(103, "静安区", "石门二路社区卫生服务中心", nil, nil, float64Ptr(0.040)), // ~4448 m
		facility(104, "黄浦区", "外滩社区卫生服务中心", nil, nil, nil),
	}
}

// memoryStore evaluates predicate sets in memory, in id order
type memoryStore struct {
	mu      sync.Mutex
	elderly []model.Facility
	health  []model.Facility
	err     error
	sets    []model.PredicateSet
}

func newMemoryStore() *memoryStore {
	return &memoryStore{elderly: fixtureElderly(), health: fixtureHealth()}
}

func (m *memoryStore) FindFacilities(ctx context.Context, set model.PredicateSet, ref *model.GeoPoint) ([]model.Facility, error) {
	m.mu.Lock()
	m.sets = append(m.sets, set)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	source := m.elderly
	if set.Domain == model.DomainHealth {
		source = m.health
	}

	var out []model.Facility
	for _, f := range source {
		if set.Matches(f) {
			f.Domain = set.Domain
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryStore) domainsQueried() map[model.Domain]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[model.Domain]bool)
	for _, s := range m.sets {
		seen[s.Domain] = true
	}
	return seen
}

// fakeCompletion is a scripted CompletionClient
type fakeCompletion struct {
	mu      sync.Mutex
	text    string
	err     error
	models  []string
	listErr error
	calls   int
	prompts []string
}

func (f *fakeCompletion) Generate(ctx context.Context, system, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.prompts = append(f.prompts, prompt)
	return f.text, f.err
}

func (f *fakeCompletion) ListModels(ctx context.Context) ([]string, error) {
	return f.models, f.listErr
}

func (f *fakeCompletion) Provider() string { return "fake" }

func (f *fakeCompletion) Model() string { return "Qwen2.5:latest" }

// ollamaStub serves /api/generate with a fixed status and model text
type ollamaStub struct {
	mu       sync.Mutex
	status   int
	response string
	requests []map[string]any
}

func (s *ollamaStub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("stub: invalid request body: %v", err)
		}
		s.mu.Lock()
		s.requests = append(s.requests, body)
		status := s.status
		s.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			http.Error(w, "model crashed", status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"model": "Qwen2.5:latest", "response": s.response, "done": true})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[{"name":"qwen2.5:latest"},{"name":"llama3:8b"}]}`))
	})
	return mux
}

func newOllamaStub(t *testing.T, status int, response string) (*ollamaStub, *httptest.Server) {
	t.Helper()
	stub := &ollamaStub{status: status, response: response}
	srv := httptest.NewServer(stub.handler(t))
	t.Cleanup(srv.Close)
	return stub, srv
}

func testCompletionConfig(baseURL string) config.CompletionConfig {
	return config.CompletionConfig{
		Provider:            config.ProviderOllama,
		BaseURL:             baseURL,
		Model:               "Qwen2.5:latest",
		Temperature:         0.1,
		Timeout:             5 * time.Second,
		ProbeTimeout:        time.Second,
		BreakerEnabled:      false,
		BreakerMinRequests:  3,
		BreakerFailureRatio: 0.5,
		BreakerOpenTimeout:  time.Minute,
	}
}

func newTestQueryService(client CompletionClient, store FacilityStore) *QueryService {
	vocab := config.DefaultVocabulary()
	parser := NewIntentParser(
		NewIntentExtractor(client, vocab, 5*time.Second),
		NewIntentNormalizer(vocab, config.UnboundedLimit),
		config.UnboundedLimit,
		nil,
	)
	return NewQueryService(store, parser, NewQueryPlanner(vocab), NewGeoRanker(), vocab, 5*time.Second, nil, nil)
}

func resultIDs(results []model.RankedFacility) []int64 {
	ids := make([]int64, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}
