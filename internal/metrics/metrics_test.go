package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestMetrics_Exposition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()

	router := gin.New()
	router.Use(m.Middleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	m.RecordQuery(OutcomeFallback, 120*time.Millisecond)
	m.RecordFallback("upstream_error")
	m.RecordCompletion("ollama", "error", time.Second)
	m.RecordResults("elderly", 3)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	text := string(body)

	for _, want := range []string{
		`carefinder_http_requests_total{method="GET",path="/health",status="200"} 1`,
		`carefinder_nlq_queries_total{outcome="fallback"} 1`,
		`carefinder_nlq_fallbacks_total{kind="upstream_error"} 1`,
		`carefinder_completion_requests_total{provider="ollama",status="error"} 1`,
		`carefinder_nlq_results_count{domain="elderly"} 1`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	m.RecordQuery(OutcomeSuccess, time.Millisecond)
	m.RecordFallback("")
	m.RecordCompletion("openai", "ok", time.Millisecond)
	m.RecordResults("health", 0)
}
