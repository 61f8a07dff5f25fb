package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"carefinder/internal/logger"
	"carefinder/internal/model"
	"carefinder/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DefaultExamples are the sample queries served by /api/nlq/examples
var DefaultExamples = []string{
	"浦东新区有哪些养老院",
	"找床位超过200张的养老机构",
	"附近3公里内的社区卫生服务中心",
	"静安区公办的敬老院",
	"徐汇区的护理院",
	"嘉定区民办养老院床位100张以上",
	"找离我最近的5家养老院",
	"虹口区有几个社区医院",
}

// Querier answers natural-language queries
type Querier interface {
	Query(ctx context.Context, req model.QueryRequest) *model.QueryResponse
	QueryStream(ctx context.Context, req model.QueryRequest, callback service.QueryEventCallback) (*model.QueryResponse, error)
}

// StatusProber reports completion-service availability
type StatusProber interface {
	Probe(ctx context.Context) model.StatusResponse
}

// QueryHandler handles natural-language query HTTP requests
type QueryHandler struct {
	querier  Querier
	status   StatusProber
	examples []string
	logger   *zap.Logger
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(querier Querier, status StatusProber, examples []string, logger *zap.Logger) *QueryHandler {
	if examples == nil {
		examples = DefaultExamples
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{
		querier:  querier,
		status:   status,
		examples: examples,
		logger:   logger,
	}
}

func bindQuery(c *gin.Context) (model.QueryRequest, bool) {
	var req model.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: query must not be empty"})
		return req, false
	}
	return req, true
}

// Query handles POST /api/nlq/query
func (h *QueryHandler) Query(c *gin.Context) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	// Failures are reported inside the body
	c.JSON(http.StatusOK, h.querier.Query(c.Request.Context(), req))
}

// QueryStream handles POST /api/nlq/query/stream - SSE streaming query
func (h *QueryHandler) QueryStream(c *gin.Context) {
	req, ok := bindQuery(c)
	if !ok {
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream; charset=utf-8")
	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	_, err := h.querier.QueryStream(ctx, req, func(event string, data any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := sendSSE(c, event, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	if err != nil {
		logger.FromContext(ctx, h.logger).Warn("query stream aborted", zap.Error(err))
		if ctx.Err() == nil {
			_ = sendSSE(c, "error", map[string]any{"error": err.Error()})
			flusher.Flush()
		}
	}
}

// sendSSE writes one Server-Sent Event
func sendSSE(c *gin.Context, event string, data any) error {
	payload := []byte("{}")
	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			_, werr := fmt.Fprintf(c.Writer, "event: error\ndata: {\"error\": \"JSON marshal failed\"}\n\n")
			if werr != nil {
				return werr
			}
			return fmt.Errorf("failed to marshal %s event: %w", event, err)
		}
		payload = jsonData
	}
	_, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

// Status handles GET /api/nlq/status
func (h *QueryHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Probe(c.Request.Context()))
}

// Examples handles GET /api/nlq/examples
func (h *QueryHandler) Examples(c *gin.Context) {
	c.JSON(http.StatusOK, model.ExamplesResponse{Examples: h.examples})
}
