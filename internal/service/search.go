package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carefinder/internal/config"
	"carefinder/internal/logger"
	"carefinder/internal/metrics"
	"carefinder/internal/model"
)

// ErrorKindStore marks responses whose store query failed
const ErrorKindStore = "store_error"

// FacilityStore evaluates a predicate set against one facility collection.
// ref is a hint the store may use to narrow nearest-N candidates.
type FacilityStore interface {
	FindFacilities(ctx context.Context, set model.PredicateSet, ref *model.GeoPoint) ([]model.Facility, error)
}

// QueryEventCallback is called for streaming query events
type QueryEventCallback func(event string, data any) error

// QueryService runs the full natural-language query pipeline
type QueryService struct {
	store        FacilityStore
	intent       *IntentParser
	planner      *QueryPlanner
	ranker       *GeoRanker
	vocab        *config.Vocabulary
	storeTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// NewQueryService creates a new query service
func NewQueryService(
	store FacilityStore,
	intentParser *IntentParser,
	planner *QueryPlanner,
	ranker *GeoRanker,
	vocab *config.Vocabulary,
	storeTimeout time.Duration,
	m *metrics.Metrics,
	logger *zap.Logger,
) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		store:        store,
		intent:       intentParser,
		planner:      planner,
		ranker:       ranker,
		vocab:        vocab,
		storeTimeout: storeTimeout,
		metrics:      m,
		logger:       logger,
	}
}

// Query answers req. Failures are reported inside the response, never as an error.
func (s *QueryService) Query(ctx context.Context, req model.QueryRequest) *model.QueryResponse {
	resp, _ := s.run(ctx, req, nil)
	return resp
}

// QueryStream answers req while emitting start, intent, results and done events.
// The only error returned is the one produced by callback, which aborts the run.
func (s *QueryService) QueryStream(ctx context.Context, req model.QueryRequest, callback QueryEventCallback) (*model.QueryResponse, error) {
	return s.run(ctx, req, callback)
}

func (s *QueryService) run(ctx context.Context, req model.QueryRequest, callback QueryEventCallback) (*model.QueryResponse, error) {
	startTime := time.Now()
	log := logger.FromContext(ctx, s.logger)
	emit := func(event string, data any) error {
		if callback == nil {
			return nil
		}
		return callback(event, data)
	}

	query := strings.TrimSpace(req.Query)
	if err := emit("start", map[string]any{"query": query}); err != nil {
		return nil, err
	}

	ref, hasRef := req.ReferencePoint()
	if !hasRef && (req.UserLng != nil || req.UserLat != nil) {
		log.Warn("ignoring incomplete or out-of-range reference point",
			zap.Any("user_lng", req.UserLng),
			zap.Any("user_lat", req.UserLat),
		)
	}

	parsed := s.intent.Parse(ctx, query)
	intent := parsed.Intent

	resp := &model.QueryResponse{
		Success:        true,
		OriginalQuery:  req.Query,
		ParsedQuery:    &intent,
		Interpretation: Explain(intent, s.vocab),
		ElderlyResults: []model.RankedFacility{},
		HealthResults:  []model.RankedFacility{},
	}
	if parsed.Fallback {
		resp.Success = false
		resp.Fallback = true
		resp.ErrorKind = string(parsed.Err.Kind)
		resp.Error = fmt.Sprintf("%s: %v", parsed.Err.Kind.Message(), parsed.Err)
		s.metrics.RecordFallback(resp.ErrorKind)
	}

	if err := emit("intent", map[string]any{
		"parsed_query":   resp.ParsedQuery,
		"interpretation": resp.Interpretation,
		"fallback":       resp.Fallback,
	}); err != nil {
		return nil, err
	}

	elderly, health, err := s.execute(ctx, intent, ref)
	if err != nil {
		log.Error("facility query failed", zap.Error(err))
		resp.Success = false
		resp.ErrorKind = ErrorKindStore
		resp.Error = fmt.Sprintf("数据查询失败: %v", err)
	} else {
		resp.ElderlyResults = elderly
		resp.HealthResults = health
	}
	resp.TotalCount = len(resp.ElderlyResults) + len(resp.HealthResults)
	resp.Took = time.Since(startTime).Milliseconds()

	s.record(resp, time.Since(startTime))
	log.Info("nlq query",
		zap.String("query", query),
		zap.Bool("success", resp.Success),
		zap.Bool("fallback", resp.Fallback),
		zap.Int("elderly", len(resp.ElderlyResults)),
		zap.Int("health", len(resp.HealthResults)),
		zap.Int64("took_ms", resp.Took),
	)

	if err := emit("results", resp); err != nil {
		return nil, err
	}
	if err := emit("done", map[string]any{"took_ms": resp.Took}); err != nil {
		return nil, err
	}
	return resp, nil
}

// execute queries every domain the intent covers concurrently under one store deadline
func (s *QueryService) execute(ctx context.Context, intent model.ParsedIntent, ref *model.GeoPoint) ([]model.RankedFacility, []model.RankedFacility, error) {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	elderly := []model.RankedFacility{}
	health := []model.RankedFacility{}

	g, gctx := errgroup.WithContext(ctx)
	for _, domain := range intent.ResourceKind.Domains() {
		set := s.planner.Plan(intent, domain)
		target := &elderly
		if domain == model.DomainHealth {
			target = &health
		}

		g.Go(func() error {
			candidates, err := s.store.FindFacilities(gctx, set, ref)
			if err != nil {
				return fmt.Errorf("query %s facilities: %w", set.Domain, err)
			}
			*target = s.ranker.Rank(candidates, ref, set.RadiusMeters, set.Limit)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return elderly, health, nil
}

func (s *QueryService) record(resp *model.QueryResponse, took time.Duration) {
	outcome := metrics.OutcomeSuccess
	switch {
	case resp.ErrorKind == ErrorKindStore:
		outcome = metrics.OutcomeStoreError
	case resp.Fallback:
		outcome = metrics.OutcomeFallback
	}
	s.metrics.RecordQuery(outcome, took)
	s.metrics.RecordResults(string(model.DomainElderly), len(resp.ElderlyResults))
	s.metrics.RecordResults(string(model.DomainHealth), len(resp.HealthResults))
}
