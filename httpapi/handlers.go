package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/agentcache/gateway/fingerprint"
	"github.com/agentcache/gateway/gwerrors"
	"github.com/agentcache/gateway/tiercache"
)

func (s *Server) handleLLMGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(s.cfg))
	defer cancel()

	ac, err := s.gate(ctx, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var req llmGetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Provider == "" || req.Model == "" || len(req.Messages) == 0 {
		writeError(w, gwerrors.New(gwerrors.KindInvalidInput, "llm get requires provider, model, and at least one message"))
		return
	}

	in := tiercache.GetInput{
		Kind:      fingerprint.KindLLM,
		Namespace: ac.namespace,
		LLM: &fingerprint.LLMInputs{
			Provider: req.Provider, Model: req.Model,
			Messages: req.Messages, Temperature: req.Temperature,
		},
		L3Enabled:           req.L3Enabled,
		SimilarityThreshold: req.SimilarityThreshold,
	}
	s.respondGet(w, ctx, ac, in)
}

func (s *Server) handleLLMSet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(s.cfg))
	defer cancel()

	ac, err := s.gate(ctx, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var req llmSetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Provider == "" || req.Model == "" || len(req.Messages) == 0 {
		writeError(w, gwerrors.New(gwerrors.KindInvalidInput, "llm set requires provider, model, and at least one message"))
		return
	}

	in := tiercache.SetInput{
		Kind:      fingerprint.KindLLM,
		Namespace: ac.namespace,
		LLM: &fingerprint.LLMInputs{
			Provider: req.Provider, Model: req.Model,
			Messages: req.Messages, Temperature: req.Temperature,
		},
		Payload:   req.Response,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
		Tags:      req.Tags,
		L3Enabled: req.L3Enabled,
		KeyDigest: keyDigestFor(ac),
	}
	s.respondSet(w, ctx, ac, in)
}

func (s *Server) handleToolGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(s.cfg))
	defer cancel()

	ac, err := s.gate(ctx, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var req toolGetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ToolName == "" || req.Parameters == nil {
		writeError(w, gwerrors.New(gwerrors.KindInvalidInput, "tool get requires tool_name and parameters"))
		return
	}

	in := tiercache.GetInput{
		Kind:      fingerprint.KindTool,
		Namespace: ac.namespace,
		Tool: &fingerprint.ToolInputs{
			ToolName: req.ToolName, Parameters: req.Parameters, Version: req.Version,
		},
	}
	s.respondGet(w, ctx, ac, in)
}

func (s *Server) handleToolSet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(s.cfg))
	defer cancel()

	ac, err := s.gate(ctx, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var req toolSetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ToolName == "" || req.Parameters == nil || req.Result == nil {
		writeError(w, gwerrors.New(gwerrors.KindInvalidInput, "tool set requires tool_name, parameters, and result"))
		return
	}

	payload, err := marshalResult(req.Result)
	if err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.KindInvalidInput, err, "result must be JSON-serializable"))
		return
	}

	in := tiercache.SetInput{
		Kind:      fingerprint.KindTool,
		Namespace: ac.namespace,
		Tool: &fingerprint.ToolInputs{
			ToolName: req.ToolName, Parameters: req.Parameters, Version: req.Version,
		},
		Payload:   payload,
		TTL:       time.Duration(req.TTLSeconds) * time.Second,
		Tags:      req.Tags,
		KeyDigest: keyDigestFor(ac),
	}
	s.respondSet(w, ctx, ac, in)
}

func (s *Server) handleDBGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(s.cfg))
	defer cancel()

	ac, err := s.gate(ctx, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dbGetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DBName == "" || req.Query == "" {
		writeError(w, gwerrors.New(gwerrors.KindInvalidInput, "db get requires db_name and query"))
		return
	}

	in := tiercache.GetInput{
		Kind:      fingerprint.KindDB,
		Namespace: ac.namespace,
		DBName:    req.DBName,
		DB: &fingerprint.DBInputs{
			Query: req.Query, Params: req.Params, SchemaVersion: req.SchemaVersion,
		},
	}
	s.respondGet(w, ctx, ac, in)
}

func (s *Server) handleDBSet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(s.cfg))
	defer cancel()

	ac, err := s.gate(ctx, r, true)
	if err != nil {
		writeError(w, err)
		return
	}

	var req dbSetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.DBName == "" || req.Query == "" || req.Rows == nil {
		writeError(w, gwerrors.New(gwerrors.KindInvalidInput, "db set requires db_name, query, and rows"))
		return
	}

	payload, err := marshalResult(req.Rows)
	if err != nil {
		writeError(w, gwerrors.Wrap(gwerrors.KindInvalidInput, err, "rows must be JSON-serializable"))
		return
	}

	in := tiercache.SetInput{
		Kind:      fingerprint.KindDB,
		Namespace: ac.namespace,
		DBName:    req.DBName,
		DB: &fingerprint.DBInputs{
			Query: req.Query, Params: req.Params, SchemaVersion: req.SchemaVersion,
		},
		Payload:       payload,
		TTL:           time.Duration(req.TTLSeconds) * time.Second,
		Tags:          req.Tags,
		SchemaVersion: req.SchemaVersion,
		RowCount:      rowCount(req.Rows),
		SourceURL:     req.SourceURL,
		KeyDigest:     keyDigestFor(ac),
	}
	s.respondSet(w, ctx, ac, in)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(s.cfg))
	defer cancel()

	ac, err := s.gate(ctx, r, false)
	if err != nil {
		writeError(w, err)
		return
	}

	var req invalidateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.invalidator.Invalidate(ctx, invalidateRequestFrom(req, ac.namespace))
	if err != nil {
		writeError(w, err)
		return
	}
	s.trackInvalidations(result.InvalidatedCount)

	writeJSON(w, http.StatusOK, invalidateResponseBody{
		InvalidatedCount: result.InvalidatedCount,
		ScopeDescriptor:  result.ScopeDescriptor,
		ElapsedMs:        result.ElapsedMs,
	})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout(s.cfg))
	defer cancel()

	if _, err := s.gate(ctx, r, false); err != nil {
		writeError(w, err)
		return
	}

	days := parsePeriod(r.URL.Query().Get("period"))
	summary, err := s.aggregator.Query(ctx, days)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analyticsResponseBody{
		Period:            summary.Period,
		TierHits:          summary.TierHits,
		KindHits:          summary.KindHits,
		Misses:            summary.Misses,
		Invalidations:     summary.Invalidations,
		HitRate:           summary.HitRate,
		WeightedLatencyMs: summary.WeightedLatencyMs,
		CostSavedUSD:      summary.CostSavedUSD,
	})
}

// respondGet runs a tier-engine GET, accrues quota on success, and writes
// the cache-get response shape.
func (s *Server) respondGet(w http.ResponseWriter, ctx context.Context, ac authContext, in tiercache.GetInput) {
	start := time.Now()
	res, err := s.engine.Get(ctx, in)
	latencyMs := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.trackRequest(string(in.Kind), "get", "error", latencyMs)
		writeError(w, err)
		return
	}
	s.accrue(ctx, ac)
	s.trackRequest(string(in.Kind), "get", "ok", latencyMs)
	if res.Hit {
		s.trackHit(string(res.Tier))
	} else {
		s.trackMiss()
	}

	writeJSON(w, http.StatusOK, cacheGetResponse{
		Hit: res.Hit, Tier: string(res.Tier), Payload: res.Payload,
		Similarity: res.Similarity, CacheKeyFragment: res.CacheKeyFragment,
		LatencyMs: time.Since(start).Milliseconds(),
	})
}

// respondSet runs a tier-engine SET, accrues quota on success, and writes
// the cache-set response shape.
func (s *Server) respondSet(w http.ResponseWriter, ctx context.Context, ac authContext, in tiercache.SetInput) {
	start := time.Now()
	res, err := s.engine.Set(ctx, in)
	latencyMs := float64(time.Since(start).Milliseconds())
	if err != nil {
		s.trackRequest(string(in.Kind), "set", "error", latencyMs)
		writeError(w, err)
		return
	}
	s.accrue(ctx, ac)
	s.trackRequest(string(in.Kind), "set", "ok", latencyMs)

	writeJSON(w, http.StatusCreated, cacheSetResponse{
		CacheKeyFragment: fragment(res.Key),
		TTLSeconds:       int64(res.TTL.Seconds()),
		LatencyMs:        time.Since(start).Milliseconds(),
	})
}
