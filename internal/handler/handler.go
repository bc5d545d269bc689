// Package handler exposes the query parser and the document store over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"MQueryAPI/internal/auth"
	"MQueryAPI/internal/cache"
	"MQueryAPI/internal/fragments"
	"MQueryAPI/internal/logger"
	"MQueryAPI/internal/metrics"
	"MQueryAPI/internal/qparser"
	"MQueryAPI/internal/store"
)

const maxBodyBytes = 1 << 20

// Finder runs compiled queries; *store.Store implements it.
type Finder interface {
	Find(ctx context.Context, collection string, q *qparser.Query) (*store.FindResult, error)
	Count(ctx context.Context, collection string, q *qparser.Query) (int64, error)
}

type Handler struct {
	parser    *qparser.Parser
	queries   *cache.QueryCache
	fragments fragments.Set
	store     Finder
}

// New wires a handler. queries and st may be nil: without a cache every
// request compiles, without a store find and count answer 503.
func New(parser *qparser.Parser, queries *cache.QueryCache, frags fragments.Set, st Finder) *Handler {
	return &Handler{parser: parser, queries: queries, fragments: frags, store: st}
}

// QueryRequest is the body of /api/find and /api/count.
type QueryRequest struct {
	Collection string         `json:"collection"`
	Query      string         `json:"query"`
	Filter     map[string]any `json:"filter"`
}

// buildQuery compiles params (through the query cache) and expands
// templates against the fragments and the caller's identity.
func (h *Handler) buildQuery(r *http.Request, params qparser.Params, filter map[string]any) (*qparser.Query, error) {
	start := time.Now()
	q, err := h.compile(params, filter)
	if err == nil {
		q, err = h.parser.Expand(q, h.templateContext(r))
	}
	metrics.ObserveParse(time.Since(start), err)
	return q, err
}

func (h *Handler) compile(params qparser.Params, filter map[string]any) (*qparser.Query, error) {
	compile := func() (*qparser.Query, error) { return h.parser.CompileWith(params, filter) }
	if h.queries == nil {
		return compile()
	}

	key, err := cache.NewQueryKey(params, filter)
	if err != nil {
		logger.Warn("query_key_failed", map[string]any{"error": err.Error()})
		return compile()
	}
	q, hit, err := h.queries.GetOrCompile(key, compile)
	metrics.CacheLookup("query", hit)
	if hit {
		logger.Debug("query_cache_hit", map[string]any{"key": key.String()})
	}
	return q, err
}

func (h *Handler) templateContext(r *http.Request) map[string]any {
	extra := map[string]any{}
	if sub, ok := auth.Subject(r.Context()); ok {
		extra["currentUser"] = sub
	}
	return h.fragments.Context(extra)
}

func (h *Handler) decodeQueryRequest(w http.ResponseWriter, r *http.Request, endpoint string) (*QueryRequest, bool) {
	if h.store == nil {
		http.Error(w, "document store unavailable", http.StatusServiceUnavailable)
		return nil, false
	}
	if r.Method != http.MethodPost {
		logger.Warn("method_not_allowed", map[string]any{
			"endpoint": endpoint,
			"method":   r.Method,
		})
		http.Error(w, "Only POST allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("read_body_failed", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		http.Error(w, "Failed to read body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	var req QueryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Warn("invalid_json", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		http.Error(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if req.Collection == "" {
		http.Error(w, "collection is required", http.StatusBadRequest)
		return nil, false
	}

	logger.Info("request", map[string]any{
		"endpoint": endpoint,
		"payload":  json.RawMessage(body),
	})
	return &req, true
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// writeError maps parse and filter translation failures to 400 and
// everything else to 500.
func writeError(w http.ResponseWriter, endpoint string, err error) {
	body := errorBody{Error: err.Error()}
	status := http.StatusInternalServerError

	var perr *qparser.Error
	switch {
	case errors.As(err, &perr):
		status = http.StatusBadRequest
		body.Kind = string(perr.Kind)
	case errors.Is(err, store.ErrUnsupportedOperator):
		status = http.StatusBadRequest
		body.Kind = "unsupported_operator"
	case errors.Is(err, store.ErrInvalidFilter):
		status = http.StatusBadRequest
		body.Kind = "invalid_filter"
	}

	fields := map[string]any{"endpoint": endpoint, "error": err.Error()}
	if status >= 500 {
		logger.Error("request_failed", fields)
	} else {
		logger.Warn("parse_failed", fields)
	}
	writeJSON(w, endpoint, status, body)
}

func writeJSON(w http.ResponseWriter, endpoint string, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write_response_failed", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
	}
}
