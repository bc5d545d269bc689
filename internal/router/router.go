// Package router registers the HTTP endpoints and their middleware chain.
package router

import (
	"net/http"
	"time"

	"MQueryAPI/internal/auth"
	"MQueryAPI/internal/config"
	"MQueryAPI/internal/handler"
	"MQueryAPI/internal/logger"
	"MQueryAPI/internal/metrics"
)

// InitRoutes registers the API on mux. With auth enabled the query
// endpoints require a bearer token; /metrics stays open.
func InitRoutes(mux *http.ServeMux, cfg *config.Config, h *handler.Handler) error {
	var validator *auth.JWTValidator
	if cfg.Auth.Enabled {
		v, err := auth.NewJWTValidator(cfg.Auth.JWT)
		if err != nil {
			return err
		}
		validator = v
		logger.Info("auth_enabled", map[string]any{"type": cfg.Auth.JWT.ValidationType})
	}

	wrap := func(path string, next http.HandlerFunc) http.HandlerFunc {
		return withCORS(cfg.CORS.AllowOrigin, cfg.CORS.AllowCredentials,
			withRequestID(withLogging(path, auth.Middleware(validator, next))))
	}

	mux.HandleFunc("/api/parse", wrap("/api/parse", h.ParseHandler))
	mux.HandleFunc("/api/find", wrap("/api/find", h.FindHandler))
	mux.HandleFunc("/api/count", wrap("/api/count", h.CountHandler))
	mux.Handle("/metrics", metrics.Handler())
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withLogging(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		elapsed := time.Since(start)
		metrics.ObserveRequest(path, sw.status, elapsed)

		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.status,
			"duration_ms": elapsed.Milliseconds(),
			"request_id":  w.Header().Get(requestIDHeader),
		}
		switch {
		case sw.status >= 500:
			logger.Error("response", fields)
		case sw.status >= 400:
			logger.Warn("response", fields)
		default:
			logger.Info("response", fields)
		}
	}
}
