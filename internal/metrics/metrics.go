// Package metrics exposes Prometheus instruments for parsing, caching and HTTP traffic.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"MQueryAPI/internal/qparser"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	parses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mquery_parses_total",
			Help: "Query strings parsed, by outcome",
		},
		[]string{"outcome"},
	)

	parseDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mquery_parse_duration_seconds",
			Help:    "Time spent compiling and expanding a query",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		},
	)

	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mquery_cache_lookups_total",
			Help: "Cache lookups, by cache and result",
		},
		[]string{"cache", "result"},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mquery_http_requests_total",
			Help: "HTTP requests served, by path and status",
		},
		[]string{"path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mquery_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)
)

// ObserveParse records one parse call. Failures are labelled with the error kind.
func ObserveParse(elapsed time.Duration, err error) {
	parseDuration.Observe(elapsed.Seconds())
	parses.WithLabelValues(outcome(err)).Inc()
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var perr *qparser.Error
	if errors.As(err, &perr) {
		return string(perr.Kind)
	}
	return "error"
}

// CacheLookup records a hit or miss for the named cache.
func CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(path string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(path).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
