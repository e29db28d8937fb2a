package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recruitcore.io/internal/ids"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by key family and result (hit, miss, error, unavailable).",
		},
		[]string{"family", "result"},
	)

	cacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Cache key invalidations by result (ok, deferred, retried).",
		},
		[]string{"result"},
	)

	cacheInvalidationsPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_invalidations_pending",
		Help: "Keys whose invalidation failed and awaits retry.",
	})

	cacheBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_breaker_state",
			Help: "Circuit breaker state for the cache backend (0 closed, 1 half-open, 2 open).",
		},
		[]string{"name"},
	)

	authDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_decisions_total",
			Help: "Authorization gate outcomes by reason.",
		},
		[]string{"outcome", "reason"},
	)

	readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the readiness probe last succeeded.",
	})
)

// Init registers every collector in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		cacheRequestsTotal, cacheInvalidationsTotal, cacheInvalidationsPending, cacheBreakerState,
		authDecisionsTotal, readyGauge,
	)
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// CacheLookup counts a cache lookup for the given key family.
func CacheLookup(family, result string) {
	cacheRequestsTotal.WithLabelValues(family, result).Inc()
}

// CacheInvalidation counts invalidated keys by result.
func CacheInvalidation(result string, n int) {
	if n <= 0 {
		return
	}
	cacheInvalidationsTotal.WithLabelValues(result).Add(float64(n))
}

// SetPendingInvalidations reports the retry queue depth.
func SetPendingInvalidations(n int) {
	cacheInvalidationsPending.Set(float64(n))
}

// SetBreakerState records the numeric state of a named breaker.
func SetBreakerState(name string, state int) {
	cacheBreakerState.WithLabelValues(name).Set(float64(state))
}

// AuthDecision counts gate outcomes ("allowed", "unauthenticated", "forbidden").
func AuthDecision(outcome, reason string) {
	authDecisionsTotal.WithLabelValues(outcome, reason).Inc()
}

func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

// Instrument records RPS, latency and in-flight requests.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath replaces identifier segments with ":id" to keep label cardinality bounded.
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if ids.Valid(seg) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
