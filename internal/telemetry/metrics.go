package telemetry

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	httpDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	SSEClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sse_clients",
		Help: "Number of currently connected SSE clients",
	})

	PreferenceWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "preference_writes_total",
			Help: "Preference writes committed to the store",
		},
		[]string{"key"},
	)
	GrantRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grant_requests_total",
			Help: "Capability grant requests by feature and outcome",
		},
		[]string{"feature", "outcome"},
	)
	PendingGrants = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "grant_requests_pending",
		Help: "Capability grant requests awaiting a result",
	})
	HealthWarnings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "feature_health_warning",
			Help: "1 when a checked feature is missing a required capability",
		},
		[]string{"feature"},
	)
	ReceiverRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "receiver_running",
		Help: "1 when the background message receiver is enabled",
	})

	initOnce sync.Once
)

// Init registers all collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpReqs, httpDur, SSEClients, PreferenceWrites,
			GrantRequests, PendingGrants, HealthWarnings, ReceiverRunning)
	})
}

// BoolGauge converts a flag to a gauge value.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// get route pattern if available
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}

		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(ww, r)

		httpReqs.WithLabelValues(route, r.Method, http.StatusText(ww.status)).Inc()
		httpDur.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
