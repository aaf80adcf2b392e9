package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btr",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "btr",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	TasksSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btr",
			Name:      "tasks_submitted_total",
			Help:      "Tasks accepted by the manager.",
		},
		[]string{"kind"},
	)

	TasksFinishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btr",
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a terminal state.",
		},
		[]string{"kind", "status"},
	)

	GrabAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btr",
			Name:      "grab_attempts_total",
			Help:      "Purchase attempts by outcome.",
		},
		[]string{"outcome"},
	)

	AttemptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "btr",
			Name:      "attempt_duration_seconds",
			Help:      "Duration of one purchase attempt.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	NotifySendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "btr",
			Name:      "notify_sends_total",
			Help:      "Notification dispatches by aggregate outcome.",
		},
		[]string{"outcome"},
	)
)

func RegisterMetrics() {
	// MustRegister is safe to call once; if tests call multiple times, use Register and ignore errors.
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		TasksSubmittedTotal,
		TasksFinishedTotal,
		GrabAttemptsTotal,
		AttemptDuration,
		NotifySendsTotal,
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware records basic HTTP request metrics.
func HTTPMetricsMiddleware(routeName func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: 200}
			next.ServeHTTP(rec, r)

			route := routeName(r)
			method := r.Method
			status := strconv.Itoa(rec.status)

			HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
			HTTPRequestDuration.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		})
	}
}
