package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otakudesc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "otakudesc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "otakudesc",
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being served",
		},
	)

	// Registration workflow metrics
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otakudesc",
			Subsystem: "auth",
			Name:      "registrations_total",
			Help:      "Total number of account registrations",
		},
		[]string{"flow"}, // anonymous, magic_link, password
	)

	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otakudesc",
			Subsystem: "auth",
			Name:      "email_verifications_total",
			Help:      "Total number of email verification attempts",
		},
		[]string{"result"}, // verified, not_found, expired
	)

	emailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otakudesc",
			Subsystem: "mail",
			Name:      "emails_sent_total",
			Help:      "Total number of transactional email handoffs",
		},
		[]string{"kind", "status"}, // kind: login, verification, reset; status: sent, failed
	)

	// Payment metrics
	capturesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "otakudesc",
			Subsystem: "payment",
			Name:      "captures_total",
			Help:      "Total number of payment capture attempts",
		},
		[]string{"result"}, // completed, replayed, failed
	)

	premiumGrantsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "otakudesc",
			Subsystem: "payment",
			Name:      "premium_grants_total",
			Help:      "Total number of premium grants applied",
		},
	)
)

// RecordRegistration increments the registration counter for a signup flow
func RecordRegistration(flow string) {
	registrationsTotal.WithLabelValues(flow).Inc()
}

// RecordVerification increments the email verification counter
func RecordVerification(result string) {
	verificationsTotal.WithLabelValues(result).Inc()
}

// RecordEmailSent increments the email handoff counter
func RecordEmailSent(kind string, ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	emailsSentTotal.WithLabelValues(kind, status).Inc()
}

// RecordCapture increments the payment capture counter
func RecordCapture(result string) {
	capturesTotal.WithLabelValues(result).Inc()
}

// RecordPremiumGrant increments the premium grant counter
func RecordPremiumGrant() {
	premiumGrantsTotal.Inc()
}

// Handler returns the Prometheus metrics endpoint handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware instruments HTTP requests with count, duration and in-flight gauges
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		// Use the chi route pattern to keep label cardinality bounded
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}

		status := strconv.Itoa(sw.status)
		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
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
