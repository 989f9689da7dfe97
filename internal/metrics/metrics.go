// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"leadhunt-engine/internal/domain"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadhunt_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadhunt_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	leadsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadhunt_leads_added_total",
			Help: "Leads inserted by discovery, by email source",
		},
		[]string{"source"},
	)

	emailsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadhunt_emails_sent_total",
			Help: "Outreach emails delivered",
		},
	)

	scoringFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadhunt_scoring_fallbacks_total",
			Help: "Leads that received the neutral score after a scorer failure",
		},
	)

	collaboratorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadhunt_collaborator_errors_total",
			Help: "Failures of external services",
		},
		[]string{"service"},
	)

	leadsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leadhunt_leads",
			Help: "Leads currently in the store, by status",
		},
		[]string{"status"},
	)
)

// HTTP records request counts and latency keyed by chi route pattern.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Discovery records one finished pass: leads added per email source
// and lookups that failed upstream.
func Discovery(added map[string]int, errs int) {
	for src, n := range added {
		leadsAdded.WithLabelValues(src).Add(float64(n))
	}
	if errs > 0 {
		collaboratorErrors.WithLabelValues("github").Add(float64(errs))
	}
}

func EmailSent() { emailsSent.Inc() }

func ScoringFallbacks(n int) { scoringFallbacks.Add(float64(n)) }

func CollaboratorError(service string) { collaboratorErrors.WithLabelValues(service).Inc() }

// ObserveStatuses refreshes the per-status gauge from a full listing.
func ObserveStatuses(leads []domain.Lead) {
	counts := make(map[domain.Status]int, len(domain.Statuses))
	for _, l := range leads {
		counts[l.Status]++
	}
	for _, s := range domain.Statuses {
		leadsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}
