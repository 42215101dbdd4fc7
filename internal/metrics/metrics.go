// Package metrics exposes prometheus collectors for claim outcomes and the
// HTTP surface.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// outcomesTotal counts outcomes by operation and failure kind ("" on success).
	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claimbox_outcomes_total",
			Help: "Claim operation outcomes.",
		},
		[]string{"op", "ok", "kind"},
	)

	cancelAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "claimbox_cancel_attempts",
			Help:    "Cancel calls issued per claim.",
			Buckets: []float64{1, 2, 3, 4},
		},
	)

	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "claimbox_http_requests_total",
			Help: "HTTP requests by route and status.",
		},
		[]string{"method", "route", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "claimbox_http_request_duration_seconds",
			Help:    "HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(outcomesTotal, cancelAttempts, httpReqs, httpLat)
}

// Reporter counts every outcome it sees.
type Reporter struct{}

func (Reporter) Report(_ context.Context, o outcome.Outcome) error {
	outcomesTotal.WithLabelValues(string(o.Op), strconv.FormatBool(o.OK), string(o.Kind)).Inc()
	if o.Op == outcome.OpCancel && o.Attempts > 0 {
		cancelAttempts.Observe(float64(o.Attempts))
	}
	return nil
}

// HTTP instruments a chi router. The route label is the matched pattern, so
// claim ids in paths never become label values.
func HTTP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpReqs.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpLat.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
