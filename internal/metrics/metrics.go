package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	authRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pizzabox_auth_requests_total",
		Help: "Authentication operations by outcome",
	}, []string{"operation", "outcome"})
	authDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pizzabox_auth_duration_seconds",
		Help:    "Time spent on each authentication operation",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	}, []string{"operation"})
)

// Observe records one execution of operation, started at start.
func Observe(operation, outcome string, start time.Time) {
	authRequests.With(prometheus.Labels{"operation": operation, "outcome": outcome}).Inc()
	authDuration.With(prometheus.Labels{"operation": operation}).Observe(time.Since(start).Seconds())
}

// Count returns the current value of the request counter, used by tests.
func Count(operation, outcome string) float64 {
	c, err := authRequests.GetMetricWith(prometheus.Labels{"operation": operation, "outcome": outcome})
	if err != nil {
		return 0
	}
	return testutil.ToFloat64(c)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
