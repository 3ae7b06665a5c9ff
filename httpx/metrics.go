package httpx

import (
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Registry holds the front end's collectors, served on /metrics.
	Registry = prometheus.NewRegistry()

	upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "surveyer",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Requests sent to the survey API.",
		},
		[]string{"method", "route", "status"},
	)

	upstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "surveyer",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests sent to the survey API.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	forcedLogouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "surveyer",
			Subsystem: "session",
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared after an identity endpoint answered 401.",
		},
	)
)

func init() {
	Registry.MustRegister(upstreamRequests, upstreamDuration, forcedLogouts)
}

var (
	reNumericSegment = regexp.MustCompile(`/\d+(/|$)`)
	reQuery          = regexp.MustCompile(`\?.*$`)
)

// routeOf folds ids and query strings so label cardinality stays bounded.
func routeOf(path string) string {
	path = reQuery.ReplaceAllString(path, "")
	for reNumericSegment.MatchString(path) {
		path = reNumericSegment.ReplaceAllString(path, "/{id}$1")
	}
	return path
}

func observe(method, path string, status int, start time.Time) {
	route := routeOf(path)
	upstreamRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	upstreamDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}
