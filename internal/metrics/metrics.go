package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pakmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pakmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Map-specific metrics
	Searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pakmap",
		Subsystem: "search",
		Name:      "queries_total",
		Help:      "Search queries by outcome (inactive, results, empty)",
	}, []string{"outcome"})

	Selections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pakmap",
		Subsystem: "search",
		Name:      "selections_total",
		Help:      "Search results selected",
	})

	Geolocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pakmap",
		Subsystem: "geolocation",
		Name:      "requests_total",
		Help:      "Geolocation requests by outcome (ok, failed, unsupported)",
	}, []string{"outcome"})

	WMSFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pakmap",
		Subsystem: "wms",
		Name:      "fetches_total",
		Help:      "Proxied WMS tile fetches by layer and upstream status",
	}, []string{"layer", "status"})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pakmap",
		Subsystem: "ui",
		Name:      "active_streams",
		Help:      "Current number of open UI event streams",
	})
)

// UnmatchedPath labels requests no route matched.
const UnmatchedPath = "unmatched"

// pathLabel returns the route pattern that served r, so tile coordinates and
// IDs never become label values. It relies on ServeMux setting r.Pattern.
func pathLabel(r *http.Request) string {
	if r.Pattern == "" {
		return UnmatchedPath
	}
	if _, path, ok := strings.Cut(r.Pattern, " "); ok {
		return path
	}
	return r.Pattern
}

// Observe records one finished request.
func Observe(r *http.Request, status int, d time.Duration) {
	path := pathLabel(r)
	httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(r.Method, path).Observe(d.Seconds())
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
