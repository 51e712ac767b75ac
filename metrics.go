package main

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	versionGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "leaseqa_build_info",
		Help: "A gauge with version and git commit information",
	}, []string{"version", "git_commit", "hostname"})

	backendCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leaseqa_backend",
			Name:      "call_duration_seconds",
			Help:      "Histogram of the time it takes to call the LeaseQA backend API.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "outcome"},
	)

	activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "leaseqa",
		Name:      "browser_sessions",
		Help:      "Number of browser sessions currently held in memory.",
	})

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "leaseqa",
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of response latency (seconds) for HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "code"},
	)
)

func init() {
	prometheus.MustRegister(backendCallDuration)
	prometheus.MustRegister(activeSessions)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(versionGauge)
}

// idSegment matches path segments that carry record IDs: numbers, Mongo
// ObjectIDs, and UUIDs.
var idSegment = regexp.MustCompile(`^(?:[0-9]+|[0-9a-fA-F]{24}|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// metricPath keeps label cardinality bounded. The mux records the matched
// pattern on the request; unmatched paths have their ID segments replaced.
func metricPath(r *http.Request) string {
	if r.Pattern != "" {
		pattern := r.Pattern
		if i := strings.IndexByte(pattern, ' '); i >= 0 {
			pattern = pattern[i+1:]
		}
		return pattern
	}

	segments := strings.Split(r.URL.Path, "/")
	for i, s := range segments {
		if idSegment.MatchString(s) {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func HistogramHttpHandler(next http.Handler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a ResponseWriter that captures the status code
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		httpRequestDuration.WithLabelValues(metricPath(r), r.Method, strconv.Itoa(rw.statusCode)).Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}
