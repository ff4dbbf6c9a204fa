// Package telemetry exposes Prometheus metrics for the HTTP API and the
// document store.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "asilo"

// Recorder is what domain services report to.
type Recorder interface {
	RecordLogin(success bool)
	RecordUpload(area string, bytes int64)
	RecordUploadRejected(reason string)
	RecordPatientTreeCleanup(err error)
}

// Collector is the Prometheus-backed Recorder plus HTTP instrumentation.
type Collector struct {
	requests        *prometheus.CounterVec
	latency         *prometheus.HistogramVec
	logins          *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	uploadBytes     prometheus.Counter
	uploadsRejected *prometheus.CounterVec
	cleanupFailures prometheus.Counter
}

// NewCollector registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_uploads_total",
			Help:      "Stored document uploads by area.",
		}, []string{"area"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_upload_bytes_total",
			Help:      "Bytes written to the document store.",
		}),
		uploadsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "document_uploads_rejected_total",
			Help:      "Rejected uploads by reason.",
		}, []string{"reason"}),
		cleanupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "patient_tree_cleanup_failures_total",
			Help:      "Patient folders left behind after a committed patient delete.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.logins,
		c.uploads,
		c.uploadBytes,
		c.uploadsRejected,
		c.cleanupFailures,
	)
	return c
}

func (c *Collector) RecordLogin(success bool) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.logins.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordUpload(area string, bytes int64) {
	c.uploads.WithLabelValues(area).Inc()
	c.uploadBytes.Add(float64(bytes))
}

func (c *Collector) RecordUploadRejected(reason string) {
	c.uploadsRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordPatientTreeCleanup(err error) {
	if err != nil {
		c.cleanupFailures.Inc()
	}
}

// Middleware counts requests by route template so ids do not explode
// label cardinality.
func (c *Collector) Middleware(statusOf func(error) int) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			err := next(ctx)

			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			status := ctx.Response().Status
			if err != nil && statusOf != nil {
				status = statusOf(err)
			}

			method := ctx.Request().Method
			c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			c.latency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler(gatherer prometheus.Gatherer) echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Nop discards everything. Used where metrics are not wired.
type Nop struct{}

func (Nop) RecordLogin(bool)               {}
func (Nop) RecordUpload(string, int64)     {}
func (Nop) RecordUploadRejected(string)    {}
func (Nop) RecordPatientTreeCleanup(error) {}
