// Package metrics collects and exposes Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by services, middleware and workers.
type Recorder interface {
	RecordLogin(result string)
	RecordResetRequest(outcome string)
	RecordResetRedeem(outcome string)
	RecordAccessDenied(resource, action string)
	RecordRateLimited(route string)
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	RecordResetCodesSwept(count int64)
}

// Collector is the Prometheus implementation of Recorder.
type Collector struct {
	logins       *prometheus.CounterVec
	resetRequest *prometheus.CounterVec
	resetRedeem  *prometheus.CounterVec
	accessDenied *prometheus.CounterVec
	rateLimited  *prometheus.CounterVec
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	resetsSwept  prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hocusfocus_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		resetRequest: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hocusfocus_password_reset_requests_total",
			Help: "Forgot-password requests by outcome.",
		}, []string{"outcome"}),
		resetRedeem: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hocusfocus_password_reset_redeems_total",
			Help: "Reset code redemptions by outcome.",
		}, []string{"outcome"}),
		accessDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hocusfocus_access_denied_total",
			Help: "Authorization failures by resource and action.",
		}, []string{"resource", "action"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hocusfocus_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hocusfocus_http_requests_total",
			Help: "HTTP responses by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hocusfocus_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		resetsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hocusfocus_reset_codes_swept_total",
			Help: "Expired reset codes removed by the sweeper.",
		}),
	}

	reg.MustRegister(
		c.logins,
		c.resetRequest,
		c.resetRedeem,
		c.accessDenied,
		c.rateLimited,
		c.httpRequests,
		c.httpLatency,
		c.resetsSwept,
	)

	return c
}

func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordResetRequest(outcome string) {
	c.resetRequest.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordResetRedeem(outcome string) {
	c.resetRedeem.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordAccessDenied(resource, action string) {
	c.accessDenied.WithLabelValues(resource, action).Inc()
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

// RecordHTTPRequest records one response. route is the chi route pattern,
// not the raw path, to keep label cardinality bounded.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpLatency.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordResetCodesSwept(count int64) {
	c.resetsSwept.Add(float64(count))
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop is a Recorder that discards everything.
type Nop struct{}

func (Nop) RecordLogin(string) {}
func (Nop) RecordResetRequest(string) {}
func (Nop) RecordResetRedeem(string) {}
func (Nop) RecordAccessDenied(string, string) {}
func (Nop) RecordRateLimited(string) {}
func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordResetCodesSwept(int64) {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
