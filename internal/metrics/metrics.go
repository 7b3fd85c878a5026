// Package metrics exposes Prometheus counters for authentication and gate decisions.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Auth method labels.
const (
	MethodLocal     = "local"
	MethodRegister  = "register"
	MethodFederated = "federated"
	MethodReset     = "password_reset"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder is what the auth service and HTTP layer report to.
type Recorder interface {
	RecordAuthAttempt(method, outcome string)
	RecordGateRejection(reason string)
	RecordNotificationFailure(kind string)
	RecordRateLimited(route string)
	RecordRequest(method, route string, status int, duration time.Duration)
}

type Collector struct {
	authAttempts         *prometheus.CounterVec
	gateRejections       *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec
	rateLimited          *prometheus.CounterVec
	requestDuration      *prometheus.HistogramVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pm_auth_attempts_total",
			Help: "Authentication attempts by method and outcome",
		}, []string{"method", "outcome"}),
		gateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pm_gate_rejections_total",
			Help: "Requests rejected by the authorization gate",
		}, []string{"reason"}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pm_notification_failures_total",
			Help: "Notification emails that could not be sent",
		}, []string{"kind"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pm_rate_limited_total",
			Help: "Requests refused by the auth rate limiter",
		}, []string{"route"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pm_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		c.authAttempts,
		c.gateRejections,
		c.notificationFailures,
		c.rateLimited,
		c.requestDuration,
	)

	return c
}

func (c *Collector) RecordAuthAttempt(method, outcome string) {
	c.authAttempts.WithLabelValues(method, outcome).Inc()
}

func (c *Collector) RecordGateRejection(reason string) {
	c.gateRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordNotificationFailure(kind string) {
	c.notificationFailures.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

func (c *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	c.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop discards everything. Used when metrics are not wired, mostly in tests.
type Noop struct{}

var _ Recorder = Noop{}

func (Noop) RecordAuthAttempt(string, string)                 {}
func (Noop) RecordGateRejection(string)                       {}
func (Noop) RecordNotificationFailure(string)                 {}
func (Noop) RecordRateLimited(string)                         {}
func (Noop) RecordRequest(string, string, int, time.Duration) {}
