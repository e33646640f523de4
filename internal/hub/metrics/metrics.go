// Package metrics collects and exposes Prometheus metrics for the
// gateway and the session endpoints.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder is the interface handlers and services record through, so
// tests can substitute a no-op.
type Recorder interface {
	RecordProxyRequest(statusCode int)
	RecordProxyFailure()
	RecordProxyLatency(d time.Duration)
	RecordCodeIssued()
	RecordLogin(outcome string)
}

// Login outcomes recorded by the session service.
const (
	LoginOutcomeSuccess     = "success"
	LoginOutcomeInvalidCode = "invalid_code"
	LoginOutcomeNoUser      = "no_user"
	LoginOutcomeError       = "error"
)

// Collector is the Prometheus-backed Recorder implementation.
type Collector struct {
	proxyRequests *prometheus.CounterVec
	proxyFailures prometheus.Counter
	proxyLatency  prometheus.Histogram
	codesIssued   prometheus.Counter
	logins        *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aihub_proxy_requests_total",
			Help: "Proxied requests by upstream status code.",
		}, []string{"status_code"}),
		proxyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aihub_proxy_failures_total",
			Help: "Proxy requests that failed at the transport layer.",
		}),
		proxyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "aihub_proxy_latency_seconds",
			Help:    "Upstream round-trip latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aihub_login_codes_issued_total",
			Help: "One-time login codes issued.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aihub_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		c.proxyRequests,
		c.proxyFailures,
		c.proxyLatency,
		c.codesIssued,
		c.logins,
	)

	return c
}

func (c *Collector) RecordProxyRequest(statusCode int) {
	c.proxyRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordProxyFailure() {
	c.proxyFailures.Inc()
}

func (c *Collector) RecordProxyLatency(d time.Duration) {
	c.proxyLatency.Observe(d.Seconds())
}

func (c *Collector) RecordCodeIssued() {
	c.codesIssued.Inc()
}

func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// Nop is a Recorder that records nothing. Used in tests.
type Nop struct{}

func (Nop) RecordProxyRequest(int)           {}
func (Nop) RecordProxyFailure()              {}
func (Nop) RecordProxyLatency(time.Duration) {}
func (Nop) RecordCodeIssued()                {}
func (Nop) RecordLogin(string)               {}
