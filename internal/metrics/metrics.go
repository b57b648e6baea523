// Package metrics collects prometheus metrics about the API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the prometheus metrics of the server.
type Collector struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	authFailures *prometheus.CounterVec
	linksCreated prometheus.Counter
	linksDeleted prometheus.Counter
	tokensPurged prometheus.Counter
	usersCreated prometheus.Counter
	gatherer     prometheus.Gatherer
}

// NewCollector creates a collector and registers its metrics with reg.
func NewCollector(reg *prometheus.Registry) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linky_http_requests_total",
			Help: "Number of HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status_code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "linky_http_request_duration_seconds",
			Help:    "Latency of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		authFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "linky_auth_failures_total",
			Help: "Number of rejected logins and token lookups.",
		}, []string{"reason"}),
		linksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linky_links_created_total",
			Help: "Number of links created.",
		}),
		linksDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linky_links_deleted_total",
			Help: "Number of links deleted.",
		}),
		tokensPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linky_tokens_purged_total",
			Help: "Number of expired API tokens removed by the purge job.",
		}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "linky_users_created_total",
			Help: "Number of registered users.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		c.requests,
		c.latency,
		c.authFailures,
		c.linksCreated,
		c.linksDeleted,
		c.tokensPurged,
		c.usersCreated,
	)

	return c
}

// Middleware records the count and latency of every request.
// Requests that match no route are recorded with an empty route label.
func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		ctx.Next()

		route := ctx.FullPath()
		method := ctx.Request.Method
		c.requests.WithLabelValues(route, method, strconv.Itoa(ctx.Writer.Status())).Inc()
		c.latency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

// The Record methods are no-ops on a nil Collector, which is used when metrics are disabled.

func (c *Collector) RecordAuthFailure(reason string) {
	if c == nil {
		return
	}
	c.authFailures.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordLinkCreated() {
	if c == nil {
		return
	}
	c.linksCreated.Inc()
}

func (c *Collector) RecordLinkDeleted() {
	if c == nil {
		return
	}
	c.linksDeleted.Inc()
}

func (c *Collector) RecordUserCreated() {
	if c == nil {
		return
	}
	c.usersCreated.Inc()
}

func (c *Collector) RecordTokensPurged(count int64) {
	if c == nil {
		return
	}
	c.tokensPurged.Add(float64(count))
}

// Handler returns the HTTP handler for prometheus scrapes.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
