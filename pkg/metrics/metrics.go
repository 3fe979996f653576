// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package metrics exposes the process's Prometheus metrics: HTTP
// request counts/latency and authorization policy decisions, scraped
// at GET /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPRequestsTotal counts every request the adapter served, labeled
// by method, route pattern and response status.
var HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vtn_http_requests_total",
	Help: "Total HTTP requests served, by method, route and status.",
}, []string{"method", "route", "status"})

// HTTPRequestDuration tracks request latency, labeled by method and
// route pattern.
var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "vtn_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds, by method and route.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// PolicyDecisionsTotal counts every Authorization Policy decision,
// labeled by the object kind and whether it was allowed or denied.
var PolicyDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vtn_policy_decisions_total",
	Help: "Total authorization policy decisions, by object kind and outcome.",
}, []string{"kind", "decision"})

// RecordPolicyDecision increments PolicyDecisionsTotal for one
// decision. allowed selects the "allow"/"deny" label.
func RecordPolicyDecision(kind string, allowed bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	PolicyDecisionsTotal.WithLabelValues(kind, decision).Inc()
}

// Handler serves the text-format metrics exposition.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records HTTPRequestsTotal and HTTPRequestDuration for
// every request that passes through it.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		route := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routePattern prefers the chi route pattern (set once routing has
// matched) over the raw path, so labels stay low-cardinality.
func routePattern(r *http.Request) string {
	if rc := chiRouteContext(r); rc != "" {
		return rc
	}
	return r.URL.Path
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
