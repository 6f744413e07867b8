// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_gateway_requests_total",
			Help: "Total number of HTTP requests processed by the gateway",
		},
		[]string{"status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_gateway_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"type"},
	)
	promProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_gateway_provider_calls_total",
			Help: "Total number of LLM provider API calls",
		},
		[]string{"provider", "status"},
	)
	promRecommendations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_gateway_recommendations_total",
			Help: "Total number of model recommendations served, by priority",
		},
		[]string{"priority"},
	)
	promSessionEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "nexus_gateway_session_evictions_total",
			Help: "Total number of expired sessions evicted from the local cache",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promProviderCalls)
	prometheus.MustRegister(promRecommendations)
	prometheus.MustRegister(promSessionEvictions)
}

// statusRecorder captures the response status for metric labels.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware records request counts and latency for every route.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		promRequestsTotal.WithLabelValues(strconv.Itoa(rec.status)).Inc()
		promRequestDuration.WithLabelValues("http").Observe(float64(time.Since(start).Milliseconds()))
	})
}
