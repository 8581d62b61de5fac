// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package axonius

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type clientMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  *prometheus.CounterVec
}

// newClientMetrics registers the client collectors on reg. Collectors that
// another client already registered on reg are shared.
func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	requests, err := registerCollector(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonius_client_requests_total",
			Help: "Total number of Axonius REST requests",
		},
		[]string{"method", "status"},
	))
	if err != nil {
		return nil, err
	}
	duration, err := registerCollector(reg, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "axonius_client_request_duration_seconds",
			Help:    "Axonius REST request latency in seconds, including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}
	retries, err := registerCollector(reg, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "axonius_client_retries_total",
			Help: "Total number of retried Axonius REST attempts",
		},
		[]string{"method"},
	))
	if err != nil {
		return nil, err
	}
	return &clientMetrics{requests: requests, duration: duration, retries: retries}, nil
}

// registerCollector registers c, or returns the equal collector already
// registered on reg.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("registering metrics: %w", err)
	}
	return c, nil
}

func (m *clientMetrics) observe(method string, status int, start time.Time) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requests.WithLabelValues(method, label).Inc()
	m.duration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (m *clientMetrics) retry(method string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(method).Inc()
}
