// Copyright (c) 2025 ToeiRei
// UfO - SSH proxy access management
// This source code is licensed under the MIT license found in the LICENSE file.

// Package metrics exposes Prometheus counters for distribution and
// reconciliation cycles.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "ufo"

// Distribution results.
const (
	ResultOK            = "ok"
	ResultInvalidServer = "invalid_server"
	ResultConnectError  = "connect_error"
	ResultRemoteError   = "remote_error"
)

// Collector is a prometheus.Collector for UfO background work. A nil
// *Collector is valid and records nothing.
type Collector struct {
	distributions        *prometheus.CounterVec
	distributionDuration prometheus.Histogram
	syncActions          *prometheus.CounterVec
	syncCycles           *prometheus.CounterVec
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		distributions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "distribution_total",
				Help:      "Authorized keys pushes per proxy server, by result.",
			}, []string{"result"},
		),
		distributionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "distribution_duration_seconds",
				Help:      "Time spent pushing authorized keys to one proxy server.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		syncActions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sync_actions_total",
				Help:      "Reconciliation actions applied to users.",
			}, []string{"trigger", "action"},
		),
		syncCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "sync_cycles_total",
				Help:      "Directory reconciliation cycles, by result.",
			}, []string{"result"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.distributions.Describe(ch)
	c.distributionDuration.Describe(ch)
	c.syncActions.Describe(ch)
	c.syncCycles.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.distributions.Collect(ch)
	c.distributionDuration.Collect(ch)
	c.syncActions.Collect(ch)
	c.syncCycles.Collect(ch)
}

// ObserveDistribution records one per-server push.
func (c *Collector) ObserveDistribution(result string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.distributions.WithLabelValues(result).Inc()
	c.distributionDuration.Observe(elapsed.Seconds())
}

// ObserveSyncAction records an action applied to one user.
func (c *Collector) ObserveSyncAction(trigger, action string) {
	if c == nil {
		return
	}
	c.syncActions.WithLabelValues(trigger, action).Inc()
}

// ObserveSyncCycle records the outcome of one reconciliation cycle.
func (c *Collector) ObserveSyncCycle(result string) {
	if c == nil {
		return
	}
	c.syncCycles.WithLabelValues(result).Inc()
}

// Handler returns an HTTP handler serving c plus the Go runtime collectors
// from a private registry.
func Handler(c *Collector) (http.Handler, error) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if c != nil {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), nil
}
