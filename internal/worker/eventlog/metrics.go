// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package eventlog

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "poolferry"

// Collector is a prometheus.Collector that collects metrics about
// converter migrations.
type Collector struct {
	started   prometheus.Counter
	completed prometheus.Counter
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		started: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "migrations_started",
				Help:      "The number of migrations that have taken ownership of a converter.",
			},
		),
		completed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "migrations_completed",
				Help:      "The number of migrations that have handed a live replacement back.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.started.Describe(ch)
	c.completed.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.started.Collect(ch)
	c.completed.Collect(ch)
}
