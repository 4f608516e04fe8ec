// Copyright (C) 2025 AutoDoc Team
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SupervisorMetrics counts backend lifecycle events and health probe
// outcomes. Exposed through the default Prometheus registry when the
// process serves /metrics; in tests a private registry is used.
type SupervisorMetrics struct {
	Starts   prometheus.Counter
	Stops    prometheus.Counter
	Restarts prometheus.Counter

	// HealthProbes is labeled by outcome: "healthy" or "unhealthy".
	HealthProbes *prometheus.CounterVec
}

// NewSupervisorMetrics registers the supervisor counters on reg.
func NewSupervisorMetrics(reg prometheus.Registerer) *SupervisorMetrics {
	factory := promauto.With(reg)

	return &SupervisorMetrics{
		Starts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autodoc",
			Subsystem: "backend",
			Name:      "starts_total",
			Help:      "Number of backend start operations.",
		}),
		Stops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autodoc",
			Subsystem: "backend",
			Name:      "stops_total",
			Help:      "Number of backend stop operations.",
		}),
		Restarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "autodoc",
			Subsystem: "backend",
			Name:      "restarts_total",
			Help:      "Number of backend restart operations.",
		}),
		HealthProbes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "autodoc",
			Subsystem: "backend",
			Name:      "health_probes_total",
			Help:      "Health probe attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// observeProbe records one probe outcome. Nil-safe so the supervisor
// works without metrics wired.
func (m *SupervisorMetrics) observeProbe(healthy bool) {
	if m == nil {
		return
	}
	outcome := "unhealthy"
	if healthy {
		outcome = "healthy"
	}
	m.HealthProbes.WithLabelValues(outcome).Inc()
}
