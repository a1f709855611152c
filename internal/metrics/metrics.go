// Copyright 2026 The Variantguard Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus metrics for guard decisions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "variantguard_decisions_total",
			Help: "Total number of guard decisions by tool kind and action.",
		},
		[]string{"kind", "action"},
	)

	evalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "variantguard_eval_duration_seconds",
			Help: "Guard evaluation duration in seconds.",
			Buckets: []float64{
				0.000001, 0.000005, 0.00001, 0.00005,
				0.0001, 0.0005, 0.001, 0.005, 0.01,
			},
		},
	)

	notifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "variantguard_notify_failures_total",
			Help: "Notifications that could not be delivered.",
		},
	)

	configReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "variantguard_config_reloads_total",
			Help: "Config reload attempts by result.",
		},
		[]string{"result"},
	)

	registry = prometheus.NewRegistry()
)

func init() {
	registry.MustRegister(
		decisionsTotal,
		evalDuration,
		notifyFailures,
		configReloads,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
}

// RecordDecision counts one decision and observes its evaluation time.
func RecordDecision(kind, action string, duration time.Duration) {
	decisionsTotal.With(prometheus.Labels{"kind": kind, "action": action}).Inc()
	evalDuration.Observe(duration.Seconds())
}

// RecordNotifyFailure counts one failed notification.
func RecordNotifyFailure() {
	notifyFailures.Inc()
}

// RecordReload counts a config reload attempt.
func RecordReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	configReloads.WithLabelValues(result).Inc()
}

// Handler serves the metrics registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
