/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0
*/

// Package telemetry wires structured logging, Prometheus metrics, and
// OpenTelemetry tracing for the broker.
//
// Metrics are registered on the default Prometheus registry (there is no
// controller-runtime manager here to register against) and follow the same
// naming convention the rest of the pack uses:
//   - jitbroker_ prefix for every custom metric
//   - _total suffix for counters
//   - _seconds suffix for duration histograms/gauges
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActivationsTotal counts activation attempts by activation type and
	// terminal outcome ("provisioned", "denied", "aggregate_failure").
	ActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jitbroker_activations_total",
			Help: "Total activation attempts by activation type and outcome.",
		},
		[]string{"activation_type", "outcome"},
	)

	// ActivationDurationSeconds is a histogram of end-to-end provisioning
	// latency (request validation through the last mutator call).
	ActivationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jitbroker_activation_duration_seconds",
			Help:    "Duration of activation provisioning in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"activation_type"},
	)

	// EntitlementFetchDurationSeconds is a histogram of repository fan-out
	// latency (policy fetch + group lookup) per backend.
	EntitlementFetchDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jitbroker_entitlement_fetch_duration_seconds",
			Help:    "Duration of entitlement repository lookups in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"backend"},
	)

	// TokenVerificationsTotal counts ProposalToken verifications by result
	// ("ok", "expired", "invalid").
	TokenVerificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jitbroker_token_verifications_total",
			Help: "Total ProposalToken verifications by result.",
		},
		[]string{"result"},
	)

	// ProposalsPendingExpiry is the number of MPA proposals the expiry
	// sweeper is currently tracking.
	ProposalsPendingExpiry = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "jitbroker_proposals_pending_expiry",
			Help: "Number of outstanding MPA proposals awaiting approval or expiry.",
		},
	)

	// GroupLookupFailuresTotal counts non-fatal group-membership lookup
	// failures absorbed during fan-out.
	GroupLookupFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jitbroker_group_lookup_failures_total",
			Help: "Total non-fatal group lookup failures during entitlement fan-out.",
		},
		[]string{"backend"},
	)
)

func init() {
	prometheus.MustRegister(
		ActivationsTotal,
		ActivationDurationSeconds,
		EntitlementFetchDurationSeconds,
		TokenVerificationsTotal,
		ProposalsPendingExpiry,
		GroupLookupFailuresTotal,
	)
}

// RecordActivation records the terminal outcome of one activation attempt.
func RecordActivation(activationType, outcome string, duration time.Duration) {
	ActivationsTotal.WithLabelValues(activationType, outcome).Inc()
	ActivationDurationSeconds.WithLabelValues(activationType).Observe(duration.Seconds())
}

// RecordEntitlementFetch records one repository fan-out call.
func RecordEntitlementFetch(backend string, duration time.Duration) {
	EntitlementFetchDurationSeconds.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordTokenVerification records one ProposalToken verification outcome.
func RecordTokenVerification(result string) {
	TokenVerificationsTotal.WithLabelValues(result).Inc()
}

// RecordGroupLookupFailure records one absorbed, non-fatal group lookup
// failure.
func RecordGroupLookupFailure(backend string) {
	GroupLookupFailuresTotal.WithLabelValues(backend).Inc()
}
