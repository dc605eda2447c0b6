// Package metrics registers the Prometheus instrumentation the HTTP server
// exposes at /metrics: queue depth, goal-run latency, and recommendation
// throughput, per SPEC_FULL's observability section.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventQueueDepth tracks how full the Event Pipeline's bounded channel
	// is, the quantity §4.6's backpressure policy acts on.
	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "surf_core",
		Name:      "event_queue_depth",
		Help:      "Number of events buffered in the Event Pipeline's channel.",
	})

	// PlannerStepDuration observes the wall-clock time of one whole
	// Planner.Run goal run (recorded by httpapi's runGoal), labeled "ok" or
	// "error" by whether Run returned an error.
	PlannerStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "surf_core",
		Name:      "planner_step_duration_seconds",
		Help:      "Duration of one Planner goal run.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"result"})

	// PlannerRunsTotal counts completed goal runs by terminal status.
	PlannerRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surf_core",
		Name:      "planner_runs_total",
		Help:      "Total Planner goal runs, labeled by terminal status.",
	}, []string{"status"})

	// RecommendationsEmittedTotal counts AutomationProposals inserted by the
	// Pattern Engine (§4.7).
	RecommendationsEmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surf_core",
		Name:      "recommendations_emitted_total",
		Help:      "Total AutomationProposals inserted by the Pattern Engine.",
	})

	// EventsIngestedTotal counts events accepted by the Event Pipeline,
	// labeled by source.
	EventsIngestedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "surf_core",
		Name:      "events_ingested_total",
		Help:      "Total events ingested, labeled by source.",
	}, []string{"source"})

	// EventsDroppedTotal counts events dropped because the channel was full
	// (§4.6, §8 boundary behavior).
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "surf_core",
		Name:      "events_dropped_total",
		Help:      "Total events dropped because the ingestion channel was full.",
	})
)
