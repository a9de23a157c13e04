// Package metrics registers the Prometheus collectors the aggregator
// exposes at the admin server's /metrics endpoint, grounded on the
// promauto-based metrics.go pattern but scoped to pipeline/stage
// execution instead of log ingestion.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsProcessedTotal counts items that entered a stage's Execute.
	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_aggregator_items_processed_total",
			Help: "Total number of items that entered a stage",
		},
		[]string{"pipeline", "stage", "kind"},
	)

	// ItemsFailedTotal counts stage executions that returned an error.
	ItemsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_aggregator_items_failed_total",
			Help: "Total number of stage executions that failed",
		},
		[]string{"pipeline", "stage", "kind"},
	)

	// StageDuration records wall-clock time spent in a stage's Execute.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadata_aggregator_stage_duration_seconds",
			Help:    "Time spent executing a stage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pipeline", "stage", "kind"},
	)

	// PipelineRunsTotal counts completed pipeline runs by outcome.
	PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_aggregator_pipeline_runs_total",
			Help: "Total number of pipeline runs by outcome",
		},
		[]string{"pipeline", "outcome"},
	)

	// SplitterChildDuration records time spent in each splitter child.
	SplitterChildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "metadata_aggregator_splitter_child_duration_seconds",
			Help:    "Time spent executing one splitter child pipeline",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"splitter", "child"},
	)

	// ResourceMonitorFindingsTotal counts resourcemon findings surfaced
	// around a pipeline run.
	ResourceMonitorFindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metadata_aggregator_resource_monitor_findings_total",
			Help: "Total number of resource growth findings detected around a pipeline run",
		},
		[]string{"pipeline", "kind"},
	)

	// SigningDuration records time spent signing one item.
	SigningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "metadata_aggregator_signing_duration_seconds",
		Help:    "Time spent signing one item",
		Buckets: prometheus.DefBuckets,
	})
)
