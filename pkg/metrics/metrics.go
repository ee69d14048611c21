package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Reconciliation metrics
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elementstates_transitions_total",
			Help: "Total number of element state transitions by target state and result",
		},
		[]string{"state", "result"},
	)

	SkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elementstates_skipped_total",
			Help: "Total number of restore requests skipped by reason",
		},
		[]string{"reason"},
	)

	CooldownsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elementstates_cooldowns_total",
			Help: "Total number of throttle cooldowns",
		},
	)

	// Snapshot metrics
	SnapshotArtifacts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "elementstates_snapshot_artifacts",
			Help: "Number of snapshot artifacts after the last retention sweep",
		},
	)

	SnapshotsPrunedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elementstates_snapshots_pruned_total",
			Help: "Total number of snapshot artifacts deleted by retention",
		},
	)

	SnapshotElements = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "elementstates_snapshot_elements",
			Help: "Number of elements written to the last snapshot",
		},
	)

	// Run metrics
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elementstates_run_duration_seconds",
			Help:    "Duration of dump and restore runs in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 900, 1800, 3600, 7200, 14400},
		},
		[]string{"operation"},
	)

	RunObservations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elementstates_run_observations",
			Help: "Per-element problems recorded by the last run",
		},
		[]string{"operation"},
	)

	LastRunTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elementstates_last_run_timestamp_seconds",
			Help: "Unix time the last run of each operation finished",
		},
		[]string{"operation"},
	)
)

// Registry holds every elementstates metric
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(TransitionsTotal)
	Registry.MustRegister(SkippedTotal)
	Registry.MustRegister(CooldownsTotal)
	Registry.MustRegister(SnapshotArtifacts)
	Registry.MustRegister(SnapshotsPrunedTotal)
	Registry.MustRegister(SnapshotElements)
	Registry.MustRegister(RunDuration)
	Registry.MustRegister(RunObservations)
	Registry.MustRegister(LastRunTimestamp)
}

// WriteTextfile writes the registry in the text exposition format, for the
// node exporter textfile collector
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
