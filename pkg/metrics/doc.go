/*
Package metrics exposes Prometheus metrics for elementstates runs.

elementstates is a short-lived command, so metrics are not scraped over
HTTP by default. When a metrics file is configured the registry is written
at exit with WriteTextfile, in the format read by the node exporter
textfile collector.

# Metrics

	elementstates_transitions_total{state,result}      counter
	elementstates_skipped_total{reason}                counter
	elementstates_cooldowns_total                      counter
	elementstates_snapshot_artifacts                   gauge
	elementstates_snapshots_pruned_total               counter
	elementstates_snapshot_elements                    gauge
	elementstates_run_duration_seconds{operation}      histogram
	elementstates_run_observations{operation}          gauge
	elementstates_last_run_timestamp_seconds{operation} gauge

Skip reasons are not_found, inert_target and in_state.

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.RunDuration, "dump")
*/
package metrics
