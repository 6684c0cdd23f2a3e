/*
Package metrics exposes Prometheus instrumentation for the mrlite
scheduler.

Counters and gauges track workers by role, successful and failed
completions, connected agents, monitoring rounds and shuffle file
dispositions; a labeled histogram records per-phase durations. All
collectors register at package init, and StartServer serves /metrics when
the scheduler is launched with --metrics-addr.
*/
package metrics
