/*
Package metrics provides Prometheus metrics and component health for the
downtime controller.

All metrics are registered with the default registry at package init and
exposed on /metrics of the controller's HTTP listener:

	┌──────────────────── METRICS ─────────────────────────────┐
	│                                                            │
	│  Clients      downtime_clients_total{state}                │
	│               downtime_channels_connected                  │
	│  Reconciler   downtime_reconciliation_duration_seconds     │
	│               downtime_reconciliation_cycles_total         │
	│               downtime_reconciliation_errors_total{kind}   │
	│               downtime_state_transitions_total{state}      │
	│  Delivery     downtime_pushes_total{result}                │
	│               downtime_push_attempts_total                 │
	│               downtime_push_duration_seconds               │
	│  Heartbeat    downtime_heartbeats_total{result}            │
	│  API          downtime_api_requests_total{method,status}   │
	│               downtime_api_request_duration_seconds        │
	└────────────────────────────────────────────────────────────┘

Gauges that describe the client population are refreshed by a Collector
reading from the registry every 15 seconds. Everything else is updated
inline by the component that owns the event.

# Timing

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReconciliationDuration)

# Health

Components report their status with RegisterComponent/UpdateComponent and
HealthHandler renders them on /health/components. A failing "store" or
"reconciler" makes the process unhealthy (503); any other failing component
only degrades it. ExpectUpdates turns silence into failure: the reconciler
declares three tick intervals, so a hung loop shows as stale.
*/
package metrics
