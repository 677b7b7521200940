// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TelemetryAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomcast_telemetry_accepted_total",
		Help: "Telemetry events admitted by the ingestion pipeline.",
	})

	TelemetryDiscarded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomcast_telemetry_discarded_total",
		Help: "Telemetry events discarded, by reason.",
	}, []string{"reason"})

	TelemetryRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomcast_telemetry_rejected_total",
		Help: "Telemetry events rejected by admission control, by code.",
	}, []string{"code"})

	Broadcasts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomcast_broadcasts_total",
		Help: "room.state and room.state.delta messages sent.",
	})

	Callouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomcast_announcer_callouts_total",
		Help: "Announcer callouts emitted.",
	})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "roomcast_tick_duration_seconds",
		Help:    "Scheduler tick duration.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	TickOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomcast_tick_overruns_total",
		Help: "Scheduler ticks skipped because the previous tick was still running.",
	})

	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomcast_active_rooms",
		Help: "Rooms currently held by the registry.",
	})

	ConnectedViewers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomcast_connected_viewers",
		Help: "WebSocket viewers currently connected.",
	})

	ProtectionDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomcast_protection_degraded",
		Help: "1 while the protection monitor reports DEGRADED.",
	})

	MaintenanceState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roomcast_maintenance_state",
		Help: "Maintenance window state: 0 active, 1 draining, 2 maintenance.",
	})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
