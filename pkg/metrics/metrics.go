package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Hub collectors, registered on the default registry.
var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_connections_active",
		Help: "Live authenticated websocket connections.",
	})
	FramesIn = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_frames_in_total",
		Help: "Inbound frames by type.",
	}, []string{"type"})
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_broadcasts_total",
		Help: "Room broadcasts fanned out.",
	})
	SendsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_sends_dropped_total",
		Help: "Frames dropped because a member's send buffer was full.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
