package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Live transport gauges/counters, fed by internal/ingest and
// internal/relay.
var (
	SourceConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_source_connections",
		Help: "Currently authorized source (broadcaster) connections.",
	})

	SourceBytesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_source_bytes_received_total",
		Help: "Audio bytes received from sources.",
	})

	RelayReaders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "grimnir_relay_readers",
		Help: "Relay readers currently attached across all resources.",
	})

	RelayBytesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "grimnir_relay_bytes_sent_total",
		Help: "Raw audio bytes written to relay readers.",
	})
)

// Handler exposes metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
