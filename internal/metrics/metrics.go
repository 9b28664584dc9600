// Package metrics exposes the sync engine's Prometheus counters and
// gauges: blocks completed per stream, peer faults per protocol, and the
// number of open header gaps, served over an HTTP handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every metric the sync engine records.
type Registry struct {
	registry *prometheus.Registry

	BlocksSynced   *prometheus.CounterVec
	PeerFaults     *prometheus.CounterVec
	ActivePeers    *prometheus.GaugeVec
	HeaderGapsOpen prometheus.Gauge
	PersistLatency *prometheus.HistogramVec
}

// New builds and registers a fresh Registry. protocols should list the
// five stream names ("headers", "transactions", "state_diffs", "classes",
// "events") so their counters start at zero rather than appearing only
// once an event fires.
func New(protocols []string) *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
		BlocksSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starksyncd",
			Name:      "blocks_synced_total",
			Help:      "Number of blocks successfully synced, per stream.",
		}, []string{"stream"}),
		PeerFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "starksyncd",
			Name:      "peer_faults_total",
			Help:      "Number of peer faults encountered, per stream.",
		}, []string{"stream"}),
		ActivePeers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "starksyncd",
			Name:      "active_peers",
			Help:      "Number of peers currently known for a capability.",
		}, []string{"capability"}),
		HeaderGapsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "starksyncd",
			Name:      "header_gaps_open",
			Help:      "Number of unresolved header gaps.",
		}),
		PersistLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "starksyncd",
			Name:      "persist_latency_seconds",
			Help:      "Latency of a single persist-stage transaction, per stream.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stream"}),
	}

	reg.MustRegister(r.BlocksSynced, r.PeerFaults, r.ActivePeers, r.HeaderGapsOpen, r.PersistLatency)
	for _, p := range protocols {
		r.BlocksSynced.WithLabelValues(p)
		r.PeerFaults.WithLabelValues(p)
	}
	return r
}

// Handler returns the HTTP handler serving this registry's metrics.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
