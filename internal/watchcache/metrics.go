package watchcache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the registry holding the synchronizer collectors. It is served
// by the binary when a metrics address is configured.
var Metrics = prometheus.NewRegistry()

func init() {
	Metrics.MustRegister(
		notificationsTotal,
		cacheEntries,
		loading,
		conversionDropsTotal,
		resyncsTotal,
		mergesTotal,
	)
}

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubemirror_notifications_total",
			Help: "Total number of feed notifications applied, by kind and type",
		},
		[]string{"kind", "type"},
	)
	cacheEntries = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kubemirror_cache_entries",
			Help: "Number of entries currently published per kind",
		},
		[]string{"kind"},
	)
	loading = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kubemirror_loading",
			Help: "1 while a kind is bootstrapping, 0 once synced",
		},
		[]string{"kind"},
	)
	conversionDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubemirror_conversion_drops_total",
			Help: "Total number of payloads dropped because they could not be converted",
		},
		[]string{"kind"},
	)
	resyncsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubemirror_resyncs_total",
			Help: "Total number of resyncs started after the first snapshot",
		},
		[]string{"kind"},
	)
	mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kubemirror_enrichment_merges_total",
			Help: "Total number of side-channel merges by kind and result",
		},
		[]string{"kind", "result"},
	)
)

// ObserveMerge records the outcome of a side-channel merge
func ObserveMerge(kind string, applied bool) {
	result := "skipped"
	if applied {
		result = "applied"
	}
	mergesTotal.WithLabelValues(kind, result).Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
