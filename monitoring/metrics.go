package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the counters and gauges exposed by the database.
// Persistence failures surface here rather than as client errors: the
// in-memory state stays authoritative while the error counters climb.
type Metrics struct {
	registry *prometheus.Registry

	CommandsTotal *prometheus.CounterVec

	AOFAppended prometheus.Counter
	AOFDropped  prometheus.Counter
	AOFErrors   prometheus.Counter
	AOFReplayed prometheus.Counter
	AOFSkipped  prometheus.Counter

	SnapshotSaves  prometheus.Counter
	SnapshotErrors prometheus.Counter

	EmbeddingGenerated prometheus.Counter
	EmbeddingErrors    prometheus.Counter

	NodeCount prometheus.Gauge
	CacheSize prometheus.Gauge
}

// NewMetrics creates and registers the metric set on a private registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "commands_total",
			Help:      "Commands executed, by verb",
		}, []string{"verb"}),
		AOFAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "aof_appended_total",
			Help:      "Operation records appended to the AOF",
		}),
		AOFDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "aof_dropped_total",
			Help:      "Operation records dropped because the AOF queue was full",
		}),
		AOFErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "aof_errors_total",
			Help:      "AOF write failures",
		}),
		AOFReplayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "aof_replayed_total",
			Help:      "Operation records replayed at startup",
		}),
		AOFSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "aof_skipped_total",
			Help:      "Replay records skipped because of errors",
		}),
		SnapshotSaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "snapshot_saves_total",
			Help:      "Snapshots written",
		}),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "snapshot_errors_total",
			Help:      "Snapshot write failures",
		}),
		EmbeddingGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "embedding_generated_total",
			Help:      "Embedding vectors generated",
		}),
		EmbeddingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mumpsdb",
			Name:      "embedding_errors_total",
			Help:      "Embedding collaborator failures",
		}),
		NodeCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mumpsdb",
			Name:      "node_count",
			Help:      "Nodes carrying a value",
		}),
		CacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "mumpsdb",
			Name:      "query_cache_size",
			Help:      "Entries in the query cache",
		}),
	}

	registry.MustRegister(
		m.CommandsTotal,
		m.AOFAppended, m.AOFDropped, m.AOFErrors, m.AOFReplayed, m.AOFSkipped,
		m.SnapshotSaves, m.SnapshotErrors,
		m.EmbeddingGenerated, m.EmbeddingErrors,
		m.NodeCount, m.CacheSize,
	)
	return m
}

// Registry exposes the underlying registry for scraping or inspection
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
