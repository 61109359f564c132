package sequencer

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// namespace is the leading part of all published metrics, in the idiom of
// tsdb/tsm1/metrics.go.
const namespace = "sequencer"

const coreSubsystem = "core"

// Metrics are a set of Prometheus collectors tracking data about a
// running Sequencer: how many samples it accepted, rejected, and
// checkpointed, and the current shape of its active/ready state.
type Metrics struct {
	labels prometheus.Labels // Read only.

	Adds        *prometheus.CounterVec
	Checkpoints *prometheus.CounterVec
	Merges      *prometheus.CounterVec

	CheckpointDuration *prometheus.HistogramVec
	ActiveRuns         *prometheus.GaugeVec
	ReadyDepth         *prometheus.GaugeVec
	HighWaterMark      *prometheus.GaugeVec
}

// NewMetrics initializes the sequencer's Prometheus metrics, labeled with
// labels (e.g. {"shard": "0"} for a caller running several sequencers).
func NewMetrics(labels prometheus.Labels) *Metrics {
	var names []string
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	statusNames := append(append([]string{}, names...), "status")

	return &Metrics{
		labels: labels,
		Adds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: coreSubsystem,
			Name:      "adds_total",
			Help:      "Number of Add calls, by outcome status.",
		}, statusNames),
		Checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: coreSubsystem,
			Name:      "checkpoints_total",
			Help:      "Number of checkpoints started, by outcome status.",
		}, statusNames),
		Merges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: coreSubsystem,
			Name:      "merges_total",
			Help:      "Number of Merge calls, by outcome status.",
		}, statusNames),
		CheckpointDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: coreSubsystem,
			Name:      "checkpoint_duration_seconds",
			Help:      "Time spent holding the checkpoint mutex inside makeCheckpoint.",
		}, names),
		ActiveRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: coreSubsystem,
			Name:      "active_runs",
			Help:      "Number of runs currently accepting appends.",
		}, names),
		ReadyDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: coreSubsystem,
			Name:      "ready_runs",
			Help:      "Number of runs awaiting drain in the ready set.",
		}, names),
		HighWaterMark: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: coreSubsystem,
			Name:      "high_water_mark",
			Help:      "Largest timestamp ever accepted.",
		}, names),
	}
}

// PrometheusCollectors satisfies the common "collectable" convention used
// across the engine layer (tsdb/tsm1/metrics.go's blockMetrics).
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Adds,
		m.Checkpoints,
		m.Merges,
		m.CheckpointDuration,
		m.ActiveRuns,
		m.ReadyDepth,
		m.HighWaterMark,
	}
}

// labelValues returns the configured label values in sorted-key order,
// matching the name order the *Vec collectors above were built with,
// optionally followed by a status value.
func (m *Metrics) labelValues(status string) []string {
	keys := make([]string, 0, len(m.labels))
	for k := range m.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		values = append(values, m.labels[k])
	}
	if status != "" {
		values = append(values, status)
	}
	return values
}
