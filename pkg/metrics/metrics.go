// Package metrics exports the summary of a backup run in the Prometheus text
// format, for the node exporter textfile collector.
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/williamokano/bak/pkg/backup"
)

const namespace = "bak"

// RunMetrics holds the gauges describing the last run
type RunMetrics struct {
	registry *prometheus.Registry

	entries  *prometheus.GaugeVec
	duration prometheus.Gauge
	lastRun  prometheus.Gauge
	pruned   prometheus.Gauge
	outputs  prometheus.Gauge
}

// New creates the gauges on a private registry
func New() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entries",
			Help:      "Backup entries processed in the last run, by final status",
		}, []string{"status"}),
		duration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run in seconds",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run started",
		}),
		pruned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pruned_files",
			Help:      "Old outputs deleted by retention in the last run",
		}),
		outputs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "outputs_written",
			Help:      "Outputs written in the last run",
		}),
	}

	m.registry.MustRegister(m.entries, m.duration, m.lastRun, m.pruned, m.outputs)
	return m
}

// Observe records a run summary. Every status gets a sample, zero included.
func (m *RunMetrics) Observe(summary backup.Summary) {
	for _, status := range backup.Statuses {
		m.entries.WithLabelValues(string(status)).Set(float64(summary.Count(status)))
	}
	m.duration.Set(summary.Duration.Seconds())
	m.lastRun.Set(float64(summary.Started.Unix()))
	m.pruned.Set(float64(summary.Pruned()))
	m.outputs.Set(float64(summary.Outputs()))
}

// Registry exposes the underlying registry
func (m *RunMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile atomically writes the gauges to path
func (m *RunMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics to %s", path)
	}
	return nil
}
