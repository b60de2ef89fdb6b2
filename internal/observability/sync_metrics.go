package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gudang-ops/gudang-ops/internal/warehouse"
)

// SyncMetrics menghitung aktivitas mesin sinkronisasi gudang.
type SyncMetrics struct {
	lines     *prometheus.CounterVec
	conflicts prometheus.Counter
	drift     *prometheus.CounterVec
}

// NewSyncMetrics mendaftarkan counter mesin sinkronisasi pada registry.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gudang_sync_lines_total",
			Help: "Jumlah baris pembelian yang diproses per operasi dan hasil.",
		}, []string{"op", "outcome"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gudang_sync_version_conflicts_total",
			Help: "Jumlah konflik versi pada jalur rekalkulasi.",
		}),
		drift: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gudang_sync_drift_detected_total",
			Help: "Jumlah temuan drift biaya per tingkat keparahan.",
		}, []string{"severity"}),
	}
	reg.MustRegister(m.lines, m.conflicts, m.drift)
	return m
}

// LineProcessed implements warehouse.Metrics.
func (m *SyncMetrics) LineProcessed(op string, outcome warehouse.SyncStatus) {
	m.lines.WithLabelValues(op, string(outcome)).Inc()
}

// VersionConflict implements warehouse.Metrics.
func (m *SyncMetrics) VersionConflict() {
	m.conflicts.Inc()
}

// DriftDetected implements warehouse.Metrics.
func (m *SyncMetrics) DriftDetected(severity warehouse.Severity) {
	m.drift.WithLabelValues(string(severity)).Inc()
}
