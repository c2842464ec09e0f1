package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HousekeepingMetrics records cleanup sweeps.
type HousekeepingMetrics struct {
	duration *prometheus.HistogramVec
	removed  *prometheus.CounterVec
	failures *prometheus.CounterVec
}

func NewHousekeepingMetrics(reg prometheus.Registerer) *HousekeepingMetrics {
	if reg == nil {
		return &HousekeepingMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "housekeeping_sweep_duration_seconds",
		Help:    "Duration of housekeeping sweeps in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})
	removed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "housekeeping_rows_removed_total",
		Help: "Rows removed by housekeeping sweeps.",
	}, []string{"task"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "housekeeping_sweep_failures_total",
		Help: "Housekeeping sweeps that returned an error.",
	}, []string{"task"})
	reg.MustRegister(duration, removed, failures)
	return &HousekeepingMetrics{duration: duration, removed: removed, failures: failures}
}

// ObserveSweep records one sweep of task. Failed sweeps still report the
// rows they removed before the error.
func (h *HousekeepingMetrics) ObserveSweep(task string, duration time.Duration, removed int64, err error) {
	if h == nil || h.duration == nil {
		return
	}
	label := normalizeLabel(task)
	h.duration.WithLabelValues(label).Observe(duration.Seconds())
	if removed > 0 {
		h.removed.WithLabelValues(label).Add(float64(removed))
	}
	if err != nil {
		h.failures.WithLabelValues(label).Inc()
	}
}
