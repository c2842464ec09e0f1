package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PricingMetrics records basket pricing passes.
type PricingMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// NewPricingMetrics registers the pricing metrics on the provided registerer.
func NewPricingMetrics(reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		return &PricingMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "basket_pricing_duration_seconds",
		Help:    "Duration of basket pricing passes in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "basket_modifier_failures_total",
		Help: "Pricing passes aborted by a modifier hook.",
	}, []string{"modifier"})
	reg.MustRegister(duration, failures)
	return &PricingMetrics{duration: duration, failures: failures}
}

// ObservePass records one pricing pass.
func (p *PricingMetrics) ObservePass(duration time.Duration, err error) {
	if p == nil || p.duration == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncModifierFailure counts a hook error raised by the named modifier.
func (p *PricingMetrics) IncModifierFailure(modifier string) {
	if p == nil || p.failures == nil {
		return
	}
	p.failures.WithLabelValues(normalizeLabel(modifier)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
