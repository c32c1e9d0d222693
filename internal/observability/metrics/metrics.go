package metrics

import "github.com/prometheus/client_golang/prometheus"

// ViewMetrics exposes counters/histograms for the reconciliation loop.
type ViewMetrics struct {
	refreshTotal   *prometheus.CounterVec
	refreshLatency prometheus.Histogram
	cancelTotal    *prometheus.CounterVec
}

func NewViewMetrics(reg prometheus.Registerer) *ViewMetrics {
	m := &ViewMetrics{
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "refresh_total",
			Help:      "Total appointment list refresh attempts",
		}, []string{"trigger", "result"}),
		refreshLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "refresh_latency_seconds",
			Help:      "Latency of appointment list refreshes",
			Buckets:   prometheus.DefBuckets,
		}),
		cancelTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "appointments",
			Name:      "cancel_total",
			Help:      "Total appointment cancellation attempts",
		}, []string{"result"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.refreshTotal, m.refreshLatency, m.cancelTotal)
	return m
}

func (m *ViewMetrics) ObserveRefresh(trigger, result string, seconds float64) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(trigger, result).Inc()
	m.refreshLatency.Observe(seconds)
}

func (m *ViewMetrics) ObserveCancel(result string) {
	if m == nil {
		return
	}
	m.cancelTotal.WithLabelValues(result).Inc()
}
