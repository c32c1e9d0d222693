package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestViewMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewViewMetrics(reg)
	m.ObserveRefresh("manual", "ok", 0.25)
	m.ObserveRefresh("poll", "error", 1.5)
	m.ObserveCancel("ok")
}

func TestViewMetricsNilSafe(t *testing.T) {
	var m *ViewMetrics
	m.ObserveRefresh("poll", "ok", 0.1)
	m.ObserveCancel("error")
}
