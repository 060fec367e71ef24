package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
)

func TestFlattenMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "plantpot_runs_total"}, []string{"kind", "zone"})
	tank := prometheus.NewGauge(prometheus.GaugeOpts{Name: "plantpot_tank"})
	other := prometheus.NewGauge(prometheus.GaugeOpts{Name: "go_something"})
	lat := prometheus.NewHistogram(prometheus.HistogramOpts{Name: "plantpot_latency_seconds"})
	reg.MustRegister(runs, tank, other, lat)

	runs.WithLabelValues("manual", "a").Add(2)
	tank.Set(125.5)
	other.Set(7)
	lat.Observe(0.1)
	lat.Observe(0.2)

	got, err := flattenMetrics(reg, "plantpot_")
	if err != nil {
		t.Fatalf("flattenMetrics() error = %v", err)
	}

	want := map[string]float64{
		`plantpot_runs_total{kind="manual",zone="a"}`: 2,
		"plantpot_tank":            125.5,
		"plantpot_latency_seconds": 2,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("flattenMetrics() mismatch (-want +got):\n%s", diff)
	}
}
