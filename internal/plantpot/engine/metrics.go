package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the engine's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	Waterings        *prometheus.CounterVec
	Skips            *prometheus.CounterVec
	PumpSeconds      prometheus.Counter
	PumpFailures     prometheus.Counter
	RemainingCycles  prometheus.Gauge
	SecondsUntilNext prometheus.Gauge
	State            *prometheus.GaugeVec
	MoisturePercent  prometheus.Gauge
	TankMl           prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Waterings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plantpot_waterings_total",
			Help: "Pump activations started, by kind (scheduled, manual, timed).",
		}, []string{"kind"}),
		Skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "plantpot_watering_skips_total",
			Help: "Due waterings skipped because a precondition was not met.",
		}, []string{"reason"}),
		PumpSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantpot_pump_seconds_total",
			Help: "Total time the pump was switched on.",
		}),
		PumpFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "plantpot_pump_failures_total",
			Help: "Pump activations that returned an error.",
		}),
		RemainingCycles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plantpot_remaining_cycles",
			Help: "Scheduled waterings left before the tank needs a refill.",
		}),
		SecondsUntilNext: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plantpot_seconds_until_next_watering",
			Help: "Seconds until the next scheduled watering.",
		}),
		State: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "plantpot_engine_state",
			Help: "1 for the current engine state, 0 otherwise.",
		}, []string{"state"}),
		MoisturePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plantpot_moisture_percent",
			Help: "Last soil moisture reading.",
		}),
		TankMl: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "plantpot_tank_ml",
			Help: "Last reservoir volume reading.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Waterings, m.Skips, m.PumpSeconds, m.PumpFailures,
			m.RemainingCycles, m.SecondsUntilNext, m.State, m.MoisturePercent, m.TankMl)
	}
	m.setState(StateStopped)
	return m
}

func (m *Metrics) setState(state string) {
	if m == nil {
		return
	}
	for _, s := range []string{StateStopped, StateRunning, StateStopping} {
		v := 0.0
		if s == state {
			v = 1
		}
		m.State.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) observeSchedule(remaining, secondsUntil int) {
	if m == nil {
		return
	}
	m.RemainingCycles.Set(float64(remaining))
	m.SecondsUntilNext.Set(float64(secondsUntil))
}

func (m *Metrics) observeSkip(reason string) {
	if m == nil {
		return
	}
	m.Skips.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeReadings(tankMl float64, moisture int) {
	if m == nil {
		return
	}
	if tankMl >= 0 {
		m.TankMl.Set(tankMl)
	}
	if moisture >= 0 {
		m.MoisturePercent.Set(float64(moisture))
	}
}

func (m *Metrics) observePumpStart(kind EventKind) {
	if m == nil {
		return
	}
	m.Waterings.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observePumpEnd(seconds float64, err error) {
	if m == nil {
		return
	}
	m.PumpSeconds.Add(seconds)
	if err != nil {
		m.PumpFailures.Inc()
	}
}
