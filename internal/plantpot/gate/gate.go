// Package gate decides whether it is safe to water right now
package gate

import (
	"fmt"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/hal"
)

// Reason explains a gate decision
type Reason string

// Gate decisions
const (
	ReasonOK                Reason = "ok"
	ReasonTankLow           Reason = "tank low"
	ReasonSoilMoist         Reason = "soil moist"
	ReasonSensorUnavailable Reason = "sensor unavailable"
)

// Decision is the outcome of one evaluation, with the readings that produced it.
// MoisturePercent is -1 when moisture was not read.
type Decision struct {
	Allowed         bool    `json:"allowed"`
	Reason          Reason  `json:"reason"`
	TankMl          float64 `json:"tankMl"`
	MoisturePercent int     `json:"moisturePercent"`
	Err             error   `json:"-"`
}

// Gate evaluates the watering preconditions against live sensor readings
type Gate struct {
	sensors hal.SensorSource
	config  config.Source
}

// New creates a gate reading from sensors with thresholds from cfg
func New(sensors hal.SensorSource, cfg config.Source) *Gate {
	return &Gate{sensors: sensors, config: cfg}
}

// CanWater reports whether amountMl may be pumped now
func (g *Gate) CanWater(amountMl int) bool {
	return g.Evaluate(amountMl).Allowed
}

// Evaluate checks amountMl against the source's current configuration
func (g *Gate) Evaluate(amountMl int) Decision {
	return g.Check(g.config.Current(), amountMl)
}

// Check evaluates with the moisture settings of cfg. The tank is checked first,
// then the soil. Any failed read denies watering.
func (g *Gate) Check(cfg config.Config, amountMl int) Decision {
	d := Decision{MoisturePercent: -1}

	tank, err := g.sensors.TankVolumeMl()
	if err == nil && tank < 0 {
		err = fmt.Errorf("tank volume reading %v", tank)
	}
	if err != nil {
		return unavailable(d, err)
	}
	d.TankMl = tank
	if tank < float64(amountMl) {
		d.Reason = ReasonTankLow
		log.DebugH2("gate: tank %.0fml < %dml", tank, amountMl)
		return d
	}

	if cfg.Moisture.Enabled {
		moisture, err := g.sensors.MoisturePercent()
		if err == nil && moisture < 0 {
			err = fmt.Errorf("moisture reading %d", moisture)
		}
		if err != nil {
			return unavailable(d, err)
		}
		d.MoisturePercent = moisture
		if moisture >= cfg.Moisture.ThresholdPercent {
			d.Reason = ReasonSoilMoist
			log.DebugH2("gate: moisture %d%% >= %d%%", moisture, cfg.Moisture.ThresholdPercent)
			return d
		}
	}

	d.Allowed = true
	d.Reason = ReasonOK
	return d
}

func unavailable(d Decision, err error) Decision {
	if !perrors.Is(err, perrors.ErrSensorUnavailable) {
		err = perrors.Mark(err, perrors.ErrSensorUnavailable)
	}
	log.DebugH2("gate: %v", err)
	d.Reason = ReasonSensorUnavailable
	d.Err = err
	return d
}
