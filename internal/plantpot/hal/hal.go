// Package hal abstracts the plant pot hardware: the analog sensors behind an ADS1115
// and the pump relay. The engine only sees SensorSource and PumpActuator.
package hal

import (
	"context"
	"fmt"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
)

// SensorSource reads the soil and the reservoir. Reads are synchronous and idempotent.
type SensorSource interface {
	MoisturePercent() (int, error)
	TankVolumeMl() (float64, error)
}

// PumpActuator drives the pump
type PumpActuator interface {
	// RunFor keeps the pump on for d and always turns it off before returning
	RunFor(ctx context.Context, d time.Duration) error
	SetOn() error
	SetOff() error
}

// Device is a complete pot: sensors plus pump
type Device interface {
	SensorSource
	PumpActuator
	Close() error
}

// Open builds the device selected by cfg.Sensors.Driver
func Open(cfg config.Config) (Device, error) {
	switch cfg.Sensors.Driver {
	case config.DriverSimulated:
		return NewSimulated(cfg), nil
	case config.DriverRaspi:
		return OpenBoard(cfg)
	default:
		return nil, fmt.Errorf("unknown sensor driver %q", cfg.Sensors.Driver)
	}
}
