package hal

import (
	"context"
	"sync"
	"time"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
)

// Simulated is an in-memory pot used on development machines and in tests.
// Running the pump drains the simulated tank at the configured flow rate.
type Simulated struct {
	mu           sync.Mutex
	moisture     int
	tankMl       float64
	secondsPerMl float64
	sensorErr    error
	pumpErr      error
	on           bool
	runs         []time.Duration
}

// NewSimulated seeds the simulation from the config
func NewSimulated(cfg config.Config) *Simulated {
	return &Simulated{
		moisture:     cfg.Sensors.Simulated.MoisturePercent,
		tankMl:       cfg.Sensors.Simulated.TankMl,
		secondsPerMl: cfg.Pump.SecondsPerMl,
	}
}

// SetMoisture sets the next moisture reading
func (s *Simulated) SetMoisture(pct int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moisture = pct
}

// SetTankMl sets the reservoir volume
func (s *Simulated) SetTankMl(ml float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tankMl = ml
}

// FailSensors makes every sensor read return err. Nil restores normal reads.
func (s *Simulated) FailSensors(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sensorErr = err
}

// FailPump makes pump operations return err
func (s *Simulated) FailPump(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pumpErr = err
}

// MoisturePercent implements SensorSource
func (s *Simulated) MoisturePercent() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sensorErr != nil {
		return -1, perrors.Mark(s.sensorErr, perrors.ErrSensorUnavailable)
	}
	return s.moisture, nil
}

// TankVolumeMl implements SensorSource
func (s *Simulated) TankVolumeMl() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sensorErr != nil {
		return -1, perrors.Mark(s.sensorErr, perrors.ErrSensorUnavailable)
	}
	return s.tankMl, nil
}

// SetOn implements PumpActuator
func (s *Simulated) SetOn() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pumpErr != nil {
		return s.pumpErr
	}
	s.on = true
	return nil
}

// SetOff implements PumpActuator
func (s *Simulated) SetOff() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = false
	return nil
}

// RunFor implements PumpActuator
func (s *Simulated) RunFor(ctx context.Context, d time.Duration) error {
	if err := s.SetOn(); err != nil {
		return err
	}
	start := time.Now()
	log.Debug("simulated pump on for %v", d)

	timer := time.NewTimer(d)
	defer timer.Stop()
	var err error
	select {
	case <-timer.C:
	case <-ctx.Done():
		err = ctx.Err()
	}

	elapsed := time.Since(start)
	if elapsed > d {
		elapsed = d
	}
	s.mu.Lock()
	s.on = false
	s.runs = append(s.runs, d)
	if s.secondsPerMl > 0 {
		s.tankMl -= elapsed.Seconds() / s.secondsPerMl
		if s.tankMl < 0 {
			s.tankMl = 0
		}
	}
	s.mu.Unlock()
	return err
}

// IsOn reports whether the pump output is energised
func (s *Simulated) IsOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}

// Runs returns the requested duration of every completed pump run
func (s *Simulated) Runs() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.runs...)
}

// Close implements Device
func (s *Simulated) Close() error {
	return s.SetOff()
}
