package hal

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"gobot.io/x/gobot/v2/drivers/gpio"
	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
)

// Board is the Raspberry Pi pot: an ADS1115 on I2C for the moisture and level probes
// and a relay on a GPIO header pin for the pump.
type Board struct {
	adaptor *raspi.Adaptor
	adc     *i2c.ADS1x15Driver
	relay   *gpio.RelayDriver

	moistureCh string
	tankCh     string
	adcMax     int
	capacityMl float64
	maxRun     time.Duration

	mu sync.Mutex // serialises ADC conversions
}

// OpenBoard connects to the Pi peripherals described by cfg
func OpenBoard(cfg config.Config) (*Board, error) {
	adaptor := raspi.NewAdaptor()
	if err := adaptor.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect raspi adaptor: %w", err)
	}

	adc := i2c.NewADS1115Driver(adaptor,
		i2c.WithBus(cfg.Sensors.I2CBus),
		i2c.WithAddress(cfg.Sensors.I2CAddress),
	)
	if err := adc.Start(); err != nil {
		_ = adaptor.Finalize()
		return nil, perrors.Mark(fmt.Errorf("failed to start ADS1115: %w", err), perrors.ErrSensorUnavailable)
	}

	relay := gpio.NewRelayDriver(adaptor, cfg.Pump.Pin)
	if err := relay.Start(); err != nil {
		_ = adc.Halt()
		_ = adaptor.Finalize()
		return nil, fmt.Errorf("failed to start pump relay on pin %s: %w", cfg.Pump.Pin, err)
	}
	// the relay may have been left energised by a crashed process
	if err := relay.Off(); err != nil {
		log.Error("Failed to switch pump off at startup: %v", err)
	}

	log.Info("Board ready (ADS1115 bus %d addr 0x%02x, pump pin %s)", cfg.Sensors.I2CBus, cfg.Sensors.I2CAddress, cfg.Pump.Pin)
	return &Board{
		adaptor:    adaptor,
		adc:        adc,
		relay:      relay,
		moistureCh: strconv.Itoa(cfg.Sensors.MoistureChannel),
		tankCh:     strconv.Itoa(cfg.Sensors.TankChannel),
		adcMax:     cfg.Sensors.ADCMax,
		capacityMl: cfg.Tank.CapacityMl,
		maxRun:     cfg.MaxRun(),
	}, nil
}

func (b *Board) read(channel string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, err := b.adc.AnalogRead(channel)
	if err != nil {
		return 0, perrors.Mark(fmt.Errorf("ADS1115 channel %s: %w", channel, err), perrors.ErrSensorUnavailable)
	}
	log.DebugH3("ADS1115 channel %s raw=%d", channel, raw)
	return raw, nil
}

// MoisturePercent implements SensorSource
func (b *Board) MoisturePercent() (int, error) {
	raw, err := b.read(b.moistureCh)
	if err != nil {
		return -1, err
	}
	return MoisturePercent(raw, b.adcMax), nil
}

// TankVolumeMl implements SensorSource
func (b *Board) TankVolumeMl() (float64, error) {
	raw, err := b.read(b.tankCh)
	if err != nil {
		return -1, err
	}
	return TankVolumeMl(raw, b.adcMax, b.capacityMl), nil
}

// SetOn implements PumpActuator
func (b *Board) SetOn() error {
	if err := b.relay.On(); err != nil {
		return fmt.Errorf("pump on: %w", err)
	}
	return nil
}

// SetOff implements PumpActuator
func (b *Board) SetOff() error {
	if err := b.relay.Off(); err != nil {
		return fmt.Errorf("pump off: %w", err)
	}
	return nil
}

// RunFor implements PumpActuator. Runs longer than pump.maxRunSeconds are cut short.
func (b *Board) RunFor(ctx context.Context, d time.Duration) error {
	if b.maxRun > 0 && d > b.maxRun {
		log.Warn("Pump run of %v capped to %v", d, b.maxRun)
		d = b.maxRun
	}
	if err := b.SetOn(); err != nil {
		_ = b.SetOff()
		return err
	}
	defer func() {
		if err := b.SetOff(); err != nil {
			log.Error("Failed to switch pump off: %v", err)
		}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close switches the pump off and releases the peripherals
func (b *Board) Close() error {
	var firstErr error
	if err := b.relay.Off(); err != nil {
		firstErr = err
	}
	if err := b.relay.Halt(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := b.adc.Halt(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := b.adaptor.Finalize(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
