// Package config loads, validates and persists the plant pot configuration file
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/saturnblock/pythonplantpot/internal/log"
	perrors "github.com/saturnblock/pythonplantpot/internal/plantpot/errors"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/fileutil"
)

// DefaultPath is where the CLI looks for the configuration file
const DefaultPath = ".plantpot/config.yaml"

// Sensor drivers
const (
	DriverRaspi     = "raspi"
	DriverSimulated = "simulated"
)

// Config is the complete plant pot configuration
type Config struct {
	Watering WateringConfig `yaml:"watering" json:"watering"`
	Moisture MoistureConfig `yaml:"moisture" json:"moisture"`
	Tank     TankConfig     `yaml:"tank" json:"tank"`
	Pump     PumpConfig     `yaml:"pump" json:"pump"`
	Sensors  SensorsConfig  `yaml:"sensors" json:"sensors"`
	Paths    PathsConfig    `yaml:"paths" json:"paths"`
	Notify   NotifyConfig   `yaml:"notify" json:"notify"`
	MQTT     MQTTConfig     `yaml:"mqtt" json:"mqtt"`
	HTTP     HTTPConfig     `yaml:"http" json:"http"`
}

// WateringConfig controls the schedule
type WateringConfig struct {
	IntervalSeconds int `yaml:"intervalSeconds" json:"intervalSeconds"`
	AmountMl        int `yaml:"amountMl" json:"amountMl"`
}

// MoistureConfig controls the soil moisture precondition
type MoistureConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	ThresholdPercent int  `yaml:"thresholdPercent" json:"thresholdPercent"`
}

// TankConfig describes the water reservoir
type TankConfig struct {
	CapacityMl float64 `yaml:"capacityMl" json:"capacityMl"`
}

// PumpConfig describes the pump output and its flow calibration
type PumpConfig struct {
	Pin           string  `yaml:"pin" json:"pin"`
	SecondsPerMl  float64 `yaml:"secondsPerMl" json:"secondsPerMl"`
	MaxRunSeconds int     `yaml:"maxRunSeconds" json:"maxRunSeconds"`
}

// SensorsConfig selects the analog front end
type SensorsConfig struct {
	Driver          string          `yaml:"driver" json:"driver"`
	I2CBus          int             `yaml:"i2cBus" json:"i2cBus"`
	I2CAddress      int             `yaml:"i2cAddress" json:"i2cAddress"`
	MoistureChannel int             `yaml:"moistureChannel" json:"moistureChannel"`
	TankChannel     int             `yaml:"tankChannel" json:"tankChannel"`
	ADCMax          int             `yaml:"adcMax" json:"adcMax"`
	Simulated       SimulatedConfig `yaml:"simulated" json:"simulated"`
}

// SimulatedConfig seeds the simulated sensors
type SimulatedConfig struct {
	MoisturePercent int     `yaml:"moisturePercent" json:"moisturePercent"`
	TankMl          float64 `yaml:"tankMl" json:"tankMl"`
}

// PathsConfig holds every file the engine and its operator tools share
type PathsConfig struct {
	StatusFile   string `yaml:"statusFile" json:"statusFile"`
	CommandFile  string `yaml:"commandFile" json:"commandFile"`
	DatabaseFile string `yaml:"databaseFile" json:"databaseFile"`
	PidFile      string `yaml:"pidFile" json:"pidFile"`
	LogFile      string `yaml:"logFile" json:"logFile"`
	SocketFile   string `yaml:"socketFile" json:"socketFile"`
}

// NotifyConfig configures operator notifications
type NotifyConfig struct {
	DiscordWebhookURL string        `yaml:"discordWebhookUrl" json:"discordWebhookUrl"`
	Webhook           WebhookConfig `yaml:"webhook" json:"webhook"`
	Email             EmailConfig   `yaml:"email" json:"email"`
	// MinIntervalSeconds throttles repeated notices of the same kind
	MinIntervalSeconds int `yaml:"minIntervalSeconds" json:"minIntervalSeconds"`
}

// WebhookConfig is a generic JSON webhook target
type WebhookConfig struct {
	URL   string `yaml:"url" json:"url"`
	Token string `yaml:"token" json:"-"`
}

// EmailConfig is an SMTP target
type EmailConfig struct {
	Host     string   `yaml:"host" json:"host"`
	Port     int      `yaml:"port" json:"port"`
	Username string   `yaml:"username" json:"username"`
	Password string   `yaml:"password" json:"-"`
	From     string   `yaml:"from" json:"from"`
	To       []string `yaml:"to" json:"to"`
}

// MQTTConfig configures the MQTT bridge
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Broker      string `yaml:"broker" json:"broker"`
	ClientID    string `yaml:"clientId" json:"clientId"`
	Username    string `yaml:"username" json:"username"`
	Password    string `yaml:"password" json:"-"`
	TopicPrefix string `yaml:"topicPrefix" json:"topicPrefix"`
	QoS         byte   `yaml:"qos" json:"qos"`
}

// HTTPConfig configures the HTTP operator API
type HTTPConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Addr     string `yaml:"addr" json:"addr"`
	Token    string `yaml:"token" json:"-"`
	MaxConns int    `yaml:"maxConns" json:"maxConns"`
}

// Default returns the configuration used when no file exists
func Default() Config {
	return Config{
		Watering: WateringConfig{
			IntervalSeconds: 3600,
			AmountMl:        50,
		},
		Moisture: MoistureConfig{
			Enabled:          true,
			ThresholdPercent: 30,
		},
		Tank: TankConfig{
			CapacityMl: 500,
		},
		Pump: PumpConfig{
			Pin:           "40", // BCM 21
			SecondsPerMl:  0.4,
			MaxRunSeconds: 300,
		},
		Sensors: SensorsConfig{
			Driver:          DriverRaspi,
			I2CBus:          1,
			I2CAddress:      0x48,
			MoistureChannel: 0,
			TankChannel:     1,
			ADCMax:          26500,
			Simulated: SimulatedConfig{
				MoisturePercent: 20,
				TankMl:          500,
			},
		},
		Paths: PathsConfig{
			StatusFile:   ".plantpot/status.json",
			CommandFile:  ".plantpot/command.json",
			DatabaseFile: ".plantpot/plantpot.db",
			PidFile:      ".plantpot/plantpot.pid",
			LogFile:      ".plantpot/plantpot.log",
			SocketFile:   ".plantpot/plantpot.sock",
		},
		Notify: NotifyConfig{
			MinIntervalSeconds: 3600,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "plantpot",
			TopicPrefix: "plantpot",
			QoS:         1,
		},
		HTTP: HTTPConfig{
			Addr:     "127.0.0.1:8088",
			MaxConns: 16,
		},
	}
}

// Interval returns the watering interval as a duration
func (c Config) Interval() time.Duration {
	return time.Duration(c.Watering.IntervalSeconds) * time.Second
}

// PumpDuration converts a volume into a pump run time using the flow calibration
func (c Config) PumpDuration(amountMl int) time.Duration {
	if amountMl <= 0 || c.Pump.SecondsPerMl <= 0 {
		return 0
	}
	return time.Duration(float64(amountMl) * c.Pump.SecondsPerMl * float64(time.Second))
}

// MaxRun caps a single pump activation
func (c Config) MaxRun() time.Duration {
	if c.Pump.MaxRunSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Pump.MaxRunSeconds) * time.Second
}

// CheckEngine reports whether the engine can run with this configuration
func (c Config) CheckEngine() error {
	if c.Watering.IntervalSeconds <= 0 {
		return perrors.Wrapf(perrors.ErrConfigInvalid, "watering interval must be positive, got %d", c.Watering.IntervalSeconds)
	}
	if c.Watering.AmountMl <= 0 {
		return perrors.Wrapf(perrors.ErrConfigInvalid, "watering amount must be positive, got %d", c.Watering.AmountMl)
	}
	return nil
}

// Validate checks every section and returns all problems found
func (c Config) Validate() []error {
	var errs []error
	if err := c.CheckEngine(); err != nil {
		errs = append(errs, err)
	}
	if c.Moisture.ThresholdPercent < 0 || c.Moisture.ThresholdPercent > 100 {
		errs = append(errs, fmt.Errorf("moisture.thresholdPercent must be between 0 and 100, got %d", c.Moisture.ThresholdPercent))
	}
	if c.Tank.CapacityMl <= 0 {
		errs = append(errs, fmt.Errorf("tank.capacityMl must be positive, got %v", c.Tank.CapacityMl))
	}
	if c.Pump.SecondsPerMl <= 0 {
		errs = append(errs, fmt.Errorf("pump.secondsPerMl must be positive, got %v", c.Pump.SecondsPerMl))
	}
	switch c.Sensors.Driver {
	case DriverRaspi:
		if c.Sensors.ADCMax <= 0 {
			errs = append(errs, fmt.Errorf("sensors.adcMax must be positive, got %d", c.Sensors.ADCMax))
		}
		for name, ch := range map[string]int{"moistureChannel": c.Sensors.MoistureChannel, "tankChannel": c.Sensors.TankChannel} {
			if ch < 0 || ch > 3 {
				errs = append(errs, fmt.Errorf("sensors.%s must be between 0 and 3, got %d", name, ch))
			}
		}
		if c.Pump.Pin == "" {
			errs = append(errs, fmt.Errorf("pump.pin is required for the %s driver", DriverRaspi))
		}
	case DriverSimulated:
	default:
		errs = append(errs, fmt.Errorf("sensors.driver must be %q or %q, got %q", DriverRaspi, DriverSimulated, c.Sensors.Driver))
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker is required when mqtt is enabled"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr is required when http is enabled"))
	}
	return errs
}

// JoinErrors flattens Validate output into a single error
func JoinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return perrors.Wrap(perrors.ErrConfigInvalid, strings.Join(msgs, "; "))
}

// Load reads the configuration at path. A missing or corrupt file is replaced with
// defaults, the corrupt original is kept next to it with a .bak suffix. Files ending
// in .json are read in the legacy single-entry list format.
func Load(path string) (Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadLegacy(path)
	}

	//nolint:gosec // G304: config path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		log.Info("%s not found, writing default configuration", path)
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}

	cfg, err := Parse(data)
	if err != nil {
		log.Error("%s is corrupted (%v), restoring defaults", path, err)
		if err := os.Rename(path, path+".bak"); err != nil {
			log.ErrorH2("Failed to keep corrupted config: %v", err)
		}
		cfg = Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults so omitted keys keep their default values
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, fmt.Errorf("config is empty")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration atomically
func Save(path string, cfg Config) error {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return SaveLegacy(path, cfg)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, data, 0600); err != nil {
		return fmt.Errorf("failed to save config %s: %w", path, err)
	}
	return nil
}
