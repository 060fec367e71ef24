package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Setting describes one operator-editable key
type Setting struct {
	Key   string
	Help  string
	Min   float64
	Max   float64
	Step  float64
	get   func(c *Config) string
	apply func(c *Config, v string) error
}

// Get returns the current value of the setting as text
func (s Setting) Get(c Config) string {
	return s.get(&c)
}

// Apply parses v, range-checks it and stores it on c
func (s Setting) Apply(c *Config, v string) error {
	return s.apply(c, strings.TrimSpace(v))
}

func intSetting(key, help string, lo, hi, step float64, field func(c *Config) *int) Setting {
	return Setting{
		Key: key, Help: help, Min: lo, Max: hi, Step: step,
		get: func(c *Config) string { return strconv.Itoa(*field(c)) },
		apply: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s must be an integer: %w", key, err)
			}
			if float64(n) < lo || float64(n) > hi {
				return fmt.Errorf("%s must be between %v and %v, got %d", key, lo, hi, n)
			}
			*field(c) = n
			return nil
		},
	}
}

func floatSetting(key, help string, lo, hi float64, field func(c *Config) *float64) Setting {
	return Setting{
		Key: key, Help: help, Min: lo, Max: hi,
		get: func(c *Config) string { return strconv.FormatFloat(*field(c), 'f', -1, 64) },
		apply: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("%s must be a number: %w", key, err)
			}
			if f < lo || f > hi {
				return fmt.Errorf("%s must be between %v and %v, got %v", key, lo, hi, f)
			}
			*field(c) = f
			return nil
		},
	}
}

func boolSetting(key, help string, field func(c *Config) *bool) Setting {
	return Setting{
		Key: key, Help: help,
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		apply: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s must be true or false: %w", key, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func stringSetting(key, help string, field func(c *Config) *string) Setting {
	return Setting{
		Key: key, Help: help,
		get: func(c *Config) string { return *field(c) },
		apply: func(c *Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

// Settings lists the keys `plantpot config set` and `config edit` understand.
// Ranges match the on-device settings menu.
var Settings = []Setting{
	intSetting("watering.amountMl", "Watering amount (ml)", 10, 500, 10,
		func(c *Config) *int { return &c.Watering.AmountMl }),
	intSetting("watering.intervalSeconds", "Watering interval (seconds)", 60, 86400, 3600,
		func(c *Config) *int { return &c.Watering.IntervalSeconds }),
	boolSetting("moisture.enabled", "Use the soil moisture sensor",
		func(c *Config) *bool { return &c.Moisture.Enabled }),
	intSetting("moisture.thresholdPercent", "Water only below this moisture (%)", 0, 100, 5,
		func(c *Config) *int { return &c.Moisture.ThresholdPercent }),
	floatSetting("tank.capacityMl", "Tank capacity (ml)", 1, 100000,
		func(c *Config) *float64 { return &c.Tank.CapacityMl }),
	floatSetting("pump.secondsPerMl", "Pump seconds per ml", 0.001, 60,
		func(c *Config) *float64 { return &c.Pump.SecondsPerMl }),
	stringSetting("pump.pin", "Pump GPIO header pin",
		func(c *Config) *string { return &c.Pump.Pin }),
	stringSetting("sensors.driver", "Sensor driver (raspi or simulated)",
		func(c *Config) *string { return &c.Sensors.Driver }),
	stringSetting("notify.discordWebhookUrl", "Discord webhook URL",
		func(c *Config) *string { return &c.Notify.DiscordWebhookURL }),
	stringSetting("notify.webhook.url", "Generic webhook URL",
		func(c *Config) *string { return &c.Notify.Webhook.URL }),
	boolSetting("mqtt.enabled", "Enable the MQTT bridge",
		func(c *Config) *bool { return &c.MQTT.Enabled }),
	stringSetting("mqtt.broker", "MQTT broker URL",
		func(c *Config) *string { return &c.MQTT.Broker }),
	boolSetting("http.enabled", "Enable the HTTP API",
		func(c *Config) *bool { return &c.HTTP.Enabled }),
	stringSetting("http.addr", "HTTP API listen address",
		func(c *Config) *string { return &c.HTTP.Addr }),
}

// Lookup finds a setting by key
func Lookup(key string) (Setting, bool) {
	for _, s := range Settings {
		if strings.EqualFold(s.Key, key) {
			return s, true
		}
	}
	return Setting{}, false
}

// SettingKeys returns all known keys in sorted order
func SettingKeys() []string {
	keys := make([]string, 0, len(Settings))
	for _, s := range Settings {
		keys = append(keys, s.Key)
	}
	sort.Strings(keys)
	return keys
}

// Set applies a single key=value change
func (c *Config) Set(key, value string) error {
	s, ok := Lookup(key)
	if !ok {
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(SettingKeys(), ", "))
	}
	return s.Apply(c, value)
}
