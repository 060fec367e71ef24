package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/fileutil"
)

// LegacyEntry is one element of the list stored in the old config.json
type LegacyEntry struct {
	WateringTimer     *int `json:"wateringtimer,omitempty"`
	Timer             *int `json:"timer,omitempty"`
	WateringAmount    *int `json:"wateringamount,omitempty"`
	MoistureMax       *int `json:"moisturemax,omitempty"`
	MoistureSensorUse *int `json:"moisturesensoruse,omitempty"`
}

// Apply copies the fields present in the entry onto cfg
func (e LegacyEntry) Apply(cfg *Config) {
	switch {
	case e.WateringTimer != nil:
		cfg.Watering.IntervalSeconds = *e.WateringTimer
	case e.Timer != nil:
		cfg.Watering.IntervalSeconds = *e.Timer
	}
	if e.WateringAmount != nil {
		cfg.Watering.AmountMl = *e.WateringAmount
	}
	if e.MoistureMax != nil {
		cfg.Moisture.ThresholdPercent = *e.MoistureMax
	}
	if e.MoistureSensorUse != nil {
		cfg.Moisture.Enabled = *e.MoistureSensorUse != 0
	}
}

// ParseLegacy decodes the legacy list format on top of the defaults
func ParseLegacy(data []byte) (Config, error) {
	cfg := Default()

	var entries []LegacyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return cfg, fmt.Errorf("failed to parse legacy config: %w", err)
	}
	if len(entries) == 0 {
		return cfg, fmt.Errorf("legacy config has no entries")
	}
	entries[0].Apply(&cfg)
	return cfg, nil
}

// LoadLegacy reads a legacy config.json, rewriting it with defaults when it is missing
// or corrupt
func LoadLegacy(path string) (Config, error) {
	//nolint:gosec // G304: config path is chosen by the operator
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err == nil {
		cfg, perr := ParseLegacy(data)
		if perr == nil {
			return cfg, nil
		}
		log.Error("%s is corrupted (%v), restoring defaults", path, perr)
	} else {
		log.Info("%s not found, writing default configuration", path)
	}

	cfg := Default()
	if err := SaveLegacy(path, cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SaveLegacy writes the four settings the legacy format knows about
func SaveLegacy(path string, cfg Config) error {
	use := 0
	if cfg.Moisture.Enabled {
		use = 1
	}
	entry := LegacyEntry{
		WateringTimer:     &cfg.Watering.IntervalSeconds,
		WateringAmount:    &cfg.Watering.AmountMl,
		MoistureMax:       &cfg.Moisture.ThresholdPercent,
		MoistureSensorUse: &use,
	}
	if err := fileutil.WriteJSONAtomic(path, []LegacyEntry{entry}); err != nil {
		return fmt.Errorf("failed to save config %s: %w", path, err)
	}
	return nil
}
