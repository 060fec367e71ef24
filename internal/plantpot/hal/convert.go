package hal

import "math"

// MoisturePercent converts a raw ADC sample into a 0..100 soil moisture reading
func MoisturePercent(raw, adcMax int) int {
	return int(math.Floor(percent(raw, adcMax)))
}

// TankVolumeMl converts a raw level sample into millilitres of a tank of capacityMl
func TankVolumeMl(raw, adcMax int, capacityMl float64) float64 {
	return math.Floor(percent(raw, adcMax)) / 100 * capacityMl
}

func percent(raw, adcMax int) float64 {
	if adcMax <= 0 {
		return 0
	}
	p := float64(raw) / float64(adcMax) * 100
	return math.Max(0, math.Min(100, p))
}
