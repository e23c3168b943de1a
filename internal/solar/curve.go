package solar

import "math"

// Daylight shape shared by both generation modes. Hours are fractional
// hours of the day in [0, 24).
const (
	sunrise     = 6.0
	peakVoltage = 7.0
	noon        = 12.0
	lateVoltage = 17.0
	sunset      = 18.0

	maxOpenVoltage  = 200.0
	noonVoltage     = 180.0
	voltageCeiling  = 220.0
	peakPanelAmps   = 12.0
	voltageJitter   = 5.0
	irradianceNoise = 12.0
)

// Segment is a piece of the daylight curve.
type Segment int

const (
	Night Segment = iota
	Sunrise
	Morning
	Afternoon
	Sunset
)

// NormalizeHour wraps hour into [0, 24).
func NormalizeHour(hour float64) float64 {
	h := math.Mod(hour, 24)
	if h < 0 {
		h += 24
	}
	return h
}

// SegmentAt returns the curve segment and the linear progress [0,1) through it.
func SegmentAt(hour float64) (Segment, float64) {
	h := NormalizeHour(hour)
	switch {
	case h < sunrise || h >= sunset:
		return Night, 0
	case h < peakVoltage:
		return Sunrise, (h - sunrise) / (peakVoltage - sunrise)
	case h < noon:
		return Morning, (h - peakVoltage) / (noon - peakVoltage)
	case h < lateVoltage:
		return Afternoon, (h - noon) / (lateVoltage - noon)
	default:
		return Sunset, (h - lateVoltage) / (sunset - lateVoltage)
	}
}

// BaseVoltage is the un-jittered panel voltage for the hour:
// 0 at night, 0->200 V at sunrise, 200->180 V through the morning,
// 180->200 V through the afternoon and 200->0 V at sunset.
func BaseVoltage(hour float64) float64 {
	seg, p := SegmentAt(hour)
	switch seg {
	case Sunrise:
		return maxOpenVoltage * p
	case Morning:
		return maxOpenVoltage - (maxOpenVoltage-noonVoltage)*p
	case Afternoon:
		return noonVoltage + (maxOpenVoltage-noonVoltage)*p
	case Sunset:
		return maxOpenVoltage * (1 - p)
	}
	return 0
}

// HalfSine is the clear-sky irradiance: sin over [6, 18) peaking at noon.
func HalfSine(hour float64) float64 {
	h := NormalizeHour(hour)
	if h < sunrise || h >= sunset {
		return 0
	}
	return math.Sin((h - sunrise) / (sunset - sunrise) * math.Pi)
}

// PanelCurrent is the per-panel current in SimulatedSun mode: it ramps up
// with irradiance through the morning and back down in the afternoon.
func PanelCurrent(hour, irradiance float64) float64 {
	seg, p := SegmentAt(hour)
	switch seg {
	case Morning:
		return peakPanelAmps * irradiance * p
	case Afternoon:
		return peakPanelAmps * irradiance * (1 - p)
	}
	return 0
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
