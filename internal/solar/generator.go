// Package solar models the panel array: the daylight voltage curve and the
// two ways of producing current (synthetic sun or a calibrated sensor).
package solar

import (
	"microgrid_twin/internal/model"
	"microgrid_twin/internal/noise"
	"microgrid_twin/internal/sensor"
)

// Input is everything the generator needs for one recomputation.
type Input struct {
	Hour                  float64
	Panels                int
	Mode                  model.Mode
	CalibrationMultiplier float64
}

// Output is the instantaneous array reading.
type Output struct {
	Voltage    float64
	Current    float64
	Power      float64
	Irradiance float64
}

// Generator produces array output. It is not safe for concurrent use; the
// engine serializes calls.
type Generator struct {
	sensor sensor.CurrentSensor
	rand   noise.Source
}

func NewGenerator(s sensor.CurrentSensor, src noise.Source) *Generator {
	if s == nil {
		s = sensor.None{}
	}
	return &Generator{sensor: s, rand: src}
}

// Generate computes array output for in.Hour.
func (g *Generator) Generate(in Input) Output {
	if in.Panels <= 0 {
		return Output{}
	}

	var perPanel, irradiance float64
	switch in.Mode {
	case model.ModeCalibratedSensor:
		perPanel, irradiance = g.calibrated(in)
	default:
		perPanel, irradiance = g.simulated(in)
	}

	voltage := g.voltage(in.Hour)
	total := perPanel * float64(in.Panels)
	return Output{
		Voltage:    voltage,
		Current:    total,
		Power:      voltage * total,
		Irradiance: irradiance,
	}
}

func (g *Generator) simulated(in Input) (perPanel, irradiance float64) {
	irradiance = noise.Jitter(g.rand, HalfSine(in.Hour), irradianceNoise)
	irradiance = noise.Cloud(g.rand, irradiance)
	irradiance = Clamp(irradiance, 0, 1)
	return PanelCurrent(in.Hour, irradiance), irradiance
}

// calibrated spreads one shared-bus measurement across the parallel panels.
func (g *Generator) calibrated(in Input) (perPanel, irradiance float64) {
	mA := sensor.Sanitize(g.sensor.ReadCurrentMilliamps())
	perPanel = mA * in.CalibrationMultiplier / 1000 / float64(in.Panels)
	return perPanel, Clamp(perPanel/peakPanelAmps, 0, 1)
}

func (g *Generator) voltage(hour float64) float64 {
	v := BaseVoltage(hour)
	if v <= 0 {
		return 0
	}
	return Clamp(noise.Jitter(g.rand, v, voltageJitter), 0, voltageCeiling)
}
