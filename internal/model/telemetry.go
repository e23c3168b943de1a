package model

import (
	"fmt"
	"time"
)

// Mode selects how panel current is produced.
type Mode string

const (
	// ModeSimulatedSun derives current from a synthetic irradiance curve.
	ModeSimulatedSun Mode = "simulated_sun"
	// ModeCalibratedSensor scales a live current measurement.
	ModeCalibratedSensor Mode = "calibrated_sensor"
)

// ParseMode accepts the canonical names plus the boolean-ish aliases the
// front end sends ("sun", "sensor").
func ParseMode(s string) (Mode, error) {
	switch s {
	case string(ModeSimulatedSun), "sun", "simulate":
		return ModeSimulatedSun, nil
	case string(ModeCalibratedSensor), "sensor", "calibration":
		return ModeCalibratedSensor, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Telemetry is the instantaneous reading recomputed once per half-hour step.
type Telemetry struct {
	Voltage        float64 `json:"voltage"`
	Current        float64 `json:"current"`
	PowerGenerated float64 `json:"powerGenerated"`
	PowerLoad      float64 `json:"powerLoad"`
	PowerNet       float64 `json:"powerNet"`
	BatteryLevel   float64 `json:"batteryLevel"`
	Hour           int     `json:"hour"`
	Minute         int     `json:"minute"`
	Irradiance     float64 `json:"irradiance"`
}

// Snapshot is what monitoring clients poll: telemetry plus run status.
type Snapshot struct {
	Telemetry
	Running         bool               `json:"isRunning"`
	Progress        float64            `json:"progress"`
	Mode            Mode               `json:"mode"`
	RunID           string             `json:"runId,omitempty"`
	AutoToggleLoads bool               `json:"autoToggleLoads"`
	Loads           map[LoadClass]bool `json:"loads"`
	ActivePanels    int                `json:"activePanels"`
	ActiveCells     int                `json:"activeCells"`
}

// Tariff prices grid energy in one currency.
type Tariff struct {
	Currency     string  `json:"currency" mapstructure:"currency"`
	ImportPerKWh float64 `json:"import_per_kwh" mapstructure:"import_per_kwh"`
	ExportPerKWh float64 `json:"export_per_kwh" mapstructure:"export_per_kwh"`
}

// DefaultTariffs are the reference grid prices.
func DefaultTariffs() []Tariff {
	return []Tariff{
		{Currency: "ZAR", ImportPerKWh: 3.50, ExportPerKWh: 1.17},
		{Currency: "EUR", ImportPerKWh: 0.20, ExportPerKWh: 0.06},
	}
}

// Overview is the cumulative result of a run.
type Overview struct {
	Autarky           float64            `json:"autarky"`
	EnergyFromGridKWh float64            `json:"energyFromGrid"`
	EnergyToGridKWh   float64            `json:"energyToGrid"`
	EnergyConsumedKWh float64            `json:"energyConsumed"`
	Cost              map[string]float64 `json:"cost"`
	Revenue           map[string]float64 `json:"revenue"`
}

// Sample is one recomputed step of a run, as recorded and published.
type Sample struct {
	RunID     string    `json:"runId"`
	Step      int       `json:"step"`
	Seq       int       `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Telemetry Telemetry `json:"telemetry"`
	Overview  Overview  `json:"overview"`
}
