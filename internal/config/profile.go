// Package config assembles process flags and the simulation profile.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/simulator"
)

// EnvPrefix is prepended to environment overrides of profile keys, e.g.
// MICROGRID_EPOCH_HOUR or MICROGRID_BATTERY_BASELINE_PERCENT.
const EnvPrefix = "MICROGRID"

// Profile describes the rig: battery, household loads, tariffs and which
// panels and cells are enabled at boot.
type Profile struct {
	EpochHour             float64                 `mapstructure:"epoch_hour"`
	CalibrationMultiplier float64                 `mapstructure:"calibration_multiplier"`
	Battery               simulator.BatteryConfig `mapstructure:"battery"`
	Loads                 []model.LoadSpec        `mapstructure:"loads"`
	Tariffs               []model.Tariff          `mapstructure:"tariffs"`
	Panels                []int                   `mapstructure:"panels"`
	Cells                 []int                   `mapstructure:"cells"`
	AutoToggleLoads       bool                    `mapstructure:"auto_toggle_loads"`
}

// DefaultProfile matches simulator.DefaultConfig with panel 1 and cell 1
// enabled.
func DefaultProfile() Profile {
	def := simulator.DefaultConfig()
	return Profile{
		EpochHour:             def.EpochHour,
		CalibrationMultiplier: def.CalibrationMultiplier,
		Battery:               def.Battery,
		Loads:                 def.Loads,
		Tariffs:               def.Tariffs,
		Panels:                []int{1},
		Cells:                 []int{1},
	}
}

func setDefaults(v *viper.Viper) {
	def := DefaultProfile()
	v.SetDefault("epoch_hour", def.EpochHour)
	v.SetDefault("calibration_multiplier", def.CalibrationMultiplier)
	v.SetDefault("battery.cell_capacity_wh", def.Battery.CellCapacityWh)
	v.SetDefault("battery.charge_efficiency", def.Battery.ChargeEfficiency)
	v.SetDefault("battery.baseline_percent", def.Battery.BaselinePercent)
	v.SetDefault("panels", def.Panels)
	v.SetDefault("cells", def.Cells)
	v.SetDefault("auto_toggle_loads", false)
}

// LoadProfile reads a YAML, JSON or TOML profile from path. An empty path
// yields the defaults. Environment variables override file values.
func LoadProfile(path string) (Profile, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Profile{}, fmt.Errorf("reading profile %s: %w", path, err)
		}
	}

	var p Profile
	if err := v.Unmarshal(&p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	if len(p.Loads) == 0 {
		p.Loads = model.DefaultLoads()
	}
	if len(p.Tariffs) == 0 {
		p.Tariffs = model.DefaultTariffs()
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate rejects profiles the engine cannot run.
func (p Profile) Validate() error {
	var errs []error
	if p.EpochHour < 0 || p.EpochHour >= 24 {
		errs = append(errs, fmt.Errorf("epoch_hour %v outside [0,24)", p.EpochHour))
	}
	if p.CalibrationMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("calibration_multiplier must be positive"))
	}
	if p.Battery.CellCapacityWh <= 0 {
		errs = append(errs, fmt.Errorf("battery.cell_capacity_wh must be positive"))
	}
	if p.Battery.ChargeEfficiency <= 0 || p.Battery.ChargeEfficiency > 1 {
		errs = append(errs, fmt.Errorf("battery.charge_efficiency %v outside (0,1]", p.Battery.ChargeEfficiency))
	}
	if p.Battery.BaselinePercent < 0 || p.Battery.BaselinePercent > 100 {
		errs = append(errs, fmt.Errorf("battery.baseline_percent %v outside [0,100]", p.Battery.BaselinePercent))
	}

	seen := make(map[model.LoadClass]bool, len(p.Loads))
	for _, l := range p.Loads {
		if l.Class == "" {
			errs = append(errs, fmt.Errorf("load %q has no class", l.Name))
			continue
		}
		if seen[l.Class] {
			errs = append(errs, fmt.Errorf("load %q declared twice", l.Class))
		}
		seen[l.Class] = true
		if l.Watts < 0 {
			errs = append(errs, fmt.Errorf("load %q has negative watts", l.Class))
		}
		for _, w := range l.Windows {
			if w.Start < 0 || w.End > 24 || w.Start >= w.End {
				errs = append(errs, fmt.Errorf("load %q window [%d,%d) invalid", l.Class, w.Start, w.End))
			}
		}
	}

	for _, t := range p.Tariffs {
		if t.Currency == "" {
			errs = append(errs, errors.New("tariff without currency"))
		}
	}
	for _, id := range append(append([]int(nil), p.Panels...), p.Cells...) {
		if id < 1 || id > simulator.UnitCount {
			errs = append(errs, fmt.Errorf("unit id %d outside 1-%d", id, simulator.UnitCount))
		}
	}
	return errors.Join(errs...)
}

// Simulator converts the profile into engine configuration.
func (p Profile) Simulator() simulator.Config {
	return simulator.Config{
		EpochHour:             p.EpochHour,
		Battery:               p.Battery,
		CalibrationMultiplier: p.CalibrationMultiplier,
		Loads:                 p.Loads,
		Tariffs:               p.Tariffs,
	}
}

// Apply sets the boot-time panel, cell and schedule toggles on e.
func (p Profile) Apply(e *simulator.Engine) {
	panels := make(map[int]bool, len(p.Panels))
	for _, id := range p.Panels {
		panels[id] = true
	}
	cells := make(map[int]bool, len(p.Cells))
	for _, id := range p.Cells {
		cells[id] = true
	}
	for id := 1; id <= simulator.UnitCount; id++ {
		e.SetPanel(id, panels[id])
		e.SetCell(id, cells[id])
	}
	e.SetAutoSchedule(p.AutoToggleLoads)
}
