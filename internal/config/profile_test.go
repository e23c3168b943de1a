package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/noise"
	"microgrid_twin/internal/simulator"
)

func writeProfile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadProfile_Defaults(t *testing.T) {
	p, err := LoadProfile("")
	require.NoError(t, err)

	assert.InDelta(t, 6, p.EpochHour, 1e-9)
	assert.InDelta(t, 600, p.CalibrationMultiplier, 1e-9)
	assert.Equal(t, simulator.DefaultBatteryConfig, p.Battery)
	assert.Equal(t, model.DefaultLoads(), p.Loads)
	assert.Equal(t, model.DefaultTariffs(), p.Tariffs)
	assert.Equal(t, []int{1}, p.Panels)
	assert.Equal(t, []int{1}, p.Cells)
}

func TestLoadProfile_YAML(t *testing.T) {
	path := writeProfile(t, "rig.yaml", `
epoch_hour: 5.5
calibration_multiplier: 450
battery:
  cell_capacity_wh: 2500
  charge_efficiency: 0.9
  baseline_percent: 40
panels: [1, 2, 3]
cells: [2]
auto_toggle_loads: true
loads:
  - class: heater
    name: Heater
    watts: 1200
    windows:
      - {start: 5, end: 8}
tariffs:
  - currency: USD
    import_per_kwh: 0.3
    export_per_kwh: 0.08
`)

	p, err := LoadProfile(path)
	require.NoError(t, err)

	assert.InDelta(t, 5.5, p.EpochHour, 1e-9)
	assert.InDelta(t, 450, p.CalibrationMultiplier, 1e-9)
	assert.InDelta(t, 2500, p.Battery.CellCapacityWh, 1e-9)
	assert.InDelta(t, 0.9, p.Battery.ChargeEfficiency, 1e-9)
	assert.InDelta(t, 40, p.Battery.BaselinePercent, 1e-9)
	assert.Equal(t, []int{1, 2, 3}, p.Panels)
	assert.Equal(t, []int{2}, p.Cells)
	assert.True(t, p.AutoToggleLoads)
	require.Len(t, p.Loads, 1)
	assert.Equal(t, model.LoadClass("heater"), p.Loads[0].Class)
	assert.Equal(t, []model.Window{{Start: 5, End: 8}}, p.Loads[0].Windows)
	require.Len(t, p.Tariffs, 1)
	assert.Equal(t, "USD", p.Tariffs[0].Currency)
}

func TestLoadProfile_EnvOverride(t *testing.T) {
	t.Setenv("MICROGRID_BATTERY_BASELINE_PERCENT", "75")
	p, err := LoadProfile("")
	require.NoError(t, err)
	assert.InDelta(t, 75, p.Battery.BaselinePercent, 1e-9)
}

func TestLoadProfile_Missing(t *testing.T) {
	_, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadProfile_Invalid(t *testing.T) {
	path := writeProfile(t, "bad.yaml", `
epoch_hour: 30
battery:
  charge_efficiency: 1.5
panels: [7]
`)
	_, err := LoadProfile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "epoch_hour")
	assert.Contains(t, err.Error(), "charge_efficiency")
	assert.Contains(t, err.Error(), "unit id 7")
}

func TestProfile_ValidateLoads(t *testing.T) {
	p := DefaultProfile()
	p.Loads = append(p.Loads, model.LoadSpec{Class: model.LoadTV, Watts: -1, Windows: []model.Window{{Start: 9, End: 3}}})
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "declared twice")
	assert.Contains(t, err.Error(), "negative watts")
	assert.Contains(t, err.Error(), "window")
}

func TestProfile_Apply(t *testing.T) {
	p := DefaultProfile()
	p.Panels = []int{2, 4}
	p.Cells = nil
	p.AutoToggleLoads = true

	e := simulator.New(p.Simulator(), nil, noise.Fixed(0.5), nil)
	p.Apply(e)

	s := e.Settings()
	assert.Equal(t, []bool{false, true, false, true}, s.Panels)
	assert.Equal(t, []bool{false, false, false, false}, s.Cells)
	assert.True(t, s.AutoToggleLoads)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, SplitList(" a:9092, ,b:9092 "))
	assert.Nil(t, SplitList(""))
}
