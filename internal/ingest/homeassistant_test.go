package ingest

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microgrid_twin/internal/model"
)

func TestHomeAssistantParser_Parse(t *testing.T) {
	input := `entity_id,state,last_changed
sensor.panel_bus_current,3.25,2025-06-21T12:00:00.000Z
sensor.panel_bus_current,12.5,2025-06-21T13:00:00.000Z
sensor.panel_bus_current,8.75,2025-06-21T14:00:00.000Z`

	parser := NewHomeAssistantParser(model.SensorPanelCurrent, "mA")
	readings, err := parser.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 3)

	assert.Equal(t, "sensor.panel_bus_current", readings[0].SensorID)
	assert.Equal(t, model.SensorPanelCurrent, readings[0].Type)
	assert.InDelta(t, 3.25, readings[0].Value, 0.001)
	assert.Equal(t, "mA", readings[0].Unit)
	assert.Equal(t, time.Date(2025, 6, 21, 12, 0, 0, 0, time.UTC), readings[0].Timestamp)

	assert.InDelta(t, 12.5, readings[1].Value, 0.001)
	assert.Equal(t, time.Date(2025, 6, 21, 13, 0, 0, 0, time.UTC), readings[1].Timestamp)
}

func TestHomeAssistantParser_SkipsUnavailable(t *testing.T) {
	input := `entity_id,state,last_changed
sensor.panel_bus_current,5,2025-06-21T13:00:00.000Z
sensor.panel_bus_current,unavailable,2025-06-21T14:00:00.000Z
sensor.panel_bus_current,7,2025-06-21T15:00:00.000Z`

	parser := NewHomeAssistantParser(model.SensorPanelCurrent, "mA")
	readings, err := parser.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.InDelta(t, 5, readings[0].Value, 0.001)
	assert.InDelta(t, 7, readings[1].Value, 0.001)
}

func TestHomeAssistantParser_SortsByTimestamp(t *testing.T) {
	input := `entity_id,state,last_changed
sensor.panel_bus_current,2,2025-06-21T15:00:00.000Z
sensor.panel_bus_current,1,2025-06-21T09:00:00.000Z`

	readings, err := NewHomeAssistantParser(model.SensorPanelCurrent, "mA").Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.InDelta(t, 1, readings[0].Value, 0.001)
}

func TestHomeAssistantParser_EntityFilter(t *testing.T) {
	input := `entity_id,state,last_changed
sensor.panel_bus_current,4,2025-06-21T09:00:00.000Z
sensor.bus_voltage,190,2025-06-21T09:00:00.000Z`

	parser := NewHomeAssistantParser(model.SensorPanelCurrent, "mA")
	parser.Entity = "sensor.panel_bus_current"
	readings, err := parser.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "sensor.panel_bus_current", readings[0].SensorID)
}

func TestHomeAssistantParser_InvalidHeader(t *testing.T) {
	input := `wrong_col,state,last_changed
sensor.panel_bus_current,4,2025-06-21T13:00:00.000Z`

	parser := NewHomeAssistantParser(model.SensorPanelCurrent, "mA")
	_, err := parser.Parse(strings.NewReader(input))

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "entity_id")
}

func TestHomeAssistantParser_EmptyInput(t *testing.T) {
	parser := NewHomeAssistantParser(model.SensorPanelCurrent, "mA")
	_, err := parser.Parse(strings.NewReader(""))

	assert.Error(t, err)
}

func TestHomeAssistantParser_TimestampLayouts(t *testing.T) {
	input := `entity_id,state,last_changed
sensor.panel_bus_current,321,2026-02-11T18:49:18.424Z
sensor.panel_bus_current,322,2026-02-11 19:00:00`

	parser := NewHomeAssistantParser(model.SensorPanelCurrent, "mA")
	readings, err := parser.Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, 2026, readings[0].Timestamp.Year())
	assert.Equal(t, 19, readings[1].Timestamp.Hour())
}

func TestParseFile_SampleFile(t *testing.T) {
	parser := NewHomeAssistantParser(model.SensorPanelCurrent, "mA")
	parser.Entity = "sensor.panel_bus_current"
	readings, err := ParseFile(parser, filepath.Join("testdata", "panel_current_sample.csv"))

	require.NoError(t, err)
	require.Len(t, readings, 9)
	assert.InDelta(t, 0, readings[0].Value, 0.001)
	assert.InDelta(t, 19.7, readings[4].Value, 0.001)
	for _, r := range readings {
		assert.Equal(t, model.SensorPanelCurrent, r.Type)
	}
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(NewHomeAssistantParser(model.SensorPanelCurrent, "mA"), "testdata/nope.csv")
	assert.Error(t, err)
}

func TestNewHomeAssistantParser_CatalogUnit(t *testing.T) {
	assert.Equal(t, "mA", NewHomeAssistantParser(model.SensorPanelCurrent, "").Unit)
	assert.Equal(t, "V", NewHomeAssistantParser(model.SensorBusVoltage, "").Unit)
	assert.Equal(t, "A", NewHomeAssistantParser(model.SensorPanelCurrent, "A").Unit)
}
