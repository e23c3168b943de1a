package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorType(t *testing.T) {
	assert.Equal(t, SensorType("panel_current"), SensorPanelCurrent)
	assert.Equal(t, "mA", SensorCatalog[SensorPanelCurrent].Unit)
}

func TestReading(t *testing.T) {
	ts := time.Date(2024, 11, 21, 12, 0, 0, 0, time.UTC)
	r := Reading{
		Timestamp: ts,
		SensorID:  "sensor.ina219_current",
		Type:      SensorPanelCurrent,
		Value:     14.2,
		Unit:      "mA",
	}

	assert.Equal(t, ts, r.Timestamp)
	assert.Equal(t, SensorPanelCurrent, r.Type)
	assert.InDelta(t, 14.2, r.Value, 0.001)
}

func TestDefaultLoads_Schedule(t *testing.T) {
	loads := DefaultLoads()
	require.Len(t, loads, 6)

	byClass := make(map[LoadClass]LoadSpec)
	for _, l := range loads {
		byClass[l.Class] = l
	}

	tests := []struct {
		class LoadClass
		hour  int
		want  bool
	}{
		{LoadLight, 5, false},
		{LoadLight, 6, true},
		{LoadLight, 9, false},
		{LoadLight, 23, true},
		{LoadFridge, 3, true},
		{LoadAC, 9, false},
		{LoadAC, 10, true},
		{LoadAC, 22, false},
		{LoadDryer, 16, true},
		{LoadDryer, 17, false},
		{LoadDishwasher, 10, true},
		{LoadDishwasher, 12, false},
		{LoadDishwasher, 17, true},
		{LoadTV, 19, true},
		{LoadTV, 22, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, byClass[tt.class].ActiveAt(tt.hour), "%s at %d", tt.class, tt.hour)
	}

	assert.Equal(t, 2000.0, byClass[LoadAC].Watts)
	assert.Equal(t, 1000.0, byClass[LoadDishwasher].Watts)
}

func TestParseLoadClass(t *testing.T) {
	assert.Equal(t, LoadTV, ParseLoadClass(" TV "))
	assert.Equal(t, LoadClass("sauna"), ParseLoadClass("sauna"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("sun")
	require.NoError(t, err)
	assert.Equal(t, ModeSimulatedSun, m)

	m, err = ParseMode(string(ModeCalibratedSensor))
	require.NoError(t, err)
	assert.Equal(t, ModeCalibratedSensor, m)

	_, err = ParseMode("moon")
	assert.Error(t, err)
}
