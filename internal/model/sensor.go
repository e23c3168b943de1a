package model

import "time"

type SensorType string

const (
	SensorPanelCurrent SensorType = "panel_current"
	SensorBusVoltage   SensorType = "bus_voltage"
)

// SensorInfo holds display name and unit for a sensor type.
type SensorInfo struct {
	Name string
	Unit string
}

// SensorCatalog maps every known SensorType to its display name and unit.
var SensorCatalog = map[SensorType]SensorInfo{
	SensorPanelCurrent: {Name: "Panel Bus Current", Unit: "mA"},
	SensorBusVoltage:   {Name: "Panel Bus Voltage", Unit: "V"},
}

type Reading struct {
	Timestamp time.Time
	SensorID  string
	Type      SensorType
	Value     float64
	Unit      string
}
