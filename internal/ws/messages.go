package ws

import (
	"encoding/json"

	"microgrid_twin/internal/model"
	"microgrid_twin/internal/simulator"
)

// Envelope wraps all WebSocket messages with a type discriminator.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client -> Server messages

type StartPayload struct {
	DurationSeconds int    `json:"duration_seconds"`
	Mode            string `json:"mode"`
}

type UnitPayload struct {
	ID      int  `json:"id"`
	Enabled bool `json:"enabled"`
}

type LoadPayload struct {
	Load    string `json:"load"`
	Enabled bool   `json:"enabled"`
}

type AutoPayload struct {
	Enabled bool `json:"enabled"`
}

type CalibrationPayload struct {
	Multiplier float64 `json:"multiplier"`
}

// Server -> Client messages

type SimStatePayload = simulator.State

type TelemetryPayload = model.Snapshot

type OverviewPayload = model.Overview

type SettingsPayload = simulator.Settings

type ErrorPayload struct {
	Request string `json:"request"`
	Message string `json:"message"`
}

// Message type constants
const (
	// Client -> Server
	TypeSimStart       = "sim:start"
	TypeSimStop        = "sim:stop"
	TypePanelSet       = "panel:set"
	TypeCellSet        = "cell:set"
	TypeLoadSet        = "load:set"
	TypeLoadAuto       = "load:auto"
	TypeCalibrationSet = "calibration:set"

	// Server -> Client
	TypeSimState        = "sim:state"
	TypeTelemetryUpdate = "telemetry:update"
	TypeOverviewUpdate  = "overview:update"
	TypeSettingsUpdate  = "settings:update"
	TypeError           = "error"
)

func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
