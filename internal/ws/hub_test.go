package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	payload := SimStatePayload{
		RunID:           "run-1",
		Running:         true,
		DurationSeconds: 48,
	}

	msg, err := NewEnvelope(TypeSimState, payload)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeSimState, env.Type)

	var parsed SimStatePayload
	require.NoError(t, json.Unmarshal(env.Payload, &parsed))
	assert.Equal(t, "run-1", parsed.RunID)
	assert.Equal(t, 48, parsed.DurationSeconds)
	assert.True(t, parsed.Running)
}

func TestNewEnvelope_NoPayload(t *testing.T) {
	msg, err := NewEnvelope(TypeSimStop, nil)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeSimStop, env.Type)
	assert.Nil(t, env.Payload)
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()

	c := &Client{
		hub:  hub,
		send: make(chan []byte, 16),
	}

	hub.Register(c)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister(c)
	assert.Equal(t, 0, hub.ClientCount())

	// second unregister must not close the channel again
	hub.Unregister(c)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()

	c1 := &Client{hub: hub, send: make(chan []byte, 16)}
	c2 := &Client{hub: hub, send: make(chan []byte, 16)}

	hub.Register(c1)
	hub.Register(c2)

	msg := []byte(`{"type":"test"}`)
	hub.Broadcast(msg)

	assert.Equal(t, msg, <-c1.send)
	assert.Equal(t, msg, <-c2.send)
}

func TestHub_BroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte, 1)}
	hub.Register(c)

	hub.Broadcast([]byte("a"))
	hub.Broadcast([]byte("b"))

	assert.Equal(t, []byte("a"), <-c.send)
	assert.Empty(t, c.send)
}

func TestMessageTypes(t *testing.T) {
	assert.Equal(t, "sim:start", TypeSimStart)
	assert.Equal(t, "sim:stop", TypeSimStop)
	assert.Equal(t, "panel:set", TypePanelSet)
	assert.Equal(t, "cell:set", TypeCellSet)
	assert.Equal(t, "load:set", TypeLoadSet)
	assert.Equal(t, "load:auto", TypeLoadAuto)
	assert.Equal(t, "calibration:set", TypeCalibrationSet)
	assert.Equal(t, "sim:state", TypeSimState)
	assert.Equal(t, "telemetry:update", TypeTelemetryUpdate)
	assert.Equal(t, "overview:update", TypeOverviewUpdate)
	assert.Equal(t, "settings:update", TypeSettingsUpdate)
}
