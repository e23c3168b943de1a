package ws

import (
	"context"

	"microgrid_twin/internal/log"
	"microgrid_twin/internal/model"
	"microgrid_twin/internal/simulator"
)

// Bridge implements simulator.Callback and broadcasts events to the WebSocket hub.
type Bridge struct {
	hub    *Hub
	engine *simulator.Engine
}

// NewBridge creates a bridge. When engine is set, telemetry broadcasts carry
// the full snapshot (load states, run status) rather than the bare sample.
func NewBridge(hub *Hub, engine *simulator.Engine) *Bridge {
	return &Bridge{hub: hub, engine: engine}
}

// SetEngine attaches the engine once it exists; the engine needs the bridge
// as its callback first.
func (b *Bridge) SetEngine(e *simulator.Engine) {
	b.engine = e
}

func (b *Bridge) OnState(s simulator.State) {
	b.broadcast(TypeSimState, s)
}

func (b *Bridge) OnSample(s model.Sample) {
	snap := model.Snapshot{Telemetry: s.Telemetry, Running: true, RunID: s.RunID}
	if b.engine != nil {
		snap = b.engine.Snapshot()
	}
	b.broadcast(TypeTelemetryUpdate, snap)
	b.broadcast(TypeOverviewUpdate, s.Overview)
}

func (b *Bridge) broadcast(msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		log.Ctx(context.Background()).Error("failed to marshal message", "type", msgType, "error", err)
		return
	}
	b.hub.Broadcast(msg)
}
