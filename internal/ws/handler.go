package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"microgrid_twin/internal/log"
	"microgrid_twin/internal/model"
	"microgrid_twin/internal/simulator"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

var errUnknownTarget = errors.New("unknown id or load")

// Handler manages WebSocket connections and routes messages to the engine.
type Handler struct {
	hub    *Hub
	engine *simulator.Engine
}

func NewHandler(hub *Hub, engine *simulator.Engine) *Handler {
	return &Handler{hub: hub, engine: engine}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Ctx(ctx).Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.hub.Register(client)
	go client.writePump()

	h.sendTo(client, TypeSettingsUpdate, h.engine.Settings())
	h.sendTo(client, TypeSimState, h.engine.State())
	h.sendTo(client, TypeTelemetryUpdate, h.engine.Snapshot())

	h.readPump(ctx, client)
}

func (h *Handler) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.hub.Unregister(c)
		c.conn.Close()
	}()

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Ctx(ctx).Warn("websocket read error", "error", err)
			}
			return
		}

		h.handleMessage(ctx, c, msg)
	}
}

func (h *Handler) handleMessage(ctx context.Context, c *Client, msg []byte) {
	var env Envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		log.Ctx(ctx).Debug("invalid message", "error", err)
		h.sendTo(c, TypeError, ErrorPayload{Message: "invalid message"})
		return
	}

	if err := h.dispatch(env); err != nil {
		log.Ctx(ctx).Debug("rejected message", slog.String("type", env.Type), slog.Any("error", err))
		h.sendTo(c, TypeError, ErrorPayload{Request: env.Type, Message: err.Error()})
	}
}

// dispatch applies one command to the engine. Settings changes are broadcast
// to every client; lifecycle changes reach them through the bridge.
func (h *Handler) dispatch(env Envelope) error {
	switch env.Type {
	case TypeSimStart:
		var p StartPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		mode := model.ModeSimulatedSun
		if p.Mode != "" {
			var err error
			if mode, err = model.ParseMode(p.Mode); err != nil {
				return err
			}
		}
		return h.engine.Start(p.DurationSeconds, mode)

	case TypeSimStop:
		h.engine.Stop()
		return nil

	case TypePanelSet, TypeCellSet:
		var p UnitPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		set := h.engine.SetPanel
		if env.Type == TypeCellSet {
			set = h.engine.SetCell
		}
		if !set(p.ID, p.Enabled) {
			return fmt.Errorf("%w: %d", errUnknownTarget, p.ID)
		}

	case TypeLoadSet:
		var p LoadPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		// Ignored while the automatic schedule is in control.
		h.engine.SetLoad(model.ParseLoadClass(p.Load), p.Enabled)

	case TypeLoadAuto:
		var p AutoPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		h.engine.SetAutoSchedule(p.Enabled)

	case TypeCalibrationSet:
		var p CalibrationPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		if err := h.engine.SetCalibrationMultiplier(p.Multiplier); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown message type: %s", env.Type)
	}

	h.broadcastSettings()
	return nil
}

func decode(env Envelope, v any) error {
	if len(env.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", env.Type, err)
	}
	return nil
}

func (h *Handler) broadcastSettings() {
	msg, err := NewEnvelope(TypeSettingsUpdate, h.engine.Settings())
	if err != nil {
		log.Ctx(context.Background()).Error("failed to marshal settings", "error", err)
		return
	}
	h.hub.Broadcast(msg)
}

func (h *Handler) sendTo(c *Client, msgType string, payload any) {
	msg, err := NewEnvelope(msgType, payload)
	if err != nil {
		log.Ctx(context.Background()).Error("failed to marshal message", "type", msgType, "error", err)
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}
