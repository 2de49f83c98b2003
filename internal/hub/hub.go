package hub

import (
	"encoding/json"
	"log/slog"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/state"
	"github.com/google/uuid"
)

// Emitter is the only component that pushes bytes to clients. The event
// router uses it for client-triggered broadcasts; HTTP handlers use the
// EmitNotification/EmitToProject surface. Delivery is best-effort,
// at-most-once: an unwritable recipient is skipped, never retried.
type Emitter struct {
	logger *slog.Logger
	state  state.Manager
}

func New(logger *slog.Logger, manager state.Manager) *Emitter {
	return &Emitter{
		logger: logger.With(slog.String("component", "emitter")),
		state:  manager,
	}
}

// Envelope is the outbound wire format.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// ToRoom delivers to every connection currently in the project's room.
// exclude, when non-zero, names a connection to skip — broadcasts caused
// by a client event are never echoed back to their sender.
func (e *Emitter) ToRoom(projectID, event string, payload any, exclude uuid.UUID) {
	e.fanOut(e.state.RoomConnections(projectID), event, payload, exclude)
}

// ToUser delivers to every connection of one principal (the personal
// channel), regardless of room membership.
func (e *Emitter) ToUser(userID, event string, payload any) {
	e.fanOut(e.state.UserConnections(userID), event, payload, uuid.Nil)
}

// ToAll delivers to every connected client. Used only for presence
// transitions.
func (e *Emitter) ToAll(event string, payload any, exclude uuid.UUID) {
	e.fanOut(e.state.AllConnections(), event, payload, exclude)
}

// ToConnection replies directly to a single connection.
func (e *Emitter) ToConnection(sink state.Sink, event string, payload any) {
	msg, ok := e.marshal(event, payload)
	if !ok {
		return
	}
	sink.Send(msg)
}

func (e *Emitter) fanOut(targets []state.Sink, event string, payload any, exclude uuid.UUID) {
	msg, ok := e.marshal(event, payload)
	if !ok {
		return
	}
	sent := 0
	for _, t := range targets {
		if exclude != uuid.Nil && t.ID() == exclude {
			continue
		}
		t.Send(msg)
		sent++
	}
	e.logger.Debug("Fanned out event", slog.String("event", event), slog.Int("recipients", sent))
}

func (e *Emitter) marshal(event string, payload any) ([]byte, bool) {
	msg, err := json.Marshal(Envelope{Event: event, Payload: payload})
	if err != nil {
		e.logger.Error("Failed to marshal outbound event", slog.String("event", event), slog.Any("error", err))
		return nil, false
	}
	return msg, true
}
