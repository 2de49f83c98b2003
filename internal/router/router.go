package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/hub"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/state"
	"github.com/google/uuid"
)

// errUnauthorized marks an event dropped by an authorization check. The
// client receives nothing; the drop is a deliberate choice made visible
// here rather than an error sent over the wire.
var errUnauthorized = errors.New("unauthorized")

// EventRouter is the single dispatch point for inbound client events. It
// is the only place a client-supplied action becomes a state change or a
// broadcast. Errors from handlers are logged and swallowed; they never
// crash the process or the connection.
type EventRouter struct {
	logger  *slog.Logger
	state   state.Manager
	emitter *hub.Emitter
	store   domain.Store
}

func NewEventRouter(logger *slog.Logger, manager state.Manager, emitter *hub.Emitter, store domain.Store) *EventRouter {
	return &EventRouter{
		logger:  logger.With(slog.String("component", "event_router")),
		state:   manager,
		emitter: emitter,
		store:   store,
	}
}

// HandleMessage is wired as the transport's message callback. The read
// pump calls it synchronously, so events from one connection are handled
// in the order they arrived.
func (r *EventRouter) HandleMessage(ctx context.Context, connID uuid.UUID, msg []byte) {
	var clientMsg ClientMessage
	if err := json.Unmarshal(msg, &clientMsg); err != nil {
		r.logger.Warn("Failed to unmarshal client message", slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}

	conn, ok := r.state.GetConnection(connID)
	if !ok || conn.User == nil {
		r.logger.Error("Received event for unknown or unassociated connection", slog.String("connID", connID.String()))
		return
	}

	var err error
	switch clientMsg.Event {
	case evtJoinProject:
		err = r.handleJoinProject(ctx, conn, clientMsg.Payload)
	case evtLeaveProject:
		err = r.handleLeaveProject(conn, clientMsg.Payload)
	case evtTaskUpdate:
		err = r.handleTaskUpdate(ctx, conn, clientMsg.Payload)
	case evtNewComment:
		err = r.handleNewComment(ctx, conn, clientMsg.Payload)
	case evtTypingStart:
		err = r.handleTypingStart(ctx, conn, clientMsg.Payload)
	case evtTypingStop:
		err = r.handleTypingStop(conn, clientMsg.Payload)
	case evtGetOnlineUsers:
		r.handleGetOnlineUsers(conn)
	default:
		r.logger.Warn("Received unknown event", slog.String("event", clientMsg.Event), slog.String("connID", connID.String()))
		return
	}

	if err != nil {
		// Unauthorized events are dropped silently on the wire; the log is
		// the only trace. Data-access failures land here too and must not
		// propagate past the dispatch boundary.
		level := slog.LevelError
		if errors.Is(err, errUnauthorized) || errors.Is(err, domain.ErrNotFound) {
			level = slog.LevelDebug
		}
		r.logger.Log(ctx, level, "Event dropped",
			slog.String("event", clientMsg.Event),
			slog.String("connID", connID.String()),
			slog.String("userID", conn.User.ID),
			slog.Any("error", err),
		)
	}
}
