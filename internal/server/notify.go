package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/hub"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/server/middleware"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
)

type notifyRequest struct {
	UserID    string `json:"userId"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	TaskID    string `json:"taskId,omitempty"`
	ProjectID string `json:"projectId,omitempty"`
}

type broadcastRequest struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// canEmit reports whether the principal may drive the emission API
// directly. Only the application's trusted server-side identities
// qualify; members and clients interact through the event router, where
// every action carries its own authorization check.
func canEmit(u domain.User) bool {
	return u.Role == "manager" || u.Role == "service"
}

// notifyHandler lets the application's HTTP side push a personal
// notification, e.g. after assigning a task to a user who is not the
// actor. Delivery is fire-and-forget; 202 only means the push was queued.
func (a *App) notifyHandler(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Type == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	if !canEmit(reqMeta.Principal) {
		a.logger.Warn("Notification push denied",
			slog.String("actor", reqMeta.Principal.ID),
			slog.String("role", reqMeta.Principal.Role),
		)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	a.logger.Debug("HTTP-originated notification",
		slog.String("actor", reqMeta.Principal.ID),
		slog.String("recipient", req.UserID),
		slog.String("type", req.Type),
	)

	a.emitter.EmitNotification(req.UserID, hub.Notification{
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		TaskID:    req.TaskID,
		ProjectID: req.ProjectID,
	})
	w.WriteHeader(http.StatusAccepted)
}

// projectBroadcastHandler pushes an event into a project room from outside
// a live client event, e.g. a REST-triggered bulk update. The actor must
// either hold a trusted emission role or have access to the target
// project — the same relation a room join requires — so this surface can
// never reach a room the caller could not enter over the socket.
func (a *App) projectBroadcastHandler(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectID")
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Event == "" {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	actor := reqMeta.Principal
	allowed := canEmit(actor)
	if !allowed {
		var err error
		allowed, err = a.store.UserHasAccess(r.Context(), actor.ID, projectID)
		if err != nil {
			a.logger.Error("Project access check failed", slog.Any("error", err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
	if !allowed {
		a.logger.Warn("Project broadcast denied",
			slog.String("actor", actor.ID),
			slog.String("projectID", projectID),
		)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	a.emitter.EmitToProject(projectID, req.Event, req.Payload)
	w.WriteHeader(http.StatusAccepted)
}
