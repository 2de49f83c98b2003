package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/hub"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/state"
	"github.com/tidwall/gjson"
)

func (r *EventRouter) handleJoinProject(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	var p projectPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ProjectID == "" {
		return fmt.Errorf("invalid join-project payload: %w", err)
	}

	ok, err := r.store.UserHasAccess(ctx, conn.User.ID, p.ProjectID)
	if err != nil {
		return fmt.Errorf("project access check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("join-project %s: %w", p.ProjectID, errUnauthorized)
	}

	if err := r.state.JoinRoom(conn.ID, p.ProjectID); err != nil {
		return err
	}
	r.logger.Debug("Connection joined project room", slog.String("connID", conn.ID.String()), slog.String("projectID", p.ProjectID))
	return nil
}

func (r *EventRouter) handleLeaveProject(conn *state.Connection, payload json.RawMessage) error {
	var p projectPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.ProjectID == "" {
		return fmt.Errorf("invalid leave-project payload: %w", err)
	}
	// Leaving needs no authorization and is idempotent.
	return r.state.LeaveRoom(conn.ID, p.ProjectID)
}

func (r *EventRouter) handleTaskUpdate(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	var p taskUpdatePayload
	if err := json.Unmarshal(payload, &p); err != nil || p.TaskID == "" {
		return fmt.Errorf("invalid task-update payload: %w", err)
	}
	// The updates object is rebroadcast verbatim; require it to be a JSON
	// object so clients can't smuggle arbitrary scalars into the room.
	if updates := gjson.GetBytes(payload, "updates"); !updates.IsObject() {
		return fmt.Errorf("task-update %s: updates must be an object", p.TaskID)
	}

	task, err := r.authorizeTaskAction(ctx, conn.User.ID, p.TaskID)
	if err != nil {
		return err
	}

	r.emitter.ToRoom(task.ProjectID, hub.EventTaskUpdated, taskUpdatedEvent{
		TaskID:    p.TaskID,
		Updates:   p.Updates,
		UpdatedBy: conn.User.Presence(),
	}, conn.ID)
	return nil
}

func (r *EventRouter) handleNewComment(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	var p commentPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.TaskID == "" || p.Content == "" {
		return fmt.Errorf("invalid new-comment payload: %w", err)
	}

	task, err := r.authorizeTaskAction(ctx, conn.User.ID, p.TaskID)
	if err != nil {
		return err
	}

	// Persist first; an unpersisted comment is never broadcast.
	comment, err := r.store.CreateComment(ctx, p.TaskID, conn.User.ID, p.Content)
	if err != nil {
		return fmt.Errorf("comment persistence failed: %w", err)
	}

	r.emitter.ToRoom(task.ProjectID, hub.EventCommentAdded, comment, conn.ID)

	if task.AssigneeID != "" && task.AssigneeID != conn.User.ID {
		r.emitter.EmitNotification(task.AssigneeID, hub.Notification{
			Type:      "NEW_COMMENT",
			Title:     "New comment",
			Message:   fmt.Sprintf("%s commented on %q", conn.User.Name, task.Title),
			TaskID:    task.ID,
			ProjectID: task.ProjectID,
		})
	}
	return nil
}

func (r *EventRouter) handleTypingStart(ctx context.Context, conn *state.Connection, payload json.RawMessage) error {
	var p typingPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.TaskID == "" {
		return fmt.Errorf("invalid typing-start payload: %w", err)
	}

	task, err := r.store.GetTask(ctx, p.TaskID)
	if err != nil {
		return fmt.Errorf("typing-start %s: %w", p.TaskID, err)
	}
	// Typing is scoped to the task's project room: only a connection that
	// joined the room may set the indicator or broadcast into it.
	if !r.state.InRoom(conn.ID, task.ProjectID) {
		return fmt.Errorf("typing-start %s: %w", p.TaskID, errUnauthorized)
	}

	r.state.SetTyping(p.TaskID, state.TypingEntry{
		ConnID:    conn.ID,
		UserID:    conn.User.ID,
		UserName:  conn.User.Name,
		ProjectID: task.ProjectID,
	})
	r.emitter.ToRoom(task.ProjectID, hub.EventUserTyping, typingEvent{
		TaskID: p.TaskID,
		User:   conn.User.Presence(),
	}, conn.ID)
	return nil
}

func (r *EventRouter) handleTypingStop(conn *state.Connection, payload json.RawMessage) error {
	var p typingPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.TaskID == "" {
		return fmt.Errorf("invalid typing-stop payload: %w", err)
	}

	// Only the current holder may clear the indicator; a displaced typer's
	// late stop must not clear someone else's entry.
	entry, ok := r.state.ClearTyping(p.TaskID, conn.User.ID)
	if !ok {
		return nil
	}
	r.emitter.ToRoom(entry.ProjectID, hub.EventUserStoppedTyping, typingStoppedEvent{
		TaskID: p.TaskID,
		UserID: conn.User.ID,
	}, conn.ID)
	return nil
}

func (r *EventRouter) handleGetOnlineUsers(conn *state.Connection) {
	r.emitter.ToConnection(conn.Transport, hub.EventOnlineUsers, r.state.OnlineUsers())
}

// authorizeTaskAction resolves the task and applies the shared rule for
// task-update and new-comment: assignee, project owner, or project member.
func (r *EventRouter) authorizeTaskAction(ctx context.Context, userID, taskID string) (domain.Task, error) {
	task, err := r.store.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task lookup %s: %w", taskID, err)
	}
	ok, err := r.store.UserCanActOnTask(ctx, userID, taskID)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task access check failed: %w", err)
	}
	if !ok {
		return domain.Task{}, fmt.Errorf("task %s: %w", taskID, errUnauthorized)
	}
	return task, nil
}
