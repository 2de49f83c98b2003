package hub

import (
	"time"

	"github.com/google/uuid"
)

// Notification is the fire-and-forget payload pushed to a principal's
// personal channel. It is not persisted, retried, or acknowledged.
type Notification struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	TaskID    string    `json:"taskId,omitempty"`
	ProjectID string    `json:"projectId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EmitNotification pushes to a principal's personal channel. This is the
// surface HTTP-originated senders call, e.g. when assigning a task to a
// user who is not the actor.
func (e *Emitter) EmitNotification(userID string, n Notification) {
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	e.ToUser(userID, EventNotification, n)
}

// EmitToProject pushes to every connection in a project's room. Used for
// announcements that originate outside a live client event.
func (e *Emitter) EmitToProject(projectID, event string, payload any) {
	e.ToRoom(projectID, event, payload, uuid.Nil)
}
