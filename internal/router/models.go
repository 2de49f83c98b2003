package router

import (
	"encoding/json"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/state"
)

// ClientMessage is the inbound wire envelope.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Inbound event names accepted from clients.
const (
	evtJoinProject    = "join-project"
	evtLeaveProject   = "leave-project"
	evtTaskUpdate     = "task-update"
	evtNewComment     = "new-comment"
	evtTypingStart    = "typing-start"
	evtTypingStop     = "typing-stop"
	evtGetOnlineUsers = "get-online-users"
)

type projectPayload struct {
	ProjectID string `json:"projectId"`
}

type taskUpdatePayload struct {
	TaskID  string          `json:"taskId"`
	Updates json.RawMessage `json:"updates"`
}

type commentPayload struct {
	TaskID  string `json:"taskId"`
	Content string `json:"content"`
}

type typingPayload struct {
	TaskID string `json:"taskId"`
}

type typingEvent struct {
	TaskID string             `json:"taskId"`
	User   state.PresenceInfo `json:"user"`
}

type typingStoppedEvent struct {
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
}

type taskUpdatedEvent struct {
	TaskID    string             `json:"taskId"`
	Updates   json.RawMessage    `json:"updates"`
	UpdatedBy state.PresenceInfo `json:"updatedBy"`
}
