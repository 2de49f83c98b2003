package hub

// Outbound event vocabulary observed by clients.
const (
	EventNotification      = "notification"
	EventOnlineUsers       = "online-users"
	EventUserOnline        = "user-online"
	EventUserOffline       = "user-offline"
	EventUserTyping        = "user-typing"
	EventUserStoppedTyping = "user-stopped-typing"
	EventTaskUpdated       = "task-updated"
	EventCommentAdded      = "comment-added"
)
