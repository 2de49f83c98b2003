package domain

import "time"

// User is the authenticated identity behind a connection. The real-time
// layer holds a read-only copy for the connection's lifetime; the user
// store owns the record.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
	Role      string `json:"role,omitempty"`
	Active    bool   `json:"-"`
}

// Task carries the fields the collaboration layer needs for routing and
// authorization: which project room to broadcast into and who to notify.
type Task struct {
	ID         string
	ProjectID  string
	AssigneeID string
	Title      string
}

type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	Author    User      `json:"author"`
}
