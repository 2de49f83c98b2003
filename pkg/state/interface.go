package state

import (
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/google/uuid"
)

type Manager interface {
	// --- Connection Lifecycle ---
	RegisterConnection(t Sink, ipAddr string) (*Connection, error)
	// DeregisterConnection removes the connection from the registry, every
	// room it joined, and the typing table, atomically. Calling it for an
	// unknown connection is a no-op and returns an empty Departure.
	DeregisterConnection(connID uuid.UUID) (Departure, error)
	GetConnection(connID uuid.UUID) (*Connection, bool)
	FindOldestUserConnection(userID string) (*Connection, bool)

	// --- Presence ---
	// AssociateUser links a connection to a principal, creating the user
	// record if this is the principal's first connection. The bool reports
	// whether the principal just came online.
	AssociateUser(connID uuid.UUID, principal domain.User) (*User, bool, error)
	FindUser(userID string) (*User, bool)
	GetUserConnectionCount(userID string) (int, error)
	UserConnections(userID string) []Sink
	AllConnections() []Sink
	OnlineUsers() []PresenceInfo

	// --- Room Membership ---
	// JoinRoom adds the connection to a project room, creating the room if
	// needed. Authorization is the caller's concern; the state layer only
	// records membership.
	JoinRoom(connID uuid.UUID, projectID string) error
	LeaveRoom(connID uuid.UUID, projectID string) error
	RoomConnections(projectID string) []Sink
	// InRoom reports whether the connection currently holds membership in
	// the project's room.
	InRoom(connID uuid.UUID, projectID string) bool

	// --- Typing Indicators ---
	// SetTyping marks the entry's principal as typing on the task,
	// overwriting any previous holder.
	SetTyping(taskID string, entry TypingEntry)
	// ClearTyping removes the indicator iff it is currently held by the
	// given user, returning the cleared entry.
	ClearTyping(taskID, userID string) (TypingEntry, bool)
	TypingHolder(taskID string) (TypingEntry, bool)
}
