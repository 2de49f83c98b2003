package state

import (
	"time"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/google/uuid"
)

// Sink is the transport-level surface the state layer needs: an identity
// and a best-effort byte push. *transport.Connection satisfies it; tests
// substitute a capturing fake.
type Sink interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Connection is the state-layer representation of a single live
// transport connection.
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport Sink
	User      *User               // Pointer to the owning user (nil until associated)
	Rooms     map[string]struct{} // Project rooms this connection has joined
	CreatedAt time.Time
}

// User aggregates all live connections of one principal. A User record
// exists only while at least one connection references it; "online" is
// defined as the record existing.
type User struct {
	ID          string
	Name        string
	AvatarURL   string
	Role        string
	Connections map[uuid.UUID]*Connection
}

// Room is a logical broadcast group keyed by project id. Membership is
// per connection, not per user: a second tab only receives room traffic
// after it joins on its own.
type Room struct {
	ID      string
	Members map[uuid.UUID]*Connection
}

// PresenceInfo is the denormalized display form of an online user.
type PresenceInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// TypingEntry marks which principal is currently composing input on a
// task. ConnID records the connection that set the indicator so that
// disconnect teardown clears exactly the indicators that connection held.
type TypingEntry struct {
	ConnID    uuid.UUID
	UserID    string
	UserName  string
	ProjectID string
}

// Departure reports what a connection held at the moment it was
// deregistered, so the caller can broadcast the resulting transitions.
type Departure struct {
	User        *User
	WentOffline bool                   // this was the principal's last connection
	Rooms       []string               // project rooms the connection had joined
	Typing      map[string]TypingEntry // taskID -> cleared indicator
}

// Presence returns the user's denormalized display form.
func (u *User) Presence() PresenceInfo {
	return PresenceInfo{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

// FromDomain copies the principal's profile fields.
func (u *User) FromDomain(p domain.User) {
	u.Name = p.Name
	u.AvatarURL = p.AvatarURL
	u.Role = p.Role
}
