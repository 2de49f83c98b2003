package statemanager

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/state"
	"github.com/google/uuid"
)

// InMemoryManager keeps all connection, presence, room, and typing state
// in process-local maps. It is created at server start and owned by the
// server; nothing outside the real-time layer mutates it directly.
type InMemoryManager struct {
	conns  map[uuid.UUID]*state.Connection
	users  map[string]*state.User
	rooms  map[string]*state.Room
	typing map[string]state.TypingEntry

	// Lock order: connMu, userMu, roomMu, typingMu.
	connMu   sync.RWMutex
	userMu   sync.RWMutex
	roomMu   sync.RWMutex
	typingMu sync.RWMutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:  make(map[uuid.UUID]*state.Connection),
		users:  make(map[string]*state.User),
		rooms:  make(map[string]*state.Room),
		typing: make(map[string]state.TypingEntry),
		logger: logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

func (m *InMemoryManager) RegisterConnection(t state.Sink, ipAddr string) (*state.Connection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	connID := t.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, errors.New("connection is already registered")
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: t,
		Rooms:     make(map[string]struct{}),
		CreatedAt: time.Now(),
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	return newConn, nil
}

func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) (state.Departure, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	dep := state.Departure{Typing: make(map[string]state.TypingEntry)}

	conn, ok := m.conns[connID]
	if !ok {
		// Already deregistered; disconnect cleanup is idempotent.
		return dep, nil
	}
	delete(m.conns, connID)

	// Detach the connection from its user. The user record is removed with
	// the last connection so that OnlineUsers never reports a principal
	// with no live connection.
	if conn.User != nil {
		m.userMu.Lock()
		user := conn.User
		delete(user.Connections, connID)
		dep.User = user
		if len(user.Connections) == 0 {
			delete(m.users, user.ID)
			dep.WentOffline = true
		}
		m.userMu.Unlock()
	}

	// Release every room membership the connection held.
	m.roomMu.Lock()
	for roomID := range conn.Rooms {
		if room, ok := m.rooms[roomID]; ok {
			delete(room.Members, connID)
			if len(room.Members) == 0 {
				delete(m.rooms, roomID)
			}
		}
		dep.Rooms = append(dep.Rooms, roomID)
	}
	m.roomMu.Unlock()

	// Relinquish typing indicators this connection set.
	m.typingMu.Lock()
	for taskID, entry := range m.typing {
		if entry.ConnID == connID {
			delete(m.typing, taskID)
			dep.Typing[taskID] = entry
		}
	}
	m.typingMu.Unlock()

	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
	return dep, nil
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryManager) FindOldestUserConnection(userID string) (*state.Connection, bool) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, false
	}

	var oldestConn *state.Connection
	var oldestTime time.Time

	for _, conn := range user.Connections {
		if oldestConn == nil || conn.CreatedAt.Before(oldestTime) {
			oldestConn = conn
			oldestTime = conn.CreatedAt
		}
	}

	if oldestConn == nil {
		return nil, false
	}
	return oldestConn, true
}

// --- Presence ---

func (m *InMemoryManager) AssociateUser(connID uuid.UUID, principal domain.User) (*state.User, bool, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.userMu.Lock()
	defer m.userMu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil, false, errors.New("cannot associate user with unknown connection")
	}

	// Find or create the user record. Creation marks the online transition.
	user, exists := m.users[principal.ID]
	cameOnline := !exists
	if !exists {
		user = &state.User{
			ID:          principal.ID,
			Connections: make(map[uuid.UUID]*state.Connection),
		}
		m.users[principal.ID] = user
		m.logger.Debug("User came online", slog.String("userID", principal.ID))
	}
	user.FromDomain(principal)

	conn.User = user
	user.Connections[connID] = conn

	m.logger.Debug("Associated connection with user", slog.String("connID", connID.String()), slog.String("userID", principal.ID))
	return user, cameOnline, nil
}

func (m *InMemoryManager) FindUser(userID string) (*state.User, bool) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()
	user, ok := m.users[userID]
	return user, ok
}

func (m *InMemoryManager) GetUserConnectionCount(userID string) (int, error) {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return 0, nil // User is offline, so they have 0 connections.
	}
	return len(user.Connections), nil
}

func (m *InMemoryManager) UserConnections(userID string) []state.Sink {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil
	}
	sinks := make([]state.Sink, 0, len(user.Connections))
	for _, c := range user.Connections {
		sinks = append(sinks, c.Transport)
	}
	return sinks
}

func (m *InMemoryManager) AllConnections() []state.Sink {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	sinks := make([]state.Sink, 0, len(m.conns))
	for _, c := range m.conns {
		sinks = append(sinks, c.Transport)
	}
	return sinks
}

func (m *InMemoryManager) OnlineUsers() []state.PresenceInfo {
	m.userMu.RLock()
	defer m.userMu.RUnlock()

	online := make([]state.PresenceInfo, 0, len(m.users))
	for _, u := range m.users {
		online = append(online, u.Presence())
	}
	return online
}

// --- Room Membership ---

func (m *InMemoryManager) JoinRoom(connID uuid.UUID, projectID string) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return errors.New("cannot join room: connection not found")
	}

	room, exists := m.rooms[projectID]
	if !exists {
		room = &state.Room{
			ID:      projectID,
			Members: make(map[uuid.UUID]*state.Connection),
		}
		m.rooms[projectID] = room
	}

	room.Members[connID] = conn
	conn.Rooms[projectID] = struct{}{}

	m.logger.Debug("Connection joined room", slog.String("connID", connID.String()), slog.String("roomID", projectID))
	return nil
}

func (m *InMemoryManager) LeaveRoom(connID uuid.UUID, projectID string) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	conn, ok := m.conns[connID]
	if ok {
		delete(conn.Rooms, projectID)
	}

	room, ok := m.rooms[projectID]
	if !ok {
		return nil // Room doesn't exist; leave is idempotent.
	}
	delete(room.Members, connID)

	// For memory hygiene, remove the room if it's now empty.
	if len(room.Members) == 0 {
		delete(m.rooms, projectID)
		m.logger.Debug("Removed empty room", slog.String("roomID", projectID))
	}

	m.logger.Debug("Connection left room", slog.String("connID", connID.String()), slog.String("roomID", projectID))
	return nil
}

func (m *InMemoryManager) InRoom(connID uuid.UUID, projectID string) bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	conn, ok := m.conns[connID]
	if !ok {
		return false
	}
	_, in := conn.Rooms[projectID]
	return in
}

func (m *InMemoryManager) RoomConnections(projectID string) []state.Sink {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()

	room, ok := m.rooms[projectID]
	if !ok {
		return nil
	}
	sinks := make([]state.Sink, 0, len(room.Members))
	for _, c := range room.Members {
		sinks = append(sinks, c.Transport)
	}
	return sinks
}

// --- Typing Indicators ---

func (m *InMemoryManager) SetTyping(taskID string, entry state.TypingEntry) {
	m.typingMu.Lock()
	defer m.typingMu.Unlock()
	// A later start-typing overwrites the earlier holder without queuing.
	m.typing[taskID] = entry
}

func (m *InMemoryManager) ClearTyping(taskID, userID string) (state.TypingEntry, bool) {
	m.typingMu.Lock()
	defer m.typingMu.Unlock()

	entry, ok := m.typing[taskID]
	if !ok || entry.UserID != userID {
		return state.TypingEntry{}, false
	}
	delete(m.typing, taskID)
	return entry, true
}

func (m *InMemoryManager) TypingHolder(taskID string) (state.TypingEntry, bool) {
	m.typingMu.RLock()
	defer m.typingMu.RUnlock()
	entry, ok := m.typing[taskID]
	return entry, ok
}
