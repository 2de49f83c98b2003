package hub_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/internal/hub"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/state/statemanager"
	"github.com/google/uuid"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeSink struct {
	id   uuid.UUID
	mu   sync.Mutex
	msgs [][]byte
}

func newFakeSink() *fakeSink { return &fakeSink{id: uuid.New()} }

func (f *fakeSink) ID() uuid.UUID { return f.id }

func (f *fakeSink) Send(m []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, m)
}

func (f *fakeSink) Close(error) {}

func (f *fakeSink) received(t *testing.T) []hub.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]hub.Envelope, 0, len(f.msgs))
	for _, raw := range f.msgs {
		var env hub.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("received invalid envelope: %v", err)
		}
		out = append(out, env)
	}
	return out
}

type fixture struct {
	manager *statemanager.InMemoryManager
	emitter *hub.Emitter
}

func newFixture() *fixture {
	logger := newTestLogger()
	manager := statemanager.NewInMemoryManager(logger)
	return &fixture{manager: manager, emitter: hub.New(logger, manager)}
}

func (fx *fixture) connect(t *testing.T, userID string) *fakeSink {
	t.Helper()
	sink := newFakeSink()
	if _, err := fx.manager.RegisterConnection(sink, "127.0.0.1"); err != nil {
		t.Fatalf("RegisterConnection failed: %v", err)
	}
	if _, _, err := fx.manager.AssociateUser(sink.ID(), domain.User{ID: userID, Name: userID, Active: true}); err != nil {
		t.Fatalf("AssociateUser failed: %v", err)
	}
	return sink
}

func TestRoomIsolation(t *testing.T) {
	fx := newFixture()
	inRoom := fx.connect(t, "member")
	otherRoom := fx.connect(t, "outsider-a")
	noRoom := fx.connect(t, "outsider-b")

	fx.manager.JoinRoom(inRoom.ID(), "project-1")
	fx.manager.JoinRoom(otherRoom.ID(), "project-2")

	fx.emitter.ToRoom("project-1", "task-updated", map[string]string{"taskId": "t1"}, uuid.Nil)

	if got := len(inRoom.received(t)); got != 1 {
		t.Errorf("Room member expected 1 event, got %d", got)
	}
	if got := len(otherRoom.received(t)); got != 0 {
		t.Errorf("Connection in a different room received %d events", got)
	}
	if got := len(noRoom.received(t)); got != 0 {
		t.Errorf("Connection in no room received %d events", got)
	}
}

func TestSenderExclusion(t *testing.T) {
	fx := newFixture()
	sender := fx.connect(t, "sender")
	peer := fx.connect(t, "peer")
	fx.manager.JoinRoom(sender.ID(), "project-1")
	fx.manager.JoinRoom(peer.ID(), "project-1")

	fx.emitter.ToRoom("project-1", "task-updated", nil, sender.ID())

	if got := len(sender.received(t)); got != 0 {
		t.Errorf("Sender must never receive its own broadcast, got %d events", got)
	}
	if got := len(peer.received(t)); got != 1 {
		t.Errorf("Peer expected 1 event, got %d", got)
	}
}

func TestNotificationMultiDevice(t *testing.T) {
	fx := newFixture()
	tab1 := fx.connect(t, "assignee")
	tab2 := fx.connect(t, "assignee")
	bystander := fx.connect(t, "bystander")

	fx.emitter.EmitNotification("assignee", hub.Notification{
		Type:    "TASK_ASSIGNED",
		Title:   "Task assigned",
		Message: "You have a new task",
	})

	for _, tab := range []*fakeSink{tab1, tab2} {
		envs := tab.received(t)
		if len(envs) != 1 {
			t.Fatalf("Expected 1 notification per device, got %d", len(envs))
		}
		if envs[0].Event != hub.EventNotification {
			t.Errorf("Expected event %q, got %q", hub.EventNotification, envs[0].Event)
		}
		payload, _ := json.Marshal(envs[0].Payload)
		var n hub.Notification
		if err := json.Unmarshal(payload, &n); err != nil {
			t.Fatalf("Notification payload did not round-trip: %v", err)
		}
		if n.Type != "TASK_ASSIGNED" {
			t.Errorf("Expected type TASK_ASSIGNED, got %q", n.Type)
		}
		if n.Timestamp.IsZero() {
			t.Error("Notification timestamp was not stamped")
		}
	}
	if got := len(bystander.received(t)); got != 0 {
		t.Errorf("Bystander received %d notifications", got)
	}
}

func TestToAllWithExclusion(t *testing.T) {
	fx := newFixture()
	newcomer := fx.connect(t, "newcomer")
	a := fx.connect(t, "a")
	b := fx.connect(t, "b")

	fx.emitter.ToAll(hub.EventUserOnline, map[string]string{"id": "newcomer"}, newcomer.ID())

	if got := len(newcomer.received(t)); got != 0 {
		t.Errorf("Excluded connection received %d events", got)
	}
	for _, s := range []*fakeSink{a, b} {
		if got := len(s.received(t)); got != 1 {
			t.Errorf("Expected 1 presence event, got %d", got)
		}
	}
}

func TestEmitToProject(t *testing.T) {
	fx := newFixture()
	member := fx.connect(t, "member")
	fx.manager.JoinRoom(member.ID(), "project-9")

	fx.emitter.EmitToProject("project-9", "sprint-closed", map[string]string{"sprintId": "s1"})

	envs := member.received(t)
	if len(envs) != 1 || envs[0].Event != "sprint-closed" {
		t.Fatalf("Expected one sprint-closed event, got %+v", envs)
	}
}
