package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	stmts := []string{
		`INSERT INTO users (id, name, role, active) VALUES
			('owner', 'Olivia Owner', 'manager', 1),
			('member', 'Max Member', 'member', 1),
			('client', 'Cleo Client', 'client', 1),
			('assignee', 'Ann Assignee', 'member', 1),
			('outsider', 'Oscar Outsider', 'member', 1),
			('inactive', 'Ivy Inactive', 'member', 0)`,
		`INSERT INTO projects (id, name, owner_id, client_id) VALUES
			('p1', 'Website', 'owner', 'client')`,
		`INSERT INTO project_members (project_id, user_id) VALUES
			('p1', 'member'), ('p1', 'assignee')`,
		`INSERT INTO tasks (id, project_id, assignee_id, title) VALUES
			('t1', 'p1', 'assignee', 'Ship it'),
			('t2', 'p1', NULL, 'Unassigned chore')`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func TestGetActiveUser(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	u, err := s.GetActiveUser(ctx, "owner")
	if err != nil {
		t.Fatalf("GetActiveUser failed: %v", err)
	}
	if u.Name != "Olivia Owner" || u.Role != "manager" || !u.Active {
		t.Errorf("Unexpected user: %+v", u)
	}

	if _, err := s.GetActiveUser(ctx, "inactive"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Inactive user must resolve to ErrNotFound, got %v", err)
	}
	if _, err := s.GetActiveUser(ctx, "ghost"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Unknown user must resolve to ErrNotFound, got %v", err)
	}
}

func TestUserHasAccess(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	cases := []struct {
		userID string
		want   bool
	}{
		{"owner", true},
		{"client", true},
		{"member", true},
		{"outsider", false},
	}
	for _, tc := range cases {
		got, err := s.UserHasAccess(ctx, tc.userID, "p1")
		if err != nil {
			t.Fatalf("UserHasAccess(%s) failed: %v", tc.userID, err)
		}
		if got != tc.want {
			t.Errorf("UserHasAccess(%s, p1) = %v, want %v", tc.userID, got, tc.want)
		}
	}
}

func TestGetTask(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	task, err := s.GetTask(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.ProjectID != "p1" || task.AssigneeID != "assignee" {
		t.Errorf("Unexpected task: %+v", task)
	}

	task, err = s.GetTask(ctx, "t2")
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if task.AssigneeID != "" {
		t.Errorf("NULL assignee must map to empty string, got %q", task.AssigneeID)
	}

	if _, err := s.GetTask(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Unknown task must resolve to ErrNotFound, got %v", err)
	}
}

func TestUserCanActOnTask(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	cases := []struct {
		userID string
		want   bool
	}{
		{"assignee", true},
		{"owner", true},
		{"member", true},
		{"client", false}, // clients watch, they don't act
		{"outsider", false},
	}
	for _, tc := range cases {
		got, err := s.UserCanActOnTask(ctx, tc.userID, "t1")
		if err != nil {
			t.Fatalf("UserCanActOnTask(%s) failed: %v", tc.userID, err)
		}
		if got != tc.want {
			t.Errorf("UserCanActOnTask(%s, t1) = %v, want %v", tc.userID, got, tc.want)
		}
	}
}

func TestCreateComment(t *testing.T) {
	s := newTestStore(t)
	seed(t, s)
	ctx := context.Background()

	comment, err := s.CreateComment(ctx, "t1", "member", "hello")
	if err != nil {
		t.Fatalf("CreateComment failed: %v", err)
	}
	if comment.ID == "" || comment.CreatedAt.IsZero() {
		t.Errorf("Comment missing id or timestamp: %+v", comment)
	}
	if comment.Author.ID != "member" || comment.Author.Name != "Max Member" {
		t.Errorf("Comment author not denormalized: %+v", comment.Author)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM comments WHERE task_id = 't1'`).Scan(&count); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 persisted comment, got %d", count)
	}

	if _, err := s.CreateComment(ctx, "t1", "inactive", "nope"); err == nil {
		t.Error("Comment by an inactive author must fail")
	}
}
