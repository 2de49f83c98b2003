// Package sqlite is the reference implementation of the data-access
// boundary the collaboration layer consumes: user directory, project and
// task access checks, and comment persistence. The real-time layer only
// ever reads authorization data from here, except for comments, which it
// writes before broadcasting.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TomaszChromy/tomsoft-pm-app-sub002/pkg/domain"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	avatar_url TEXT NOT NULL DEFAULT '',
	role       TEXT NOT NULL DEFAULT 'member',
	active     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS projects (
	id        TEXT PRIMARY KEY,
	name      TEXT NOT NULL,
	owner_id  TEXT NOT NULL REFERENCES users(id),
	client_id TEXT REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS project_members (
	project_id TEXT NOT NULL REFERENCES projects(id),
	user_id    TEXT NOT NULL REFERENCES users(id),
	PRIMARY KEY (project_id, user_id)
);

CREATE TABLE IF NOT EXISTS tasks (
	id          TEXT PRIMARY KEY,
	project_id  TEXT NOT NULL REFERENCES projects(id),
	assignee_id TEXT REFERENCES users(id),
	title       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS comments (
	id         TEXT PRIMARY KEY,
	task_id    TEXT NOT NULL REFERENCES tasks(id),
	author_id  TEXT NOT NULL REFERENCES users(id),
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_comments_task ON comments(task_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);
`

type Store struct {
	db *sql.DB
}

var _ domain.Store = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) GetActiveUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, avatar_url, role FROM users WHERE id = ? AND active = 1`, id,
	).Scan(&u.ID, &u.Name, &u.AvatarURL, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	u.Active = true
	return u, nil
}

// UserHasAccess reports whether the user owns the project, is its
// designated client, or is a listed member.
func (s *Store) UserHasAccess(ctx context.Context, userID, projectID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM projects p
			WHERE p.id = ?1 AND (p.owner_id = ?2 OR p.client_id = ?2)
			UNION
			SELECT 1 FROM project_members m
			WHERE m.project_id = ?1 AND m.user_id = ?2
		)`, projectID, userID,
	).Scan(&ok)
	return ok, err
}

func (s *Store) GetTask(ctx context.Context, id string) (domain.Task, error) {
	var t domain.Task
	var assignee sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, assignee_id, title FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.ProjectID, &assignee, &t.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Task{}, err
	}
	t.AssigneeID = assignee.String
	return t, nil
}

// UserCanActOnTask reports whether the user is the task's assignee, the
// project owner, or a project member. The project's client may watch the
// room but not act on tasks.
func (s *Store) UserCanActOnTask(ctx context.Context, userID, taskID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM tasks t
			WHERE t.id = ?1 AND t.assignee_id = ?2
			UNION
			SELECT 1 FROM tasks t JOIN projects p ON p.id = t.project_id
			WHERE t.id = ?1 AND p.owner_id = ?2
			UNION
			SELECT 1 FROM tasks t JOIN project_members m ON m.project_id = t.project_id
			WHERE t.id = ?1 AND m.user_id = ?2
		)`, taskID, userID,
	).Scan(&ok)
	return ok, err
}

func (s *Store) CreateComment(ctx context.Context, taskID, authorID, content string) (domain.Comment, error) {
	author, err := s.GetActiveUser(ctx, authorID)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("comment author lookup: %w", err)
	}

	comment := domain.Comment{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		Author:    author,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO comments (id, task_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		comment.ID, taskID, authorID, content, comment.CreatedAt,
	)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}
