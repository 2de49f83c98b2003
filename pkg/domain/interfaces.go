package domain

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookups for ids that do not resolve, including
// users that exist but are inactive.
var ErrNotFound = errors.New("not found")

// Directory resolves authenticated principals against the user store.
type Directory interface {
	// GetActiveUser returns the user iff it exists and is active.
	GetActiveUser(ctx context.Context, id string) (User, error)
}

// ProjectAccess answers whether a user may enter a project's room. Access is
// derived from ownership, membership, or the client-of-project relationship.
type ProjectAccess interface {
	UserHasAccess(ctx context.Context, userID, projectID string) (bool, error)
}

// Tasks resolves tasks and the per-task authorization rule: the assignee,
// the project owner, and project members may act on a task.
type Tasks interface {
	GetTask(ctx context.Context, id string) (Task, error)
	UserCanActOnTask(ctx context.Context, userID, taskID string) (bool, error)
}

type Comments interface {
	CreateComment(ctx context.Context, taskID, authorID, content string) (Comment, error)
}

// Store aggregates the data-access boundary the collaboration layer consumes.
type Store interface {
	Directory
	ProjectAccess
	Tasks
	Comments
}
