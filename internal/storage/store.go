// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/kiumaa/kixikila-sub001/internal/models"
)

var (
	// ErrNotFound is returned when a group does not exist.
	ErrNotFound = errors.New("not found")
	// ErrCycleExists is returned when a cycle number is already recorded for a group.
	ErrCycleExists = errors.New("cycle already recorded")
)

// GroupStore persists savings groups, their members and cycle history.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, memory)
// without changing the service layer.
//
// Groups are returned as independent copies: mutating a loaded group has
// no effect until it is passed to SaveGroup or RecordDraw.
type GroupStore interface {
	// CreateGroup persists a new group with its members.
	// The group.ID and timestamps are populated by the store when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// LoadGroup retrieves a group with all members.
	// Returns an error wrapping ErrNotFound if the group does not exist.
	LoadGroup(ctx context.Context, groupID string) (*models.Group, error)

	// SaveGroup overwrites the group's mutable state and upserts its members.
	SaveGroup(ctx context.Context, group *models.Group) error

	// AppendCycle adds a cycle record to the group's history.
	AppendCycle(ctx context.Context, groupID string, cycle *models.Cycle) error

	// RecordDraw saves the group and appends the cycle in one atomic step.
	RecordDraw(ctx context.Context, group *models.Group, cycle *models.Cycle) error

	// ListGroups returns every group, newest first.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// ListCycles returns a group's cycle history ordered by cycle number.
	ListCycles(ctx context.Context, groupID string) ([]*models.Cycle, error)
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	// GetUserByEmail returns nil, nil when no user has the email.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// GetUserByID returns nil, nil when the user does not exist.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	// GetUsersByIDs returns the users that exist among ids, keyed by ID.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// Store is the full persistence surface used by the server.
type Store interface {
	GroupStore
	UserStore

	// Close releases any resources held by the store.
	Close() error
}
