// Package memory provides an in-process implementation of storage.Store.
// It is intended for tests and local experiments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kiumaa/kixikila-sub001/internal/models"
	"github.com/kiumaa/kixikila-sub001/internal/storage"
)

// Ensure Store implements storage.Store
var _ storage.Store = (*Store)(nil)

// Store keeps groups, cycles and users in maps guarded by a single mutex.
// Every read and write copies, so callers never share state with the store.
type Store struct {
	mu     sync.RWMutex
	groups map[string]*models.Group
	cycles map[string][]*models.Cycle
	users  map[string]*models.User

	// failSaves makes SaveGroup and RecordDraw fail, for exercising rollback paths.
	failSaves bool
}

// New creates an empty store.
func New() *Store {
	return &Store{
		groups: make(map[string]*models.Group),
		cycles: make(map[string][]*models.Cycle),
		users:  make(map[string]*models.User),
	}
}

// SetFailSaves makes subsequent SaveGroup and RecordDraw calls return an error.
func (s *Store) SetFailSaves(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSaves = fail
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	for i := range group.Members {
		group.Members[i].GroupID = group.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.groups[group.ID]; exists {
		return fmt.Errorf("group already exists: %s", group.ID)
	}
	s.groups[group.ID] = group.Clone()
	return nil
}

func (s *Store) LoadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return g.Clone(), nil
}

func (s *Store) SaveGroup(ctx context.Context, group *models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(group)
}

func (s *Store) saveLocked(group *models.Group) error {
	if s.failSaves {
		return fmt.Errorf("failed to save group %s: store unavailable", group.ID)
	}
	if _, ok := s.groups[group.ID]; !ok {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
	}
	group.UpdatedAt = time.Now().UTC()
	s.groups[group.ID] = group.Clone()
	return nil
}

func (s *Store) AppendCycle(ctx context.Context, groupID string, cycle *models.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(groupID, cycle)
}

func (s *Store) appendLocked(groupID string, cycle *models.Cycle) error {
	if _, ok := s.groups[groupID]; !ok {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	for _, c := range s.cycles[groupID] {
		if c.CycleNumber == cycle.CycleNumber {
			return fmt.Errorf("cycle %d: %w", cycle.CycleNumber, storage.ErrCycleExists)
		}
	}
	s.cycles[groupID] = append(s.cycles[groupID], copyCycle(cycle, groupID))
	return nil
}

func (s *Store) RecordDraw(ctx context.Context, group *models.Group, cycle *models.Cycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSaves {
		return fmt.Errorf("failed to record draw for group %s: store unavailable", group.ID)
	}
	// Validate the append first so a duplicate leaves the group untouched.
	for _, c := range s.cycles[group.ID] {
		if c.CycleNumber == cycle.CycleNumber {
			return fmt.Errorf("cycle %d: %w", cycle.CycleNumber, storage.ErrCycleExists)
		}
	}
	if err := s.saveLocked(group); err != nil {
		return err
	}
	return s.appendLocked(group.ID, cycle)
}

func (s *Store) ListGroups(ctx context.Context) ([]*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	groups := make([]*models.Group, 0, len(s.groups))
	for _, g := range s.groups {
		groups = append(groups, g.Clone())
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].CreatedAt.After(groups[j].CreatedAt)
	})
	return groups, nil
}

func (s *Store) ListCycles(ctx context.Context, groupID string) ([]*models.Cycle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	cycles := make([]*models.Cycle, 0, len(s.cycles[groupID]))
	for _, c := range s.cycles[groupID] {
		cycles = append(cycles, copyCycle(c, groupID))
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].CycleNumber < cycles[j].CycleNumber
	})
	return cycles, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("failed to create user: email %s already registered", user.Email)
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	users := make(map[string]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			users[id] = &cp
		}
	}
	return users, nil
}

func copyCycle(c *models.Cycle, groupID string) *models.Cycle {
	cp := *c
	cp.GroupID = groupID
	cp.Participants = append([]string(nil), c.Participants...)
	return &cp
}
