package auth

import (
	"context"
	"fmt"
	"sync"
)

// MemUserStore is an in-memory UserStore for tests and single-process runs.
type MemUserStore struct {
	mu          sync.Mutex
	users       map[string]*User
	groups      map[string]string // producer -> group name
	permissions map[string][]string
	members     map[string][]string
}

func NewMemUserStore() *MemUserStore {
	return &MemUserStore{
		users:       make(map[string]*User),
		groups:      make(map[string]string),
		permissions: make(map[string][]string),
		members:     make(map[string][]string),
	}
}

func (s *MemUserStore) FindUser(ctx context.Context, username string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, username)
	}
	c := *u
	return &c, nil
}

func (s *MemUserStore) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.users[u.Username] = &c
	return nil
}

func (s *MemUserStore) EnsureGroup(ctx context.Context, producer string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[producer]; ok {
		return g, false, nil
	}
	g := "remote_" + producer
	s.groups[producer] = g
	return g, true, nil
}

func (s *MemUserStore) GrantPermission(ctx context.Context, group, permission string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.permissions[group] = append(s.permissions[group], permission)
	return nil
}

func (s *MemUserStore) AddMember(ctx context.Context, username, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.members[group] {
		if m == username {
			return nil
		}
	}
	s.members[group] = append(s.members[group], username)
	return nil
}

// Permissions is a test helper.
func (s *MemUserStore) Permissions(group string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.permissions[group]...)
}
