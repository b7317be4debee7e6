package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore provides an in-memory Store, used in tests and as a fallback
// when no database path is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]*User
	commands map[string]*CommandRecord
	aliases  map[string]*Alias
	plugins  map[string]*PluginRecord
	groups   map[string]struct{}
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]*User),
		commands: make(map[string]*CommandRecord),
		aliases:  make(map[string]*Alias),
		plugins:  make(map[string]*PluginRecord),
		groups:   make(map[string]struct{}),
	}
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *MemoryStore) UserByName(ctx context.Context, name string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[key(name)]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *u
	dup.Groups = append([]string(nil), u.Groups...)
	return &dup, nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, u *User) error {
	if u == nil || key(u.Name) == "" {
		return fmt.Errorf("user name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *u
	dup.Groups = append([]string(nil), u.Groups...)
	s.users[key(u.Name)] = &dup
	for _, g := range u.Groups {
		s.groups[key(g)] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) CommandByName(ctx context.Context, name string) (*CommandRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.commands[key(name)]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *c
	dup.Groups = append([]string(nil), c.Groups...)
	return &dup, nil
}

func (s *MemoryStore) UpsertCommand(ctx context.Context, c *CommandRecord) error {
	if c == nil || key(c.Name) == "" {
		return fmt.Errorf("command name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *c
	dup.Groups = append([]string(nil), c.Groups...)
	s.commands[key(c.Name)] = &dup
	for _, g := range c.Groups {
		s.groups[key(g)] = struct{}{}
	}
	return nil
}

func (s *MemoryStore) AliasByName(ctx context.Context, name string) (*Alias, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.aliases[key(name)]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *a
	dup.Groups = append([]string(nil), a.Groups...)
	return &dup, nil
}

func (s *MemoryStore) UpsertAlias(ctx context.Context, a *Alias) error {
	if a == nil || key(a.Name) == "" {
		return fmt.Errorf("alias name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *a
	dup.Groups = append([]string(nil), a.Groups...)
	s.aliases[key(a.Name)] = &dup
	return nil
}

func (s *MemoryStore) DeleteAlias(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.aliases[key(name)]; !ok {
		return ErrNotFound
	}
	delete(s.aliases, key(name))
	return nil
}

func (s *MemoryStore) PluginByName(ctx context.Context, name string) (*PluginRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plugins[key(name)]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *p
	dup.Commands = append([]string(nil), p.Commands...)
	return &dup, nil
}

func (s *MemoryStore) UpsertPlugin(ctx context.Context, p *PluginRecord) error {
	if p == nil || key(p.Name) == "" {
		return fmt.Errorf("plugin name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *p
	dup.Commands = append([]string(nil), p.Commands...)
	s.plugins[key(p.Name)] = &dup
	return nil
}

func (s *MemoryStore) EnsureGroup(ctx context.Context, name string) error {
	if key(name) == "" {
		return fmt.Errorf("group name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[key(name)] = struct{}{}
	return nil
}

func (s *MemoryStore) Groups(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.groups))
	for g := range s.groups {
		out = append(out, g)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
