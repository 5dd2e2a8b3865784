// Package cache holds the group definitions written by SetGroupPermissions
// transactions, keyed by group name.
package cache

import (
	"sort"
	"sync"

	"github.com/backkem/txpermissions/pkg/permission"
)

// Groups is the keyed store of group definitions.
//
// The engine treats it as a host-owned singleton: handlers write it,
// the resolver and query projections read it. Implementations return
// clones so callers cannot mutate stored definitions.
type Groups interface {
	// Get returns the group with the given name.
	Get(name string) (*permission.Group, bool)

	// Set stores the group, replacing any previous definition.
	Set(group *permission.Group)

	// Delete removes the group. Returns false if it did not exist.
	Delete(name string) bool

	// All returns every group sorted by name.
	All() []*permission.Group

	// Len returns the number of groups.
	Len() int
}

// Memory is an in-memory Groups store.
//
// Thread Safety: All methods are safe for concurrent use.
type Memory struct {
	mu     sync.RWMutex
	groups map[string]*permission.Group
}

// NewMemory creates an empty in-memory group store.
func NewMemory() *Memory {
	return &Memory{
		groups: make(map[string]*permission.Group),
	}
}

// Get returns a clone of the named group.
func (m *Memory) Get(name string) (*permission.Group, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[name]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// Set stores a clone of the group.
func (m *Memory) Set(group *permission.Group) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.groups[group.Name] = group.Clone()
}

// Delete removes the named group.
func (m *Memory) Delete(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.groups[name]; !ok {
		return false
	}
	delete(m.groups, name)
	return true
}

// All returns clones of all groups sorted by name.
func (m *Memory) All() []*permission.Group {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*permission.Group, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, g.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Len returns the number of stored groups.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.groups)
}

var _ Groups = (*Memory)(nil)
