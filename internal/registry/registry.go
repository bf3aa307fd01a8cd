package registry

import (
	"fmt"
	"sync"
)

// group is one role's identity → handle mapping.
type group struct {
	mu      sync.RWMutex
	members map[string]Handle
}

// Registry holds the three role groups.
type Registry struct {
	groups map[Role]*group
}

// New creates an empty Registry.
func New() *Registry {
	r := &Registry{groups: make(map[Role]*group, len(Roles))}
	for _, role := range Roles {
		r.groups[role] = &group{members: make(map[string]Handle)}
	}
	return r
}

// Register inserts id → h into the group for role.
//
// Registering again under a different role moves the identity: it is removed
// from every other group first, so it is addressable under exactly one role.
// Registering twice under the same role overwrites the handle.
func (r *Registry) Register(id string, role Role, h Handle) error {
	target, ok := r.groups[role]
	if !ok {
		return fmt.Errorf("register %s: %w: %q", id, ErrUnknownRole, role)
	}

	for other, g := range r.groups {
		if other == role {
			continue
		}
		g.mu.Lock()
		delete(g.members, id)
		g.mu.Unlock()
	}

	target.mu.Lock()
	target.members[id] = h
	target.mu.Unlock()
	return nil
}

// Unregister removes id from the group for role. Unknown roles and absent
// identities are a no-op.
func (r *Registry) Unregister(id string, role Role) {
	g, ok := r.groups[role]
	if !ok {
		return
	}
	g.mu.Lock()
	delete(g.members, id)
	g.mu.Unlock()
}

// Snapshot returns the current members of role's group. The slice is a copy;
// handles in it may close at any time after it is taken.
func (r *Registry) Snapshot(role Role) []Entry {
	g, ok := r.groups[role]
	if !ok {
		return nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	entries := make([]Entry, 0, len(g.members))
	for id, h := range g.members {
		entries = append(entries, Entry{ID: id, Handle: h})
	}
	return entries
}

// Count returns the number of members in role's group.
func (r *Registry) Count(role Role) int {
	g, ok := r.groups[role]
	if !ok {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.members)
}

// Counts returns member counts for every group.
func (r *Registry) Counts() map[Role]int {
	counts := make(map[Role]int, len(Roles))
	for _, role := range Roles {
		counts[role] = r.Count(role)
	}
	return counts
}
