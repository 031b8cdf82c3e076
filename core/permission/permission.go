package permission

import (
	"context"
	"fmt"
)

// Mapping is the merged permission data for a set of groups.
type Mapping struct {
	// Values maps permission names to their effective values. Values are
	// usually booleans but integer quotas and strings occur as well.
	Values map[string]any

	// Never holds the permissions that carry an explicit "never" override.
	Never map[string]bool
}

// Value returns the effective value for a permission name, or false if the
// mapping does not carry it.
func (m Mapping) Value(name string) any {
	if v, ok := m.Values[name]; ok {
		return v
	}
	return false
}

// Granted reports whether a permission resolves to a truthy value.
func (m Mapping) Granted(name string) bool {
	switch v := m.Value(name).(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v != ""
	default:
		return false
	}
}

// Provider supplies merged permission mappings for group id sets.
// Implementations typically sit in front of a cache builder keyed by the
// sorted group id list.
type Provider interface {
	Resolve(ctx context.Context, groupIDs []uint32) (Mapping, error)
}

// Cache applies the users-only and "never" policies on top of a Provider.
// It is safe for concurrent use; per-request memoization of resolved mappings
// is the caller's job.
type Cache struct {
	provider  Provider
	usersOnly map[string]struct{}
}

// NewCache creates a permission cache. usersOnly lists the permission names
// that must never resolve truthy for guests.
func NewCache(provider Provider, usersOnly []string) *Cache {
	set := make(map[string]struct{}, len(usersOnly))
	for _, name := range usersOnly {
		set[name] = struct{}{}
	}
	return &Cache{provider: provider, usersOnly: set}
}

// Resolve fetches the merged mapping for the given groups.
func (c *Cache) Resolve(ctx context.Context, groupIDs []uint32) (Mapping, error) {
	mapping, err := c.provider.Resolve(ctx, groupIDs)
	if err != nil {
		return Mapping{}, fmt.Errorf("resolve permissions: %w", err)
	}
	return mapping, nil
}

// UsersOnly reports whether the permission is restricted to registered users.
func (c *Cache) UsersOnly(name string) bool {
	_, ok := c.usersOnly[name]
	return ok
}

// Get returns the effective value of a permission for the given identity.
// Guests always receive false for users-only permissions, before any group
// data is consulted.
func (c *Cache) Get(ctx context.Context, guest bool, mapping Mapping, name string) any {
	if guest && c.UsersOnly(name) {
		return false
	}
	return mapping.Value(name)
}

// Never reports whether the mapping carries an explicit "never" override for
// the permission. A "never" wins over any ACL-style grant layered on top.
func (c *Cache) Never(mapping Mapping, name string) bool {
	return mapping.Never[name]
}
