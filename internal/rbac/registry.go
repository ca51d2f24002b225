package rbac

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// RoleSource loads the provisioned roles.
type RoleSource interface {
	ListRoles(ctx context.Context) ([]Role, error)
}

// Registry is the in-memory role catalogue, loaded once at startup. Roles are
// immutable at runtime so readers never lock.
type Registry struct {
	source   RoleSource
	group    singleflight.Group
	snapshot atomic.Pointer[roleSet]
}

type roleSet struct {
	byID   map[uuid.UUID]Role
	byName map[string]Role
}

// NewRegistry constructs a registry backed by source. Call Load before use.
func NewRegistry(source RoleSource) *Registry {
	return &Registry{source: source}
}

// NewStaticRegistry builds a registry from fixed roles.
func NewStaticRegistry(roles ...Role) *Registry {
	r := &Registry{}
	r.snapshot.Store(buildRoleSet(roles))
	return r
}

// Load reads the roles from the source. Concurrent callers share one query.
func (r *Registry) Load(ctx context.Context) error {
	if r.source == nil {
		return fmt.Errorf("rbac: registry has no role source")
	}
	_, err, _ := r.group.Do("roles", func() (any, error) {
		roles, err := r.source.ListRoles(ctx)
		if err != nil {
			return nil, fmt.Errorf("rbac: load roles: %w", err)
		}
		for _, role := range roles {
			for _, p := range role.Permissions {
				if !p.Valid() {
					return nil, fmt.Errorf("rbac: role %q has unknown permission %q", role.Name, p)
				}
			}
		}
		r.snapshot.Store(buildRoleSet(roles))
		return nil, nil
	})
	return err
}

// Loaded reports whether roles are available.
func (r *Registry) Loaded() bool {
	return r.snapshot.Load() != nil
}

// Len returns the number of known roles.
func (r *Registry) Len() int {
	set := r.snapshot.Load()
	if set == nil {
		return 0
	}
	return len(set.byID)
}

// ByID finds a role by id.
func (r *Registry) ByID(id uuid.UUID) (Role, bool) {
	set := r.snapshot.Load()
	if set == nil {
		return Role{}, false
	}
	role, ok := set.byID[id]
	return role, ok
}

// ByName finds a role by name.
func (r *Registry) ByName(name string) (Role, bool) {
	set := r.snapshot.Load()
	if set == nil {
		return Role{}, false
	}
	role, ok := set.byName[name]
	return role, ok
}

// PermissionsOf returns the permissions of the named role, nil when unknown.
func (r *Registry) PermissionsOf(name string) []Permission {
	role, ok := r.ByName(name)
	if !ok {
		return nil
	}
	return append([]Permission(nil), role.Permissions...)
}

// HasPermission reports whether the named role grants p.
func (r *Registry) HasPermission(name string, p Permission) bool {
	role, ok := r.ByName(name)
	return ok && role.Has(p)
}

func buildRoleSet(roles []Role) *roleSet {
	set := &roleSet{
		byID:   make(map[uuid.UUID]Role, len(roles)),
		byName: make(map[string]Role, len(roles)),
	}
	for _, role := range roles {
		role.Permissions = append([]Permission(nil), role.Permissions...)
		set.byID[role.ID] = role
		set.byName[role.Name] = role
	}
	return set
}
