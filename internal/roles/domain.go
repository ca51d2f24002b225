// Package roles persists the fixed role catalogue.
package roles

import (
	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/rbac"
)

// Definition describes a role provisioned at bootstrap.
type Definition struct {
	Name        string
	Permissions []rbac.Permission
}

// Seed returns the three provisioned roles. Permissions do not overlap: no role
// inherits from another.
func Seed() []Definition {
	return []Definition{
		{Name: rbac.RoleSuperAdmin, Permissions: []rbac.Permission{rbac.PermUpdateAdmin}},
		{Name: rbac.RoleAdmin, Permissions: []rbac.Permission{rbac.PermBan}},
		{Name: rbac.RoleUser, Permissions: []rbac.Permission{
			rbac.PermCreateOwnContent,
			rbac.PermUpdateOwnContent,
			rbac.PermDeleteOwnContent,
		}},
	}
}

type roleRow struct {
	ID          uuid.UUID `db:"id"`
	Name        string    `db:"name"`
	Permissions []string  `db:"permissions"`
}

func (r roleRow) toRole() rbac.Role {
	perms := make([]rbac.Permission, len(r.Permissions))
	for i, p := range r.Permissions {
		perms[i] = rbac.Permission(p)
	}
	return rbac.Role{ID: r.ID, Name: r.Name, Permissions: perms}
}
