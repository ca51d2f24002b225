package rbac

import (
	"slices"

	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/shared"
)

// Permission is a token from the closed permission vocabulary.
type Permission string

const (
	PermCreateOwnContent Permission = "create_own_content"
	PermUpdateOwnContent Permission = "update_own_content"
	PermDeleteOwnContent Permission = "delete_own_content"
	PermBan              Permission = "ban"
	PermUpdateAdmin      Permission = "updateadmin"
)

// Vocabulary lists every permission token the system knows.
func Vocabulary() []Permission {
	return []Permission{
		PermCreateOwnContent,
		PermUpdateOwnContent,
		PermDeleteOwnContent,
		PermBan,
		PermUpdateAdmin,
	}
}

// Valid reports whether p belongs to the vocabulary.
func (p Permission) Valid() bool {
	return slices.Contains(Vocabulary(), p)
}

// Role names provisioned at bootstrap.
const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

// Role is a named, fixed bundle of permissions.
type Role struct {
	ID          uuid.UUID
	Name        string
	Permissions []Permission
}

// Has reports whether the role grants p.
func (r Role) Has(p Permission) bool {
	return slices.Contains(r.Permissions, p)
}

// Identity is the authenticated actor, re-resolved from the store per request.
type Identity struct {
	UserID uuid.UUID
	RoleID uuid.UUID
	Email  string
}

// Action names an operation guarded by the engine.
type Action string

const (
	ActionCreateContent Action = "content.create"
	ActionEditContent   Action = "content.edit"
	ActionDeleteContent Action = "content.delete"
	ActionBanContent    Action = "content.ban"
	ActionListUsers     Action = "users.list"
	ActionChangeRole    Action = "users.change_role"
)

type rule struct {
	permission Permission
	owned      bool
}

// rules is the flat action -> permission table. Roles do not inherit from each
// other: an admin holding only "ban" cannot create content.
var rules = map[Action]rule{
	ActionCreateContent: {permission: PermCreateOwnContent},
	ActionEditContent:   {permission: PermUpdateOwnContent, owned: true},
	ActionDeleteContent: {permission: PermDeleteOwnContent, owned: true},
	ActionBanContent:    {permission: PermBan},
	ActionListUsers:     {permission: PermUpdateAdmin},
	ActionChangeRole:    {permission: PermUpdateAdmin},
}

// RequiredPermission returns the permission an action needs.
func RequiredPermission(action Action) (Permission, bool) {
	r, ok := rules[action]
	return r.permission, ok
}

// Target describes the resource an action applies to.
type Target struct {
	OwnerID uuid.UUID
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive decision.
var Allow = Decision{Allowed: true}

// Deny builds a negative decision.
func Deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err converts the decision into a classified error, nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case shared.ReasonNotAuthenticated:
		return shared.ErrNotAuthenticated
	case shared.ReasonRoleNotFound:
		return shared.ErrRoleNotFound
	case shared.ReasonNotOwner:
		return shared.ErrNotOwner
	default:
		return shared.ErrForbidden
	}
}
