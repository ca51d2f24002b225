package users

import "github.com/google/uuid"

// Summary is the listing view of an account.
type Summary struct {
	ID    uuid.UUID `db:"id" json:"id"`
	Email string    `db:"email" json:"email"`
}

// Account is the locked row read during a role change.
type Account struct {
	ID     uuid.UUID `db:"id"`
	Email  string    `db:"email"`
	RoleID uuid.UUID `db:"role_id"`
}

// RoleChange reports an applied promotion or demotion.
type RoleChange struct {
	UserID uuid.UUID `json:"user_id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
}
