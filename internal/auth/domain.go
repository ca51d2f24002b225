package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// User represents an account with its credentials.
type User struct {
	ID           uuid.UUID `db:"id"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	Bio          string    `db:"bio"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	RoleID       uuid.UUID `db:"role_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	FirstName       string
	LastName        string
	Bio             string
	Email           string
	Password        string
	PasswordConfirm string
}

// NewUser is the row written by registration and bootstrap.
type NewUser struct {
	FirstName    string
	LastName     string
	Bio          string
	Email        string
	PasswordHash string
	RoleID       uuid.UUID
}

var emailCaser = cases.Lower(language.Und)

// NormalizeEmail trims and lowercases an address. Uniqueness and lookups are
// performed on the normalized form.
func NormalizeEmail(email string) string {
	return emailCaser.String(strings.TrimSpace(email))
}
