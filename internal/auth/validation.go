package auth

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const passwordSymbols = "!@#$%^&*()_+?|"

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// newValidator registers the account validation tags.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("password_policy", func(fl validator.FieldLevel) bool {
		return PasswordMeetsPolicy(fl.Field().String())
	})
	_ = v.RegisterValidation("account_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

// PasswordMeetsPolicy reports whether p has at least 8 characters, one ASCII
// uppercase letter and one symbol from !@#$%^&*()_+?|.
func PasswordMeetsPolicy(p string) bool {
	if utf8.RuneCountInString(p) < 8 {
		return false
	}
	hasUpper := strings.ContainsFunc(p, func(r rune) bool { return r >= 'A' && r <= 'Z' })
	return hasUpper && strings.ContainsAny(p, passwordSymbols)
}

type requiredFields struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"required"`
	Password  string `validate:"required"`
}

// ValidEmail reports whether email matches the accepted address pattern.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
