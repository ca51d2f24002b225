package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// Kind classifies failures surfaced at the operation boundary.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindAuthentication Kind = "authentication_required"
	KindAuthorization  Kind = "authorization_denied"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindIntegrity      Kind = "integrity_failure"
)

// Stable reason codes returned to callers.
const (
	ReasonInvalidPassword      = "invalid_password"
	ReasonPasswordMismatch     = "password_mismatch"
	ReasonMissingFields        = "missing_fields"
	ReasonInvalidEmail         = "invalid_email"
	ReasonEmailTaken           = "email_taken"
	ReasonInvalidCredentials   = "invalid_credentials"
	ReasonNotAuthenticated     = "not_authenticated"
	ReasonForbidden            = "forbidden"
	ReasonNotOwner             = "not_owner"
	ReasonRoleNotFound         = "role_not_found"
	ReasonRoleNotEligible      = "role_not_eligible"
	ReasonInvalidRequestedRole = "invalid_requested_role"
	ReasonNotFound             = "not_found"
	ReasonTargetNotFound       = "target_not_found"
	ReasonContentArchived      = "content_archived"
	ReasonEmptyText            = "empty_text"
	ReasonConcurrentUpdate     = "concurrent_update"
	ReasonInternal             = "internal_error"
)

// Error is a classified failure with a machine readable reason.
type Error struct {
	Kind    Kind
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind and reason so callers can compare against
// the prebuilt values below with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind && e.Reason == other.Reason
}

// NewError builds a classified error.
func NewError(kind Kind, reason, message string) *Error {
	return &Error{Kind: kind, Reason: reason, Message: message}
}

// Wrap attaches a cause to a classified error without exposing it in Message.
func Wrap(base *Error, cause error) *Error {
	return &Error{Kind: base.Kind, Reason: base.Reason, Message: base.Message, Err: cause}
}

// AsError extracts the classified error, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ReasonOf returns the reason code of err, or internal_error for unclassified failures.
func ReasonOf(err error) string {
	if e, ok := AsError(err); ok {
		return e.Reason
	}
	return ReasonInternal
}

// Prebuilt errors for each reason.
var (
	ErrInvalidPassword = NewError(KindValidation, ReasonInvalidPassword,
		"Password must be at least 8 characters long, contain at least one uppercase letter, and one special character")
	ErrPasswordMismatch     = NewError(KindValidation, ReasonPasswordMismatch, "Your password and confirmation password did not match")
	ErrMissingFields        = NewError(KindValidation, ReasonMissingFields, "All fields are required")
	ErrInvalidEmail         = NewError(KindValidation, ReasonInvalidEmail, "Email is invalid pattern")
	ErrEmptyText            = NewError(KindValidation, ReasonEmptyText, "Quote is required")
	ErrInvalidRequestedRole = NewError(KindValidation, ReasonInvalidRequestedRole, "Requested role must be user or admin")

	ErrNotAuthenticated = NewError(KindAuthentication, ReasonNotAuthenticated, "You must be logged in")
	ErrBadCredentials   = NewError(KindAuthentication, ReasonInvalidCredentials, "Invalid credentials")

	ErrForbidden       = NewError(KindAuthorization, ReasonForbidden, "You are not allowed to perform this action")
	ErrNotOwner        = NewError(KindAuthorization, ReasonNotOwner, "Only the creator can change this quote")
	ErrRoleNotEligible = NewError(KindAuthorization, ReasonRoleNotEligible, "Target role can not change role")

	ErrContentNotFound  = NewError(KindNotFound, ReasonNotFound, "Quote not found")
	ErrTargetNotFound   = NewError(KindNotFound, ReasonTargetNotFound, "User not found")
	ErrContentArchived  = NewError(KindNotFound, ReasonContentArchived, "Quote is archived")
	ErrEmailTaken       = NewError(KindConflict, ReasonEmailTaken, "This email is already registered")
	ErrConcurrentUpdate = NewError(KindConflict, ReasonConcurrentUpdate, "The record was changed by another request, try again")

	ErrRoleNotFound = NewError(KindIntegrity, ReasonRoleNotFound, "Role is not found")
)
