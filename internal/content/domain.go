// Package content implements the quote lifecycle: creation, owner edits, soft
// deletion and the moderation ban toggle.
package content

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/shared"
)

// Status is the lifecycle state of a quote.
type Status string

const (
	StatusActive   Status = "Active"
	StatusBan      Status = "Ban"
	StatusInactive Status = "Inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusBan, StatusInactive:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusInactive
}

// Quote is a content item.
type Quote struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Text      string    `db:"quote" json:"quote"`
	Status    Status    `db:"status" json:"status"`
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
	OwnerName string    `db:"owner_name" json:"owner_name,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Operation is a mutation applied to an existing quote.
type Operation string

const (
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
	OpBan    Operation = "ban"
)

// Transition returns the status reached by applying op to a quote in status
// current. text is the trimmed replacement text for edits.
func Transition(current Status, op Operation, text string) (Status, error) {
	if current.Terminal() {
		return current, shared.ErrContentArchived
	}
	switch op {
	case OpEdit:
		if current == StatusBan && text == "" {
			return current, shared.ErrEmptyText
		}
		return StatusActive, nil
	case OpDelete:
		return StatusInactive, nil
	case OpBan:
		if current == StatusActive {
			return StatusBan, nil
		}
		return StatusInactive, nil
	}
	return current, shared.ErrForbidden
}

// normalizeText trims surrounding whitespace from submitted quote text.
func normalizeText(text string) string {
	return strings.TrimSpace(text)
}
