package rbac

import (
	"log/slog"

	"github.com/quoteboard/quoteboard/internal/shared"
)

// DecisionRecorder observes authorization outcomes.
type DecisionRecorder interface {
	RecordDecision(action string, allowed bool, reason string)
}

// Engine answers "may this identity perform this action on this target".
type Engine struct {
	registry *Registry
	recorder DecisionRecorder
	logger   *slog.Logger
}

// NewEngine constructs an Engine. recorder and logger may be nil.
func NewEngine(registry *Registry, recorder DecisionRecorder, logger *slog.Logger) *Engine {
	return &Engine{registry: registry, recorder: recorder, logger: logger}
}

// Registry exposes the role catalogue the engine reads.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Authorize evaluates action for identity. A nil target skips the ownership
// step, which lets callers reject on permission before loading the resource.
func (e *Engine) Authorize(identity *Identity, action Action, target *Target) Decision {
	decision := e.decide(identity, action, target)
	if e.recorder != nil {
		e.recorder.RecordDecision(string(action), decision.Allowed, decision.Reason)
	}
	if !decision.Allowed && e.logger != nil {
		attrs := []any{slog.String("action", string(action)), slog.String("reason", decision.Reason)}
		if identity != nil {
			attrs = append(attrs, slog.String("user_id", identity.UserID.String()))
		}
		e.logger.Debug("authorization denied", attrs...)
	}
	return decision
}

// Require is Authorize returning the classified error on denial.
func (e *Engine) Require(identity *Identity, action Action, target *Target) error {
	return e.Authorize(identity, action, target).Err()
}

// RoleOf resolves the role of identity.
func (e *Engine) RoleOf(identity *Identity) (Role, bool) {
	if identity == nil {
		return Role{}, false
	}
	return e.registry.ByID(identity.RoleID)
}

func (e *Engine) decide(identity *Identity, action Action, target *Target) Decision {
	if identity == nil {
		return Deny(shared.ReasonNotAuthenticated)
	}
	role, ok := e.registry.ByID(identity.RoleID)
	if !ok {
		return Deny(shared.ReasonRoleNotFound)
	}
	r, ok := rules[action]
	if !ok || !role.Has(r.permission) {
		return Deny(shared.ReasonForbidden)
	}
	if r.owned && target != nil && target.OwnerID != identity.UserID {
		return Deny(shared.ReasonNotOwner)
	}
	return Allow
}
