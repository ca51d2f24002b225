package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/platform/httpx"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// IdentityResolver loads the current identity for a user id.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, userID uuid.UUID) (*Identity, error)
}

// Middleware wires identity resolution and authorization for HTTP handlers.
type Middleware struct {
	Engine   *Engine
	Resolver IdentityResolver
	Logger   *slog.Logger
}

// Authenticate resolves the session user against the store on every request.
// Stale or unknown users are treated as anonymous.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := m.currentUserID(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := m.Resolver.ResolveIdentity(r.Context(), userID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Error("rbac resolve identity", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// Require rejects requests whose identity may not perform action.
func (m Middleware) Require(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			if err := m.Engine.Require(identity, action, nil); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) currentUserID(r *http.Request) (uuid.UUID, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return uuid.Nil, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse user id", slog.String("value", raw))
		}
		return uuid.Nil, false
	}
	return id, true
}
