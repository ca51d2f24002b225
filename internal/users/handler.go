package users

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/platform/httpx"
	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.ActionListUsers)).Get("/listusers", h.listUsers)
	r.With(h.rbac.Require(rbac.ActionChangeRole)).Patch("/managerole/{id}", h.changeRole)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context(), rbac.IdentityFromContext(r.Context()))
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	if users == nil {
		users = []Summary{}
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	targetID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, shared.ErrTargetNotFound)
		return
	}
	requested := strings.TrimSpace(httpx.FormValue(r, "role"))
	change, err := h.service.ChangeRole(r.Context(), rbac.IdentityFromContext(r.Context()), targetID, requested)
	if err != nil {
		h.fail(w, "change role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, change)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if _, ok := shared.AsError(err); !ok {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
