package content

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/quoteboard/quoteboard/internal/platform/httpx"
	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

// Handler exposes the content endpoints.
type Handler struct {
	logger  *slog.Logger
	manager *Manager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, manager: manager}
}

// MountRoutes registers content routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Route("/content", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.edit)
		r.Delete("/{id}", h.softDelete)
		r.Patch("/ban/{id}", h.toggleBan)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.manager.ListActive(r.Context())
	if err != nil {
		h.fail(w, "list content", err)
		return
	}
	if quotes == nil {
		quotes = []Quote{}
	}
	httpx.JSON(w, http.StatusOK, quotes)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	q, err := h.manager.Get(r.Context(), contentID(r))
	if err != nil {
		h.fail(w, "get content", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	q, err := h.manager.Create(r.Context(), rbac.IdentityFromContext(r.Context()), httpx.FormValue(r, "quote"))
	if err != nil {
		h.fail(w, "create content", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, q)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	q, err := h.manager.Edit(r.Context(), rbac.IdentityFromContext(r.Context()), contentID(r), httpx.FormValue(r, "quote"))
	if err != nil {
		h.fail(w, "edit content", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) softDelete(w http.ResponseWriter, r *http.Request) {
	q, err := h.manager.SoftDelete(r.Context(), rbac.IdentityFromContext(r.Context()), contentID(r))
	if err != nil {
		h.fail(w, "delete content", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

func (h *Handler) toggleBan(w http.ResponseWriter, r *http.Request) {
	q, err := h.manager.ToggleBan(r.Context(), rbac.IdentityFromContext(r.Context()), contentID(r))
	if err != nil {
		h.fail(w, "toggle ban", err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}

// contentID parses the route id. Malformed ids map to uuid.Nil, which no row
// carries, so authentication and permission checks still run first.
func contentID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if _, ok := shared.AsError(err); !ok {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
