package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/quoteboard/quoteboard/internal/platform/httpx"
	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

var errSessionMissing = errors.New("auth: session missing from request context")

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/session", h.checkSession)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.handleRegister)
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
	})
}

type loginForm struct {
	Email    string `validate:"required"`
	Password string `validate:"required"`
}

type sessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
	Role          string `json:"role,omitempty"`
	CSRFToken     string `json:"csrf_token,omitempty"`
}

func (h *Handler) checkSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	resp := sessionResponse{}
	if identity := rbac.IdentityFromContext(r.Context()); identity != nil {
		resp.Authenticated = true
		resp.UserID = identity.UserID.String()
		resp.Role = h.service.RoleName(identity.RoleID)
		if sess != nil && sess.Role() != resp.Role {
			sess.SetRole(resp.Role)
		}
	}
	if sess != nil {
		token, err := h.csrfManager.EnsureToken(sess)
		if err != nil {
			h.logger.Error("ensure csrf token", slog.Any("error", err))
		}
		resp.CSRFToken = token
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	in := RegisterInput{
		FirstName:       httpx.FormValue(r, "first_name"),
		LastName:        httpx.FormValue(r, "last_name"),
		Bio:             httpx.FormValue(r, "bio"),
		Email:           httpx.FormValue(r, "email"),
		Password:        httpx.FormValue(r, "password"),
		PasswordConfirm: httpx.FormValue(r, "password_confirm"),
	}
	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.logFailure("register", err)
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.establish(r, user)
	if err != nil {
		h.logger.Error("register establish session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := loginForm{
		Email:    httpx.FormValue(r, "email"),
		Password: httpx.FormValue(r, "password"),
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.RespondError(w, shared.ErrBadCredentials)
		return
	}
	user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.establish(r, user)
	if err != nil {
		h.logger.Error("login establish session", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if sess.User() != "" {
			if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
				h.logger.Warn("remove session", slog.Any("error", err))
			}
		}
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

// establish binds user to the request session under a fresh id.
func (h *Handler) establish(r *http.Request, user *User) (sessionResponse, error) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return sessionResponse{}, errSessionMissing
	}
	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		return sessionResponse{}, err
	}
	role := h.service.RoleName(user.RoleID)
	sess.SetUser(user.ID.String())
	sess.SetRole(role)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	token, err := h.csrfManager.EnsureToken(sess)
	if err != nil {
		return sessionResponse{}, err
	}
	return sessionResponse{
		Authenticated: true,
		UserID:        user.ID.String(),
		Role:          role,
		CSRFToken:     token,
	}, nil
}

func (h *Handler) logFailure(op string, err error) {
	if _, ok := shared.AsError(err); ok {
		h.logger.Debug(op+" rejected", slog.String("reason", shared.ReasonOf(err)))
		return
	}
	h.logger.Error(op+" failed", slog.Any("error", err))
}
