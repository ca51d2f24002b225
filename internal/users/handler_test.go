package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quoteboard/quoteboard/internal/rbac"
	"github.com/quoteboard/quoteboard/internal/shared"
)

func newTestRouter(svc *Service, actor *rbac.Identity) http.Handler {
	mw := rbac.Middleware{Engine: svc.engine}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor != nil {
				req = req.WithContext(rbac.ContextWithIdentity(req.Context(), actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	NewHandler(nil, svc, mw).MountRoutes(r)
	return r
}

func patchRole(router http.Handler, id, role string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPatch, "/managerole/"+id, strings.NewReader(url.Values{"role": {role}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandlerListUsers(t *testing.T) {
	super, member := account(superadminRole), account(userRole)
	svc := newTestService(newMemoryRepo(super, member), nil)

	for name, tc := range map[string]struct {
		actor *rbac.Identity
		code  int
	}{
		"anonymous":  {nil, http.StatusUnauthorized},
		"user":       {identityOf(member), http.StatusForbidden},
		"superadmin": {identityOf(super), http.StatusOK},
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(svc, tc.actor).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/listusers", nil))
			assert.Equal(t, tc.code, rec.Code)
			if tc.code == http.StatusOK {
				var out []Summary
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
				assert.Len(t, out, 2)
			}
		})
	}
}

func TestHandlerChangeRole(t *testing.T) {
	super, member := account(superadminRole), account(userRole)
	inv := &recordingInvalidator{}
	repo := newMemoryRepo(super, member)
	router := newTestRouter(newTestService(repo, inv), identityOf(super))

	rec := patchRole(router, member.ID.String(), " admin ")
	require.Equal(t, http.StatusOK, rec.Code)
	var change RoleChange
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &change))
	assert.Equal(t, RoleChange{UserID: member.ID, From: rbac.RoleUser, To: rbac.RoleAdmin}, change)
	assert.Equal(t, []uuid.UUID{member.ID}, inv.users)

	rec = patchRole(router, "not-a-uuid", "admin")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), shared.ReasonTargetNotFound)

	rec = patchRole(router, uuid.NewString(), "admin")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = patchRole(router, super.ID.String(), "user")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), shared.ReasonRoleNotEligible)
}

func TestHandlerChangeRoleRequiresSuperadmin(t *testing.T) {
	admin, member := account(adminRole), account(userRole)
	router := newTestRouter(newTestService(newMemoryRepo(admin, member), nil), identityOf(admin))

	rec := patchRole(router, member.ID.String(), "admin")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), shared.ReasonForbidden)
}
