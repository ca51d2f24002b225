// Package httpx provides HTTP response utilities.
package httpx

import (
	"net/http"

	"github.com/quoteboard/quoteboard/internal/shared"
)

var kindStatus = map[shared.Kind]int{
	shared.KindValidation:     http.StatusBadRequest,
	shared.KindAuthentication: http.StatusUnauthorized,
	shared.KindAuthorization:  http.StatusForbidden,
	shared.KindNotFound:       http.StatusNotFound,
	shared.KindConflict:       http.StatusConflict,
	shared.KindIntegrity:      http.StatusInternalServerError,
}

// StatusFor returns the HTTP status for a classified error.
func StatusFor(err error) int {
	if e, ok := shared.AsError(err); ok {
		if status, ok := kindStatus[e.Kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// RespondError maps domain errors to HTTP responses using RFC7807. Only the
// classified message and reason reach the client; causes stay in the logs.
func RespondError(w http.ResponseWriter, err error) {
	e, ok := shared.AsError(err)
	if !ok {
		Problem(w, http.StatusInternalServerError, "Internal Error", "", shared.ReasonInternal)
		return
	}
	status := StatusFor(err)
	detail := e.Message
	if e.Kind == shared.KindIntegrity {
		detail = ""
	}
	Problem(w, status, http.StatusText(status), detail, e.Reason)
}
