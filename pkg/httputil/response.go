// Package httputil writes the JSON envelope the report server answers with.
package httputil

import (
	"encoding/json"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/testforge/e2ekit/internal/domain"
)

// Response is the envelope every JSON answer is wrapped in.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Hint      string         `json:"hint,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// JSON answers with data. Any status outside 2xx marks the envelope as failed.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Response{Success: status >= 200 && status < 300, Data: data})
}

// Fail answers with err. AppErrors keep their code, status, hint and metadata;
// anything else becomes a bare internal error so its text never leaks. The
// request id set by chi's RequestID middleware is echoed when present.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	e := &Error{Code: domain.ErrCodeInternal, Message: "Internal server error"}
	if appErr, ok := domain.AsAppError(err); ok {
		e.Code = appErr.Code
		e.Message = appErr.Message
		e.Hint = appErr.Details
		e.Metadata = appErr.Metadata
	}
	if r != nil {
		e.RequestID = chimw.GetReqID(r.Context())
	}
	write(w, domain.HTTPStatus(err), Response{Error: e})
}
