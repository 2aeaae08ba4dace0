package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/homedisk/internal/errs"
	"github.com/and161185/homedisk/internal/service"
	"github.com/and161185/homedisk/internal/storage"
)

type errorBody struct {
	Error string `json:"error"`
}

// statusFor maps a service error to an HTTP status and a message that is safe
// to show to clients. Messages never contain server-side paths.
func statusFor(err error) (int, string) {
	for _, e := range []error{
		service.ErrUsernameTooShort, service.ErrUsernameTooLong,
		service.ErrUsernameInvalid, service.ErrPasswordTooShort,
	} {
		if errors.Is(err, e) {
			return http.StatusBadRequest, e.Error()
		}
	}

	switch {
	case errors.Is(err, service.ErrUserRoot):
		return http.StatusBadRequest, "operation not allowed on the root directory"
	case errors.Is(err, storage.ErrNotADirectory):
		return http.StatusBadRequest, "not a directory"
	case errors.Is(err, errs.ErrInvalidPath):
		return http.StatusBadRequest, "invalid path"
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, "too many attempts, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("request_id", RequestIDFromCtx(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	} else {
		s.log.Debug("request rejected",
			zap.String("request_id", RequestIDFromCtx(r.Context())),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorBody{Error: msg})
}
