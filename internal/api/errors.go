package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmynk/spending-diary/internal/auth"
	"github.com/mmynk/spending-diary/internal/ledger"
	"github.com/mmynk/spending-diary/internal/middleware"
)

const internalErrorMessage = "something went wrong"

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrConflict),
		errors.Is(err, auth.ErrPhoneExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the text safe to show the client for err.
func messageFor(status int, err error) string {
	var verr *ledger.ValidationError
	switch {
	case status == http.StatusInternalServerError:
		return internalErrorMessage
	case errors.Is(err, ledger.ErrConflict):
		return ledger.ErrConflict.Error()
	case errors.As(err, &verr):
		return verr.Message
	default:
		return err.Error()
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: true, Message: message})
}

// writeError answers with the mapped status. Internal errors are logged here
// and never leak to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimw.GetReqID(r.Context()),
			"user_id", middleware.GetUserID(r.Context()),
			"error", err)
	}
	writeJSON(w, status, Response{Success: false, Message: messageFor(status, err)})
}

// writeBadRequest is for malformed input caught before reaching a service.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: message})
}
