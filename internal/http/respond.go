package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/splax/tasktracker/internal/domain"
)

// apiError is the body of every non-2xx response.
type apiError struct {
	Timestamp   time.Time `json:"timestamp"`
	StatusCode  int       `json:"statusCode"`
	StatusText  string    `json:"statusText"`
	Message     string    `json:"message"`
	RequestPath string    `json:"requestPath"`
}

// writeJSON writes JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends an error body.
func writeError(w http.ResponseWriter, req *http.Request, status int, msg string) {
	writeJSON(w, status, apiError{
		Timestamp:   time.Now().UTC(),
		StatusCode:  status,
		StatusText:  http.StatusText(status),
		Message:     msg,
		RequestPath: req.URL.Path,
	})
}

// writeServiceError maps a core failure onto a status and a message that leaks nothing internal.
func writeServiceError(w http.ResponseWriter, req *http.Request, err error) {
	status, msg := statusFor(err)
	writeError(w, req, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrAccessDenied):
		return http.StatusForbidden, "Access Denied"
	case errors.Is(err, domain.ErrIdentityNotFound):
		return http.StatusNotFound, "Identity not found"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "Resource not found"
	case errors.Is(err, domain.ErrDuplicateIdentity):
		return http.StatusConflict, "Email is already registered"
	case errors.Is(err, domain.ErrMalformedRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "Data conflict"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// decodeJSON reads the request body into dst.
func decodeJSON(w http.ResponseWriter, req *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
