package httpx

import (
	"errors"
	"net/http"

	"github.com/splax/tasktracker/internal/domain"
	"github.com/splax/tasktracker/internal/service/auth"
)

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	var payload registerRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, req, http.StatusBadRequest, "Malformed JSON request")
		return
	}
	result, err := r.auth.Register(req.Context(), auth.RegisterInput{
		FirstName: payload.FirstName,
		LastName:  payload.LastName,
		Email:     payload.Email,
		Password:  payload.Password,
	})
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var payload loginRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, req, http.StatusBadRequest, "Malformed JSON request")
		return
	}
	if !r.admit(w, req, ruleLoginAccount, accountKey(payload.Email)) {
		return
	}
	result, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		// both failures look the same from outside
		switch {
		case errors.Is(err, domain.ErrIdentityNotFound):
			r.recordAuthFailure("login", "unknown_identity")
			writeError(w, req, http.StatusUnauthorized, "Invalid email or password")
			return
		case errors.Is(err, domain.ErrInvalidCredentials):
			r.recordAuthFailure("login", "bad_password")
			writeError(w, req, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

func (r *Router) handleProfile(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	identity, err := r.auth.Profile(req.Context(), caller)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*identity))
}

func (r *Router) handleUpdateProfile(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	var payload profileRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, req, http.StatusBadRequest, "Malformed JSON request")
		return
	}
	identity, err := r.auth.UpdateProfile(req.Context(), caller, auth.ProfileInput{FirstName: payload.FirstName, LastName: payload.LastName})
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(*identity))
}

func (r *Router) handleChangePassword(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	var payload passwordRequest
	if err := decodeJSON(w, req, &payload); err != nil {
		writeError(w, req, http.StatusBadRequest, "Malformed JSON request")
		return
	}
	if err := r.auth.ChangePassword(req.Context(), caller, payload.CurrentPassword, payload.NewPassword); err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, req, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		r.serviceError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleAdminUsers(w http.ResponseWriter, req *http.Request) {
	caller, ok := r.caller(w, req)
	if !ok {
		return
	}
	identities, err := r.auth.ListIdentities(req.Context(), caller)
	if err != nil {
		r.serviceError(w, req, err)
		return
	}
	out := make([]userResponse, 0, len(identities))
	for _, identity := range identities {
		out = append(out, toUserResponse(identity))
	}
	writeJSON(w, http.StatusOK, out)
}

// caller returns the identity resolved by requireAuth.
func (r *Router) caller(w http.ResponseWriter, req *http.Request) (*domain.Identity, bool) {
	caller, ok := callerFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing", "path", req.URL.Path)
		writeError(w, req, http.StatusInternalServerError, "Internal Server Error")
		return nil, false
	}
	return caller, true
}

// serviceError writes the mapped failure and logs unexpected ones.
func (r *Router) serviceError(w http.ResponseWriter, req *http.Request, err error) {
	status, _ := statusFor(err)
	if status == http.StatusInternalServerError {
		r.logger.Error("request failed", "error", err, "path", req.URL.Path)
	}
	writeServiceError(w, req, err)
}
