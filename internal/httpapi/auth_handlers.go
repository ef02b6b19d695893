package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/audit"
	"github.com/AbdessamadProschool/medaction-prod-sub006/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresIn int64         `json:"expires_in"`
	Actor     auth.Identity `json:"actor"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.identities == nil {
		writeError(w, r, http.StatusNotImplemented, "login is not configured")
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	identity, err := auth.Login(r.Context(), a.identities, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			_ = audit.LogSecurityEvent(r.Context(), "auth.login_failed", map[string]any{
				"email": req.Email,
			})
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	token, err := auth.GenerateToken(identity.Actor(), a.tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"actor_id": identity.ID,
		"role":     string(identity.Role),
	})
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresIn: int64(a.tokenTTL / time.Second),
		Actor:     identity,
	})
}
