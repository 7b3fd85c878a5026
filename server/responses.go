package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-pm-server/auth"
	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/users"
)

const (
	msgServerError        = "Server error"
	msgInvalidCredentials = "Invalid credentials"
	msgUserExists         = "Email already exists"
	msgUserNotFound       = "User not found"
	msgResetExpired       = "Reset token has expired"
	msgResetInvalid       = "Invalid reset token"
	msgFederatedFailed    = "Federated authentication failed"
	msgInvalidRole        = "Invalid role"
	msgInvalidRequest     = "Invalid request"
)

type messageResponse struct {
	Message string `json:"message"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError maps the error taxonomy onto a status and a client safe message.
// Only the category reaches the client; the full chain is logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := statusFor(err)
	logger := hlog.FromRequest(r)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	writeMessage(w, status, message)
}

func statusFor(err error) (int, string) {
	var weak *users.WeakPasswordError
	var invalid *auth.InvalidInputError

	switch {
	case apperrors.As(err, &weak):
		return http.StatusBadRequest, weak.Reason
	case apperrors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Reason
	case apperrors.Is(err, apperrors.ErrInvalidRequest), apperrors.Is(err, apperrors.ErrWeakPassword):
		return http.StatusBadRequest, msgInvalidRequest
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		return http.StatusBadRequest, msgInvalidCredentials
	case apperrors.Is(err, apperrors.ErrEmailAlreadyExists):
		return http.StatusBadRequest, msgUserExists
	case apperrors.Is(err, apperrors.ErrInvalidRole):
		return http.StatusBadRequest, msgInvalidRole
	case apperrors.Is(err, apperrors.ErrTokenExpired):
		return http.StatusBadRequest, msgResetExpired
	case apperrors.Is(err, apperrors.ErrTokenMalformed):
		return http.StatusBadRequest, msgResetInvalid
	case apperrors.Is(err, apperrors.ErrNoToken):
		return http.StatusUnauthorized, msgNoToken
	case apperrors.Is(err, apperrors.ErrInvalidToken):
		return http.StatusUnauthorized, msgInvalidToken
	case apperrors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, msgForbidden
	case apperrors.Is(err, apperrors.ErrUserNotFound):
		return http.StatusNotFound, msgUserNotFound
	case apperrors.Is(err, apperrors.ErrFederatedTokenInvalid):
		return http.StatusInternalServerError, msgFederatedFailed
	default:
		return http.StatusInternalServerError, msgServerError
	}
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperrors.Wrapf(apperrors.ErrInvalidRequest, "decode body: %v", err)
	}
	return nil
}
