package server

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/sessions"
	"github.com/jrsteele09/go-pm-server/users"
)

// Gate rejection reasons, used as metric labels.
const (
	rejectNoToken      = "no_token"
	rejectInvalidToken = "invalid_token"
	rejectForbidden    = "forbidden"
)

const (
	msgNoToken      = "No token, authorization denied"
	msgInvalidToken = "Token is not valid"
	msgForbidden    = "Access denied"
)

// RequireAuth is middleware that validates a Bearer session token and puts the
// resulting identity on the request context. Expired and malformed tokens are
// both reported as invalid.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				s.metrics.RecordGateRejection(rejectNoToken)
				writeError(w, r, apperrors.ErrNoToken)
				return
			}

			identity, err := s.auth.VerifySession(raw)
			if err != nil {
				s.metrics.RecordGateRejection(rejectInvalidToken)
				writeError(w, r, apperrors.Wrapf(apperrors.ErrInvalidToken, "%v", err))
				return
			}

			hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("user_id", identity.UserID)
			})
			next(w, r.WithContext(sessions.WithIdentity(r.Context(), identity)))
		}
	}
}

// RequireRole admits only identities holding one of roles. It must be chained
// after RequireAuth.
func (s *Server) RequireRole(roles ...users.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			identity, ok := sessions.FromContext(r.Context())
			if !ok {
				s.metrics.RecordGateRejection(rejectNoToken)
				writeError(w, r, apperrors.ErrNoToken)
				return
			}
			if !identity.HasRole(roles...) {
				s.metrics.RecordGateRejection(rejectForbidden)
				hlog.FromRequest(r).Info().
					Str("user_id", identity.UserID).
					Str("role", identity.Role.String()).
					Msg("role check failed")
				writeError(w, r, apperrors.Wrapf(apperrors.ErrForbidden, "role %s", identity.Role))
				return
			}
			next(w, r)
		}
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(authHeader, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
