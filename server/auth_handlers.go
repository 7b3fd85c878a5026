package server

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/jrsteele09/go-pm-server/auth"
	"github.com/jrsteele09/go-pm-server/federated"
	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type federatedLoginRequest struct {
	ProviderToken string `json:"providerToken"`
	Provider      string `json:"provider"`
}

type googleLoginRequest struct {
	Token string `json:"token"`
}

type federatedCodeRequest struct {
	Code        string `json:"code"`
	Provider    string `json:"provider"`
	RedirectURI string `json:"redirectUri"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	ResetToken  string `json:"resetToken"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		result, err := s.auth.Register(r.Context(), auth.RegisterRequest{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, authResponse{Token: result.Token, User: result.User})
	}
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		result, err := s.auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
	}
}

// FederatedLoginHandler accepts an ID token from any registered provider.
// An empty provider selects the default one.
func (s *Server) FederatedLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req federatedLoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		s.federatedLogin(w, r, req.Provider, req.ProviderToken)
	}
}

// GoogleLoginHandler keeps the {token} body shape used by older clients.
func (s *Server) GoogleLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req googleLoginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		s.federatedLogin(w, r, federated.ProviderGoogle, req.Token)
	}
}

func (s *Server) federatedLogin(w http.ResponseWriter, r *http.Request, provider, rawToken string) {
	if rawToken == "" {
		writeMessage(w, http.StatusBadRequest, "Provider token is required")
		return
	}
	result, err := s.auth.FederatedLogin(r.Context(), provider, rawToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
}

func (s *Server) FederatedCodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req federatedCodeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.Code == "" {
			writeMessage(w, http.StatusBadRequest, "Authorization code is required")
			return
		}

		result, err := s.auth.FederatedCodeLogin(r.Context(), req.Provider, req.Code, req.RedirectURI)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, authResponse{Token: result.Token, User: result.User})
	}
}

func (s *Server) ForgotPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req forgotPasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		err := s.auth.ForgotPassword(r.Context(), req.Email)
		switch {
		case err == nil:
			writeMessage(w, http.StatusOK, "Password reset email sent successfully")
		case apperrors.Is(err, apperrors.ErrUserNotFound), apperrors.Is(err, apperrors.ErrInvalidRequest):
			writeError(w, r, err)
		default:
			hlog.FromRequest(r).Error().Err(err).Msg("password reset email failed")
			writeMessage(w, http.StatusInternalServerError, "Failed to send reset email")
		}
	}
}

// ResetPasswordHandler accepts the token as "token" or "resetToken".
func (s *Server) ResetPasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetPasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		resetToken := req.Token
		if resetToken == "" {
			resetToken = req.ResetToken
		}
		if resetToken == "" {
			writeMessage(w, http.StatusBadRequest, msgResetInvalid)
			return
		}

		if err := s.auth.ResetPassword(r.Context(), resetToken, req.NewPassword); err != nil {
			writeError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "Password reset successfully")
	}
}
