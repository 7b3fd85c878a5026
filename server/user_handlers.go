package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jrsteele09/go-pm-server/auth"
	apperrors "github.com/jrsteele09/go-pm-server/internal/errors"
	"github.com/jrsteele09/go-pm-server/sessions"
	"github.com/jrsteele09/go-pm-server/users"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// updateUserRequest lists the only fields a profile update may carry.
type updateUserRequest struct {
	Name   *string `json:"name"`
	Avatar *string `json:"avatar"`
}

func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := sessions.FromContext(r.Context())
		user, err := s.auth.GetUser(r.Context(), identity.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		identity, _ := sessions.FromContext(r.Context())
		err := s.auth.ChangePassword(r.Context(), identity.UserID, req.CurrentPassword, req.NewPassword)
		if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
			writeMessage(w, http.StatusBadRequest, "Current password is incorrect")
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "Password updated successfully")
	}
}

// ListUsersHandler pages with ?offset=&limit=. Unparseable values fall back to defaults.
func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", 0)

		list, err := s.auth.ListUsers(r.Context(), offset, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.auth.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) SetRoleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		if req.Role == "" {
			writeMessage(w, http.StatusBadRequest, "Role is required")
			return
		}
		role, err := users.ParseRole(req.Role)
		if err != nil {
			writeError(w, r, err)
			return
		}

		identity, _ := sessions.FromContext(r.Context())
		user, err := s.auth.SetRole(r.Context(), identity.UserID, chi.URLParam(r, "id"), role)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) DeleteUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := sessions.FromContext(r.Context())
		if err := s.auth.DeleteUser(r.Context(), identity.UserID, chi.URLParam(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "User deleted")
	}
}

// UpdateUserHandler lets users edit their own name and avatar, and admins edit anyone's.
func (s *Server) UpdateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}

		identity, _ := sessions.FromContext(r.Context())
		user, err := s.auth.UpdateProfile(r.Context(), identity, chi.URLParam(r, "id"), auth.ProfileUpdate{
			Name:   req.Name,
			Avatar: req.Avatar,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) DeleteAccountHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := sessions.FromContext(r.Context())
		if err := s.auth.DeleteAccount(r.Context(), identity); err != nil {
			writeError(w, r, err)
			return
		}
		writeMessage(w, http.StatusOK, "Account deleted successfully")
	}
}

func (s *Server) ExportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := sessions.FromContext(r.Context())
		export, err := s.auth.ExportUser(r.Context(), identity.UserID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Disposition", "attachment; filename=user-data.json")
		writeJSON(w, http.StatusOK, export)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
