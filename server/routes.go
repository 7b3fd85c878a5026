package server

import (
	"net/http"

	"github.com/jrsteele09/go-pm-server/internal/metrics"
	"github.com/jrsteele09/go-pm-server/users"
)

func (s *Server) initRoutes() {
	authMW := s.AuthRouteMiddleware()

	// AUTH
	s.RegisterRouteFunc("POST "+RouteRegister, ChainMiddleware(s.RegisterHandler(), authMW...))
	s.RegisterRouteFunc("POST "+RouteLogin, ChainMiddleware(s.LoginHandler(), authMW...))
	s.RegisterRouteFunc("POST "+RouteFederated, ChainMiddleware(s.FederatedLoginHandler(), authMW...))
	s.RegisterRouteFunc("POST "+RouteFederatedCode, ChainMiddleware(s.FederatedCodeHandler(), authMW...))
	s.RegisterRouteFunc("POST "+RouteGoogle, ChainMiddleware(s.GoogleLoginHandler(), authMW...))

	// PASSWORD RESET
	s.RegisterRouteFunc("POST "+RouteForgotPassword, ChainMiddleware(s.ForgotPasswordHandler(), authMW...))
	s.RegisterRouteFunc("POST "+RouteResetPassword, ChainMiddleware(s.ResetPasswordHandler(), authMW...))

	// USERS (static segments win over "{id}" in chi)
	s.RegisterRouteFunc("GET "+RouteUserMe, ChainMiddleware(s.MeHandler(), s.RequireAuth()))
	s.RegisterRouteFunc("PUT "+RouteUserPassword, ChainMiddleware(s.ChangePasswordHandler(), s.RequireAuth()))
	s.RegisterRouteFunc("DELETE "+RouteUserAccount, ChainMiddleware(s.DeleteAccountHandler(), s.RequireAuth()))
	s.RegisterRouteFunc("GET "+RouteUserExport, ChainMiddleware(s.ExportHandler(), s.RequireAuth()))
	s.RegisterRouteFunc("GET "+RouteUsers, ChainMiddleware(s.ListUsersHandler(), s.RequireAuth(), s.RequireRole(users.RoleAdmin)))
	s.RegisterRouteFunc("GET "+RouteUserByID, ChainMiddleware(s.GetUserHandler(), s.RequireAuth()))
	s.RegisterRouteFunc("PUT "+RouteUserByID, ChainMiddleware(s.UpdateUserHandler(), s.RequireAuth()))
	s.RegisterRouteFunc("PATCH "+RouteUserRoleByID, ChainMiddleware(s.SetRoleHandler(), s.RequireAuth(), s.RequireRole(users.RoleAdmin)))
	s.RegisterRouteFunc("DELETE "+RouteUserByID, ChainMiddleware(s.DeleteUserHandler(), s.RequireAuth(), s.RequireRole(users.RoleAdmin)))

	// OPERATIONAL
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	if s.gatherer != nil {
		s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler(s.gatherer))
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}
