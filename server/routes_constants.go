package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Auth Routes - Login & Registration
	RouteRegister      = "/api/auth/register"
	RouteLogin         = "/api/auth/login"
	RouteFederated     = "/api/auth/federated"
	RouteFederatedCode = "/api/auth/federated/code"
	RouteGoogle        = "/api/auth/google"

	// Auth Routes - Password Management
	RouteForgotPassword = "/api/auth/forgot-password"
	RouteResetPassword  = "/api/auth/reset-password"

	// User Routes
	RouteUsers        = "/api/users"
	RouteUserMe       = "/api/users/me"
	RouteUserPassword = "/api/users/password"
	RouteUserAccount  = "/api/users/account"
	RouteUserExport   = "/api/users/export"
	RouteUserByID     = "/api/users/{id}"
	RouteUserRoleByID = "/api/users/{id}/role"

	// Operational Routes
	RouteHealth  = "/health"
	RouteMetrics = "/metrics"
)
