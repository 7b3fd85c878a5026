package server

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler) // Call the middleware function
	}
	return chainedHandler
}

// GlobalMiddleware wraps every route, outermost first.
func (s *Server) GlobalMiddleware() []func(http.Handler) http.Handler {
	var mw []func(http.Handler) http.Handler
	if s.config.GetTrustProxy() {
		mw = append(mw, middleware.RealIP)
	}
	return append(mw,
		hlog.NewHandler(log.Logger),
		hlog.RequestIDHandler("req_id", "X-Request-Id"),
		hlog.RemoteAddrHandler("ip"),
		s.AccessLogMiddleware(),
		s.RecoverMiddleware,
		s.CorsMiddleware(),
		s.SecurityHeadersMiddleware,
	)
}

// AuthRouteMiddleware applies to the unauthenticated /api/auth endpoints.
func (s *Server) AuthRouteMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	mw := []func(http.HandlerFunc) http.HandlerFunc{
		LimitBodyMiddleware,
	}
	if s.limiter != nil {
		mw = append(mw, s.limiter.Middleware(s.metrics))
	}
	return mw
}

// AccessLogMiddleware logs one line per request and records its latency by route pattern.
func (s *Server) AccessLogMiddleware() func(http.Handler) http.Handler {
	return hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.RecordRequest(r.Method, route, status, duration)

		ev := hlog.FromRequest(r).Info()
		if status >= http.StatusInternalServerError {
			ev = hlog.FromRequest(r).Error()
		}
		ev.Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})
}

func (s *Server) RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				hlog.FromRequest(r).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("handler panic")
				writeMessage(w, http.StatusInternalServerError, msgServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// CorsMiddleware allows the configured browser origins to call the API with a bearer token.
func (s *Server) CorsMiddleware() func(http.Handler) http.Handler {
	allowedOrigins := s.config.GetAllowedOrigins()
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins.List(),
		AllowedMethods:   s.config.GetAllowedMethods(),
		AllowedHeaders:   s.config.GetAllowedHeaders(),
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: !allowedOrigins.IsAllowedOrigin("*"),
		MaxAge:           86400,
	})
}

func (s *Server) SecurityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func LimitBodyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next(w, r)
	}
}
