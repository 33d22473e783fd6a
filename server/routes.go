package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

const (
	routeHealth    = "/health"
	routeLogin     = "/auth/login"
	routeMFAVerify = "/auth/mfa/verify"
	routeRegister  = "/auth/register"
	routeRefresh   = "/auth/refresh"
	routeMe        = "/auth/me"
	routeForgot    = "/auth/password/forgot"
	routeReset     = "/auth/password/reset"
	routeLogout    = "/auth/logout"
	routeSnapshot  = "/app/dashboard/snapshot"
)

func (s *Server) initRoutes() {
	s.router.Use(s.requestLogMiddleware)

	s.router.HandleFunc(routeHealth, s.HealthHandler()).Methods(http.MethodGet, http.MethodHead)

	s.router.HandleFunc(routeLogin, s.LoginHandler()).Methods(http.MethodPost)
	s.router.HandleFunc(routeMFAVerify, s.VerifyMFAHandler()).Methods(http.MethodPost)
	s.router.HandleFunc(routeRegister, s.RegisterHandler()).Methods(http.MethodPost)
	s.router.HandleFunc(routeRefresh, s.RefreshHandler()).Methods(http.MethodPost)
	s.router.HandleFunc(routeForgot, s.ForgotPasswordHandler()).Methods(http.MethodPost)
	s.router.HandleFunc(routeReset, s.ResetPasswordHandler()).Methods(http.MethodPost)
	s.router.HandleFunc(routeLogout, s.LogoutHandler()).Methods(http.MethodPost)

	authed := s.router.NewRoute().Subrouter()
	authed.Use(s.bearerAuthMiddleware)
	authed.HandleFunc(routeMe, s.MeHandler()).Methods(http.MethodGet)
	authed.HandleFunc(routeSnapshot, s.SnapshotHandler()).Methods(http.MethodGet)
}

func (s *Server) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.env == "DEV" {
			log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		}
		next.ServeHTTP(w, r)
	})
}
