package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ediflysi/jetdesk/internal/auth"
	"github.com/ediflysi/jetdesk/internal/authz"
	"github.com/ediflysi/jetdesk/internal/captcha"
	jwtx "github.com/ediflysi/jetdesk/internal/jwt"
	mw "github.com/ediflysi/jetdesk/internal/http/middlewares"
	"github.com/ediflysi/jetdesk/internal/observability/logger"
	"github.com/ediflysi/jetdesk/internal/rate"
)

// Deps contiene los colaboradores del servidor HTTP.
type Deps struct {
	Auth    *auth.Service
	Captcha *captcha.Store
	Issuer  *jwtx.Issuer

	// TokenHeader es el header por el que viaja el token de sesión.
	TokenHeader string
	// CORSAllowedOrigins habilita CORS para los orígenes listados; vacío lo
	// deshabilita.
	CORSAllowedOrigins []string
	// Prod activa el filtro de mensajes seguros en los errores.
	Prod bool

	// Limiter es opcional; nil desactiva el rate limit.
	Limiter rate.Limiter

	// HealthCheck es opcional; se invoca en /healthz (ping de cache/db).
	HealthCheck func(ctx context.Context) error

	// Metrics es el handler de /metrics (nil lo deshabilita).
	Metrics http.Handler
}

// Server arma el router y administra el ciclo de vida del http.Server.
type Server struct {
	deps Deps
	srv  *http.Server
}

func NewServer(addr string, deps Deps) *Server {
	if deps.TokenHeader == "" {
		deps.TokenHeader = "jetdesk-token"
	}
	s := &Server{deps: deps}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router construye el árbol de rutas con los middlewares globales.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(mw.WithRequestID(), mw.WithLogging(), mw.WithRecover())
	r.Use(WithMetrics)
	if len(s.deps.CORSAllowedOrigins) > 0 {
		r.Use(mw.WithCORS(s.deps.CORSAllowedOrigins, s.deps.TokenHeader))
	}

	requireAuth := mw.RequireAuth(s.deps.Issuer, s.deps.TokenHeader)

	var limited mw.Middleware
	if s.deps.Limiter != nil {
		limited = mw.WithRateLimit(s.deps.Limiter)
	} else {
		limited = func(h http.Handler) http.Handler { return h }
	}

	r.Route("/auth", func(r chi.Router) {
		r.Get("/captcha/{uid}", s.handleCaptcha)
		r.Method(http.MethodPost, "/login", limited(http.HandlerFunc(s.handleLogin)))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/refresh-token", s.handleRefreshToken)
			r.Get("/me", s.handleMe)
			r.Get("/logout", s.handleLogout)
			r.Post("/profile", s.handleProfile)
			r.Method(http.MethodPost, "/change-password", limited(http.HandlerFunc(s.handleChangePassword)))
			r.Post("/setup-2fa", s.handleSetupTwoFactor)
			r.Post("/verify-2fa", s.handleVerifyTwoFactor)
			r.Post("/disable-2fa", s.handleDisableTwoFactor)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequirePermission(authz.PermUserManagement))
				r.Post("/users", s.handleCreateUser)
			})
		})
	})

	r.Get("/healthz", s.handleHealthz)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	return r
}

// Start bloquea sirviendo hasta que el listener se cierre.
func (s *Server) Start() error {
	logger.L().Info("http server listening", logger.String("addr", s.srv.Addr))
	return s.srv.ListenAndServe()
}

// Shutdown apaga el server drenando requests en vuelo.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
