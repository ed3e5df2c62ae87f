// ABOUTME: HTTP routing for the tenantdb API
// ABOUTME: chi router with auth, tenant scoping, CORS on signup and tracing

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/2389/tenantdb/internal/auth"
)

// API paths.
const (
	signupPath      = "/api/v1/user/signup"
	emailPath       = "/api/v1/user/email"
	userPrefix      = "/api/v1/user/"
	moviesPath      = "/api/v1/movie"
	healthPath      = "/health"
	healthReadyPath = "/health/ready"
)

// routes builds the HTTP handler.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get(healthPath, s.handleHealth)
	r.Get(healthReadyPath, s.handleReady)

	whitelist := append([]string{s.config.Auth.LoginPath, signupPath}, s.config.Auth.Whitelist...)
	authn := auth.HTTPAuthMiddleware(auth.MiddlewareConfig{
		Header:          s.config.Auth.Header,
		Prefix:          s.config.Auth.Prefix,
		Whitelist:       whitelist,
		DefaultPrefixes: []string{userPrefix},
		Logger:          s.logger,
	}, s.tokens, s.store)

	signupCORS := cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Post(s.config.Auth.LoginPath, s.handleLogin)
		r.With(signupCORS).Post(signupPath, s.handleSignUp)
		r.With(signupCORS).Options(signupPath, func(w http.ResponseWriter, r *http.Request) {})
		r.Patch(emailPath, s.handleChangeEmail)

		r.Route(moviesPath, func(r chi.Router) {
			r.Use(auth.RequireRole(auth.RoleUser))
			r.Get("/", s.handleListMovies)
			r.Post("/", s.handleCreateMovie)
			r.Get("/{id}", s.handleGetMovie)
			r.Delete("/{id}", s.handleDeleteMovie)
		})
	})

	return otelhttp.NewHandler(r, "tenantdb",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// logRequests logs each request at debug level with its status and duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
