// ABOUTME: HTTP middleware for JWT authentication and tenant scoping
// ABOUTME: Verifies the bearer token and routes the request to its tenant

package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/2389/tenantdb/internal/tenant"
)

// DatasourceHeader lets a request ask for the default tenant explicitly.
const DatasourceHeader = "X-Datasource"

// UserChecker reports whether an account still exists. It is called with a
// context scoped to the default tenant.
type UserChecker interface {
	UserExists(ctx context.Context, email string) (bool, error)
}

// MiddlewareConfig configures the HTTP auth middleware.
type MiddlewareConfig struct {
	Header    string   // defaults to Authorization
	Prefix    string   // defaults to "Bearer "
	Whitelist []string // exact paths, or prefixes ending in "/", served without a token
	// DefaultPrefixes are path prefixes whose handlers work on the default tenant.
	DefaultPrefixes []string
	Logger          *slog.Logger
}

// extractBearerToken extracts a token carrying prefix from a header value.
// Returns the token and an error message (empty if successful).
func extractBearerToken(header, prefix string) (string, string) {
	if header == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(header, prefix) {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// matchPath reports whether path equals one of patterns, or falls under a
// pattern that ends in "/".
func matchPath(path string, patterns []string) bool {
	for _, p := range patterns {
		if path == p || (strings.HasSuffix(p, "/") && strings.HasPrefix(path, p)) {
			return true
		}
	}
	return false
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}` + "\n"))
}

// HTTPAuthMiddleware creates an HTTP middleware that validates JWT tokens and
// scopes the request context to a tenant.
//
// Whitelisted paths run unauthenticated on the default tenant. Otherwise the
// token subject must still be a registered account; the request is then
// routed to the default tenant for DefaultPrefixes paths or when the
// X-Datasource header says "default", and to the subject's tenant otherwise.
func HTTPAuthMiddleware(cfg MiddlewareConfig, verifier TokenVerifier, users UserChecker) func(http.Handler) http.Handler {
	if cfg.Header == "" {
		cfg.Header = "Authorization"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "Bearer "
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "auth")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if matchPath(r.URL.Path, cfg.Whitelist) {
				next.ServeHTTP(w, r.WithContext(tenant.WithDefault(r.Context())))
				return
			}

			token, errMsg := extractBearerToken(r.Header.Get(cfg.Header), cfg.Prefix)
			if errMsg != "" {
				writeError(w, http.StatusUnauthorized, errMsg)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejected token", "path", r.URL.Path, "error", err)
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			// A token outlives a rename of its subject; only current accounts pass.
			exists, err := users.UserExists(tenant.WithDefault(r.Context()), claims.Subject)
			if err != nil {
				logger.Error("checking token subject", "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if !exists {
				writeError(w, http.StatusUnauthorized, "token is no longer valid")
				return
			}

			ctx := WithAuth(r.Context(), &AuthContext{Subject: claims.Subject, Roles: claims.Roles})
			if matchPath(r.URL.Path, cfg.DefaultPrefixes) || strings.EqualFold(r.Header.Get(DatasourceHeader), "default") {
				ctx = tenant.WithDefault(ctx)
			} else {
				ctx = tenant.WithTenant(ctx, claims.Subject)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole creates an HTTP middleware that requires role.
// Must be used after HTTPAuthMiddleware.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if !authCtx.HasRole(role) {
				writeError(w, http.StatusForbidden, "role "+role+" required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
