// Package auth authenticates API requests for tenantdb.
//
// # Tokens
//
// Tokenizer issues HS256 JWTs after a successful login:
//
//	tok, _ := auth.NewTokenizer(auth.TokenConfig{Secret: secret, Issuer: "tenantdb"})
//	s, _ := tok.Generate("alice@example.com", auth.RoleUser)
//
// Tokens carry the account email as "sub", the roles as "rol", and the
// configured issuer, audience and "typ" header. Verify checks all of them.
//
// # Passwords
//
// HashPassword and CheckPassword wrap bcrypt.
//
// # Middleware
//
// HTTPAuthMiddleware verifies the bearer token, confirms the subject is still
// a registered account, and scopes the request context with the tenant
// package so that data access lands in the caller's own database. Handlers
// read the identity back with FromContext.
package auth
