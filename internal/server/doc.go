// Package server exposes tenantdb over HTTP.
//
// Routes:
//
//	POST   /api/v1/login          credentials -> "Bearer <jwt>"
//	POST   /api/v1/user/signup    create an account (CORS open)
//	PATCH  /api/v1/user/email     move the caller's account and data
//	GET    /api/v1/movie          list movies in the caller's tenant
//	POST   /api/v1/movie          add a movie
//	GET    /api/v1/movie/{id}     fetch one movie
//	DELETE /api/v1/movie/{id}     delete one movie
//	GET    /health                liveness
//	GET    /health/ready          default tenant reachable
//
// A tenant that is being renamed answers 503 with Retry-After.
package server
