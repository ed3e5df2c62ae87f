// ABOUTME: HTTP handlers for login, accounts, movies and health checks
// ABOUTME: Every data handler works on the tenant the auth middleware put in scope

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389/tenantdb/internal/auth"
	"github.com/2389/tenantdb/internal/store"
	"github.com/2389/tenantdb/internal/tenant"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// LoginRequest is the JSON request body for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUpRequest is the JSON request body for POST /api/v1/user/signup.
type SignUpRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Confirmation string `json:"confirmation"`
}

// UserResponse is the JSON response for a created account.
type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// ChangeEmailRequest is the JSON request body for PATCH /api/v1/user/email.
type ChangeEmailRequest struct {
	Email string `json:"email"`
}

// MovieRequest is the JSON request body for POST /api/v1/movie.
type MovieRequest struct {
	Title       string `json:"title"`
	Runtime     int64  `json:"runtime"`
	ReleaseDate string `json:"release_date"` // YYYY-MM-DD
}

// MovieResponse is the JSON representation of a movie.
type MovieResponse struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Runtime     int64  `json:"runtime"`
	ReleaseDate string `json:"release_date"`
}

func toMovieResponse(m *store.Movie) MovieResponse {
	return MovieResponse{
		ID:          m.ID,
		Title:       m.Title,
		Runtime:     m.Runtime,
		ReleaseDate: m.ReleaseDate.Format("2006-01-02"),
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is empty")
		}
		return badRequest("invalid JSON: " + err.Error())
	}
	return nil
}

// writeJSON writes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the default tenant can be resolved.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.registry.Resolve(r.Context(), tenant.DefaultID); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("default tenant unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d tenants)", len(s.registry.Known()))
}

// handleLogin exchanges credentials for a token, returned in the configured
// auth header and as the response body.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, err := s.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	value := s.config.Auth.Prefix + token
	w.Header().Set(s.config.Auth.Header, value)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(value))
}

// handleSignUp handles POST /api/v1/user/signup.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.accounts.SignUp(r.Context(), req.Email, req.Password, req.Confirmation)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

// handleChangeEmail handles PATCH /api/v1/user/email for the caller's account.
func (s *Server) handleChangeEmail(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		s.writeError(w, r, errUnauthenticated)
		return
	}

	var req ChangeEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	change, err := s.accounts.ChangeEmail(r.Context(), authCtx.Subject, req.Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

// handleListMovies handles GET /api/v1/movie.
func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, r, badRequest("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	movies, err := s.store.ListMovies(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]MovieResponse, 0, len(movies))
	for _, m := range movies {
		resp = append(resp, toMovieResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCreateMovie handles POST /api/v1/movie.
func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var req MovieRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Title == "" {
		s.writeError(w, r, badRequest("title is required"))
		return
	}
	if req.Runtime <= 0 {
		s.writeError(w, r, badRequest("runtime must be positive"))
		return
	}
	released, err := time.Parse("2006-01-02", req.ReleaseDate)
	if err != nil {
		s.writeError(w, r, badRequest("release_date must be YYYY-MM-DD"))
		return
	}

	movie := &store.Movie{Title: req.Title, Runtime: req.Runtime, ReleaseDate: released}
	if err := s.store.CreateMovie(r.Context(), movie); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMovieResponse(movie))
}

// movieID parses the {id} URL parameter.
func movieID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, badRequest("movie id must be an integer")
	}
	return id, nil
}

// handleGetMovie handles GET /api/v1/movie/{id}.
func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := movieID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	movie, err := s.store.GetMovie(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovieResponse(movie))
}

// handleDeleteMovie handles DELETE /api/v1/movie/{id}.
func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := movieID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.store.DeleteMovie(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
