// ABOUTME: End-to-end HTTP tests for the tenantdb API
// ABOUTME: Real tenant databases in a temp dir behind httptest

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tenantdb/internal/config"
	"github.com/2389/tenantdb/internal/tenant"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	cfg := &config.Config{
		Server:   config.ServerConfig{HTTPAddr: "127.0.0.1:0"},
		Database: config.DatabaseConfig{Dir: t.TempDir()},
		Auth:     config.AuthConfig{JWTSecret: "server-test-secret-with-32-bytes"},
	}
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	s, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.registry.Close()
	})
	return s, ts
}

type client struct {
	t     *testing.T
	base  string
	token string
}

func (c *client) do(method, path string, body any, headers ...string) (*http.Response, []byte) {
	c.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(c.t, err)
	return resp, buf.Bytes()
}

// register signs up and logs in, returning a client carrying the token.
func register(t *testing.T, ts *httptest.Server, email string) *client {
	t.Helper()
	c := &client{t: t, base: ts.URL}
	resp, body := c.do(http.MethodPost, "/api/v1/user/signup", SignUpRequest{
		Email: email, Password: "hunter22", Confirmation: "hunter22",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = c.do(http.MethodPost, "/api/v1/login", LoginRequest{Email: email, Password: "hunter22"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.True(t, strings.HasPrefix(string(body), "Bearer "))
	assert.Equal(t, string(body), resp.Header.Get("Authorization"))
	c.token = string(body)
	return c
}

func listMovies(t *testing.T, c *client, headers ...string) []MovieResponse {
	t.Helper()
	resp, body := c.do(http.MethodGet, "/api/v1/movie", nil, headers...)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var movies []MovieResponse
	require.NoError(t, json.Unmarshal(body, &movies))
	return movies
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	c := &client{t: t, base: ts.URL}

	resp, body := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, body = c.do(http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ready")
}

func TestSignUpAndLogin(t *testing.T) {
	_, ts := newTestServer(t)
	register(t, ts, "alice@example.com")
	c := &client{t: t, base: ts.URL}

	t.Run("duplicate", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/v1/user/signup", SignUpRequest{
			Email: "alice@example.com", Password: "x1234567", Confirmation: "x1234567",
		})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
	t.Run("invalid email", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/v1/user/signup", SignUpRequest{
			Email: "bob", Password: "x1234567", Confirmation: "x1234567",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
	t.Run("wrong password", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/v1/login", LoginRequest{Email: "alice@example.com", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("malformed body", func(t *testing.T) {
		resp, _ := c.do(http.MethodPost, "/api/v1/login", map[string]int{"surprise": 1})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestSignUpCORS(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/user/signup", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMovies_RequireAuth(t *testing.T) {
	_, ts := newTestServer(t)
	c := &client{t: t, base: ts.URL}

	resp, _ := c.do(http.MethodGet, "/api/v1/movie", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMovies_CRUD(t *testing.T) {
	_, ts := newTestServer(t)
	alice := register(t, ts, "alice@example.com")

	assert.Len(t, listMovies(t, alice), 3, "new tenants are seeded")

	resp, body := alice.do(http.MethodPost, "/api/v1/movie", MovieRequest{
		Title: "Alien", Runtime: 117, ReleaseDate: "1979-05-25",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var created MovieResponse
	require.NoError(t, json.Unmarshal(body, &created))
	assert.Equal(t, "Alien", created.Title)

	resp, body = alice.do(http.MethodGet, fmt.Sprintf("/api/v1/movie/%d", created.ID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got MovieResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, created, got)

	resp, _ = alice.do(http.MethodDelete, fmt.Sprintf("/api/v1/movie/%d", created.ID), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = alice.do(http.MethodGet, fmt.Sprintf("/api/v1/movie/%d", created.ID), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = alice.do(http.MethodGet, "/api/v1/movie/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = alice.do(http.MethodPost, "/api/v1/movie", MovieRequest{Title: "x", Runtime: 1, ReleaseDate: "yesterday"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = alice.do(http.MethodGet, "/api/v1/movie?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMovies_IsolatedPerAccount(t *testing.T) {
	s, ts := newTestServer(t)
	alice := register(t, ts, "alice@example.com")
	bob := register(t, ts, "bob@example.com")

	resp, _ := alice.do(http.MethodPost, "/api/v1/movie", MovieRequest{Title: "Alien", Runtime: 117, ReleaseDate: "1979-05-25"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Len(t, listMovies(t, alice), 4)
	assert.Len(t, listMovies(t, bob), 3)

	// The datasource header routes to the default tenant.
	assert.Len(t, listMovies(t, alice, "X-Datasource", "default"), 3)

	assert.Contains(t, s.registry.Known(), tenant.Derive("alice@example.com"))
	assert.Contains(t, s.registry.Known(), tenant.Derive("bob@example.com"))
}

func TestChangeEmail(t *testing.T) {
	s, ts := newTestServer(t)
	alice := register(t, ts, "alice@example.com")

	resp, _ := alice.do(http.MethodPost, "/api/v1/movie", MovieRequest{Title: "Alien", Runtime: 117, ReleaseDate: "1979-05-25"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := alice.do(http.MethodPatch, "/api/v1/user/email", ChangeEmailRequest{Email: "alice@new.example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var change struct {
		Email string `json:"email"`
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &change))
	assert.Equal(t, "alice@new.example.com", change.Email)

	// The old token names an account that no longer exists.
	resp, body = alice.do(http.MethodGet, "/api/v1/movie", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "token is no longer valid")

	renamed := &client{t: t, base: ts.URL, token: "Bearer " + change.Token}
	titles := []string{}
	for _, m := range listMovies(t, renamed) {
		titles = append(titles, m.Title)
	}
	assert.Contains(t, titles, "Alien")

	assert.NotContains(t, s.registry.Known(), tenant.Derive("alice@example.com"))
}

func TestChangeEmail_Conflict(t *testing.T) {
	_, ts := newTestServer(t)
	alice := register(t, ts, "alice@example.com")
	register(t, ts, "bob@example.com")

	resp, _ := alice.do(http.MethodPatch, "/api/v1/user/email", ChangeEmailRequest{Email: "bob@example.com"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestNew_LoadsExistingTenants(t *testing.T) {
	s, ts := newTestServer(t)
	register(t, ts, "alice@example.com")
	bob := register(t, ts, "bob@example.com")
	listMovies(t, bob)
	ts.Close()
	require.NoError(t, s.registry.Close())

	again, err := New(context.Background(), s.config, nil)
	require.NoError(t, err)
	t.Cleanup(func() { again.registry.Close() })

	assert.Contains(t, again.registry.Known(), tenant.Derive("bob@example.com"))
	assert.Contains(t, again.registry.Known(), tenant.DefaultID)
}

func TestLoadScripts_Default(t *testing.T) {
	scripts, err := LoadScripts(nil)
	require.NoError(t, err)
	assert.Len(t, scripts, 2)
}
