// ABOUTME: Wires tenant storage, accounts and auth into the HTTP server
// ABOUTME: Owns listener setup (TCP or tailnet), serving and graceful shutdown

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/tenantdb/internal/account"
	"github.com/2389/tenantdb/internal/auth"
	"github.com/2389/tenantdb/internal/config"
	"github.com/2389/tenantdb/internal/store"
	"github.com/2389/tenantdb/internal/tenant"
)

// Server is the tenantdb HTTP service.
type Server struct {
	config   *config.Config
	logger   *slog.Logger
	registry *tenant.Registry
	store    store.Store
	accounts *account.Service
	tokens   *auth.Tokenizer

	handler     http.Handler
	httpServer  *http.Server
	tsnetServer *tsnet.Server
}

// LoadScripts returns the configured bootstrap scripts, or the embedded
// ones when none are configured.
func LoadScripts(paths []string) ([]tenant.Script, error) {
	if len(paths) == 0 {
		return store.BootstrapScripts()
	}
	return tenant.LoadScripts(paths)
}

// New builds a Server from cfg. It registers every tenant already on disk
// and makes sure the default tenant exists before returning.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scripts, err := LoadScripts(cfg.Database.Scripts)
	if err != nil {
		return nil, fmt.Errorf("loading bootstrap scripts: %w", err)
	}

	prov, err := tenant.NewProvisioner(tenant.ProvisionerConfig{
		Dir:          cfg.Database.Dir,
		Driver:       cfg.Database.Driver,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Scripts:      scripts,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	registry := tenant.NewRegistry(prov, logger)
	if err := registry.Load(ctx); err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("loading tenants: %w", err)
	}

	tokens, err := auth.NewTokenizer(auth.TokenConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		Type:       cfg.Auth.Type,
		Expiration: cfg.Auth.Expiration,
	})
	if err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("creating tokenizer: %w", err)
	}

	st := store.NewSQLiteStore(tenant.NewRouter(registry))
	s := &Server{
		config:   cfg,
		logger:   logger.With("component", "server"),
		registry: registry,
		store:    st,
		tokens:   tokens,
		accounts: account.NewService(account.Config{
			Users:    st,
			Renamer:  tenant.NewRenamer(registry, logger),
			Registry: registry,
			Tokens:   tokens,
			Logger:   logger,
		}),
	}
	s.handler = s.routes()
	s.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the tenant registry.
func (s *Server) Registry() *tenant.Registry {
	return s.registry
}

// setupListener creates the HTTP listener based on configuration (Tailscale or TCP).
func (s *Server) setupListener(ctx context.Context) (net.Listener, error) {
	if s.config.Tailscale.Enabled {
		if s.config.Server.HTTPAddr != "" {
			s.logger.Warn("server.http_addr is ignored when tailscale is enabled", "http_addr", s.config.Server.HTTPAddr)
		}
		return s.setupTailscaleListener(ctx)
	}

	ln, err := net.Listen("tcp", s.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// Run serves HTTP and blocks until ctx is canceled or the server fails.
// Returns nil on graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		s.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		s.logger.Error("server error", "error", serverErr)
	}

	// The original context is already canceled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	shutdownErr := s.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops accepting requests, waits for in-flight ones and closes
// every tenant pool.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", s.httpServer.Shutdown(ctx))
	if s.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", s.tsnetServer.Close())
	}
	errs = appendCloseError(errs, "tenant pools", s.registry.Close())
	return errors.Join(errs...)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "tenantdb", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener joins the tailnet and listens on port 80 of the node.
func (s *Server) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	if status.Self != nil {
		s.logger.Info("tailscale node up", "dns_name", status.Self.DNSName, "ips", status.TailscaleIPs)
	}

	ln, err := s.tsnetServer.Listen("tcp", ":80")
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
	}
	return ln, nil
}
