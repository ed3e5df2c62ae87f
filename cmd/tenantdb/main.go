// ABOUTME: Entry point for tenantdb, the per-account SQLite routing server
// ABOUTME: Subcommands for serving, config setup, health and offline tenant inspection

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/tenantdb/internal/config"
	"github.com/2389/tenantdb/internal/server"
	"github.com/2389/tenantdb/internal/telemetry"
	"github.com/2389/tenantdb/internal/tenant"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _                        _      _ _
 | |_ ___ _ __   __ _ _ __ | |_ __| | |__
 | __/ _ \ '_ \ / _' | '_ \| __/ _' | '_ \
 | ||  __/ | | | (_| | | | | || (_| | |_) |
  \__\___|_| |_|\__,_|_| |_|\__\__,_|_.__/
`

// getDataPath returns the default tenant data directory.
// Priority: XDG_DATA_HOME/tenantdb > ~/.local/share/tenantdb
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "tenantdb")
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: tenantdb <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve              Start the server")
	fmt.Fprintln(w, "  init               Create a new config file interactively")
	fmt.Fprintln(w, "  health             Check server health")
	fmt.Fprintln(w, "  tenants            List tenant databases on disk")
	fmt.Fprintln(w, "  derive <identity>  Print the storage identifier for an identity")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stdout)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit(os.Stdin, os.Stdout)
	case "health":
		err = runHealth(ctx)
	case "tenants":
		err = runTenants(os.Stdout)
	case "derive":
		err = runDerive(os.Stdout, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Data:      %s (%s)\n", cfg.Database.Dir, cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}
	if cfg.Telemetry.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tracing:   %s\n", cfg.Telemetry.Endpoint)
	}
	fmt.Println()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	logger.Info("starting tenantdb",
		"config", configPath,
		"data_dir", cfg.Database.Dir,
		"http_addr", cfg.Server.HTTPAddr,
	)

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, body)
	}

	fmt.Println(string(body))
	return nil
}

// runTenants lists the tenant identifiers found in the data directory
// without starting the server.
func runTenants(w io.Writer) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	return listTenants(w, cfg.Database.Dir)
}

func listTenants(w io.Writer, dir string) error {
	ids, err := tenant.Discover(dir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == tenant.DefaultID {
			fmt.Fprintf(w, "%s %s\n", id, color.HiBlackString("(default)"))
			continue
		}
		fmt.Fprintln(w, id)
	}
	fmt.Fprintf(w, "%d tenant(s) in %s\n", len(ids), dir)
	return nil
}

// runDerive prints the storage identifier of each identity argument.
func runDerive(w io.Writer, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("derive requires at least one identity")
	}
	for _, identity := range args {
		fmt.Fprintf(w, "%s  %s\n", tenant.Derive(identity), identity)
	}
	return nil
}
