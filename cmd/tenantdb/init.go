// ABOUTME: Interactive config file creation for tenantdb
// ABOUTME: Prompts for addresses and storage, generates a random JWT secret

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/tenantdb/internal/config"
)

// initAnswers holds what runInit asked for.
type initAnswers struct {
	HTTPAddr   string
	DataDir    string
	Driver     string
	Tailscale  bool
	TSHostname string
	TSAuthKey  string
	LogLevel   string
	LogFormat  string
	JWTSecret  string
}

// generateSecret returns a random base64 secret of 32 bytes.
func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating JWT secret: %w", err)
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// renderConfig renders the YAML config file for a.
func renderConfig(a initAnswers) string {
	var cfg strings.Builder
	cfg.WriteString("# tenantdb configuration\n")
	cfg.WriteString("# Generated by tenantdb init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", a.HTTPAddr))
	cfg.WriteString("  shutdown_timeout: \"10s\"\n\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  dir: %q\n", a.DataDir))
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", a.Driver))
	cfg.WriteString("  max_open_conns: 4\n\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", a.Tailscale))
	if a.Tailscale {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", a.TSHostname))
		if a.TSAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", a.TSAuthKey))
		}
	}
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", a.JWTSecret))
	cfg.WriteString("  issuer: \"tenantdb\"\n")
	cfg.WriteString("  expiration: \"24h\"\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.LogLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n\n", a.LogFormat))

	cfg.WriteString("telemetry:\n")
	cfg.WriteString("  enabled: false\n")
	cfg.WriteString("  endpoint: \"localhost:4317\"\n")
	cfg.WriteString("  insecure: true\n")
	return cfg.String()
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func runInit(in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "tenantdb configuration setup")
	fmt.Fprintln(out, "============================")
	fmt.Fprintln(out)

	outputFile := prompt(reader, out, "Config file path", config.DefaultPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !isYes(prompt(reader, out, "File exists. Overwrite?", "no")) {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	var a initAnswers
	fmt.Fprintln(out, "\n--- Server Configuration ---")
	a.HTTPAddr = prompt(reader, out, "HTTP address", "localhost:8080")

	fmt.Fprintln(out, "\n--- Storage Configuration ---")
	a.DataDir = prompt(reader, out, "Tenant data directory", getDataPath())
	a.Driver = prompt(reader, out, "SQLite driver (sqlite/sqlite3)", config.DriverModernc)

	fmt.Fprintln(out, "\n--- Tailscale Configuration ---")
	a.Tailscale = isYes(prompt(reader, out, "Enable Tailscale?", "no"))
	if a.Tailscale {
		a.TSHostname = prompt(reader, out, "Tailscale hostname", "tenantdb")
		a.TSAuthKey = prompt(reader, out, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
	}

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	a.LogLevel = prompt(reader, out, "Log level (debug/info/warn/error)", "info")
	a.LogFormat = prompt(reader, out, "Log format (text/json)", "text")

	secret, err := generateSecret()
	if err != nil {
		return err
	}
	a.JWTSecret = secret

	if err := os.MkdirAll(filepath.Dir(outputFile), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	// The file holds the JWT secret.
	if err := os.WriteFile(outputFile, []byte(renderConfig(a)), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	if err := os.MkdirAll(a.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	fmt.Fprintln(out)
	green.Fprintf(out, "  ✓ Config written to %s\n", outputFile)
	green.Fprintf(out, "  ✓ Data directory: %s\n", a.DataDir)
	fmt.Fprintln(out, "\nTo start the server:")
	fmt.Fprintln(out, "  tenantdb serve")
	return nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
