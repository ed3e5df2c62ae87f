// ABOUTME: Configuration loading and parsing for tenantdb
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Supported values for database.driver.
const (
	DriverModernc = "sqlite"
	DriverCGO     = "sqlite3"
)

// Config represents the complete tenantdb configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// DatabaseConfig holds tenant storage configuration
type DatabaseConfig struct {
	Dir          string   `yaml:"dir" toml:"dir"`                       // directory of tenant database files
	Driver       string   `yaml:"driver" toml:"driver"`                 // sqlite (pure Go) or sqlite3 (cgo)
	MaxOpenConns int      `yaml:"max_open_conns" toml:"max_open_conns"` // per tenant
	Scripts      []string `yaml:"scripts" toml:"scripts"`               // bootstrap scripts; empty uses the embedded ones
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret" toml:"jwt_secret"`
	Header     string        `yaml:"header" toml:"header"`
	Prefix     string        `yaml:"prefix" toml:"prefix"`
	Type       string        `yaml:"type" toml:"type"`
	Issuer     string        `yaml:"issuer" toml:"issuer"`
	Audience   string        `yaml:"audience" toml:"audience"`
	LoginPath  string        `yaml:"login_path" toml:"login_path"`
	Whitelist  []string      `yaml:"whitelist" toml:"whitelist"`
	Expiration time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	ExpirationRaw string `yaml:"expiration" toml:"expiration"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TelemetryConfig holds OpenTelemetry trace export configuration
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Endpoint    string `yaml:"endpoint" toml:"endpoint"` // OTLP gRPC collector host:port
	Insecure    bool   `yaml:"insecure" toml:"insecure"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultPath returns the config file location: $TENANTDB_CONFIG if set,
// otherwise tenantdb/config.yaml under the user config directory.
func DefaultPath() string {
	if p := os.Getenv("TENANTDB_CONFIG"); p != "" {
		return p
	}
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "tenantdb", "config.yaml")
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverModernc
	}
	if c.Auth.Header == "" {
		c.Auth.Header = "Authorization"
	}
	if c.Auth.Prefix == "" {
		c.Auth.Prefix = "Bearer "
	}
	if c.Auth.Type == "" {
		c.Auth.Type = "JWT"
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = "tenantdb"
	}
	if c.Auth.LoginPath == "" {
		c.Auth.LoginPath = "/api/v1/login"
	}
	if c.Auth.Expiration == 0 {
		c.Auth.Expiration = 24 * time.Hour
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "tenantdb"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return errors.New("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Dir == "" {
		return errors.New("database.dir is required")
	}
	switch c.Database.Driver {
	case DriverModernc, DriverCGO:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverModernc, DriverCGO, c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 0 {
		return errors.New("database.max_open_conns must not be negative")
	}

	if len(c.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters")
	}
	if !strings.HasPrefix(c.Auth.LoginPath, "/") {
		return fmt.Errorf("auth.login_path must start with /, got %q", c.Auth.LoginPath)
	}

	if c.Telemetry.Enabled && c.Telemetry.Endpoint == "" {
		return errors.New("telemetry.endpoint is required when telemetry is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	if cfg.Auth.ExpirationRaw != "" {
		cfg.Auth.Expiration, err = time.ParseDuration(cfg.Auth.ExpirationRaw)
		if err != nil {
			return fmt.Errorf("parsing expiration %q: %w", cfg.Auth.ExpirationRaw, err)
		}
		if cfg.Auth.Expiration <= 0 {
			return fmt.Errorf("expiration must be positive, got %q", cfg.Auth.ExpirationRaw)
		}
	}

	return nil
}
