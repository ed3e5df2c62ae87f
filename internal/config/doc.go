// Package config handles configuration loading for tenantdb.
//
// # Configuration File
//
// The file location is, in order:
//
//  1. Path from the TENANTDB_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/tenantdb/config.yaml
//  3. ~/.config/tenantdb/config.yaml
//
// Files ending in .toml are read as TOML; everything else as YAML. Both use
// the same keys.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TENANTDB_JWT_SECRET}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  expiration: "24h"
//	server:
//	  shutdown_timeout: "10s"
//
// # Configuration Sections
//
//	server:
//	  http_addr: "127.0.0.1:8080"
//	tailscale:
//	  enabled: false
//	  hostname: "tenantdb"
//	database:
//	  dir: "~/.local/share/tenantdb"
//	  driver: "sqlite"        # or "sqlite3" for the cgo driver
//	  max_open_conns: 4
//	  scripts: []             # empty: built-in schema and seed data
//	auth:
//	  jwt_secret: "${TENANTDB_JWT_SECRET}"
//	  header: "Authorization"
//	  prefix: "Bearer "
//	  type: "JWT"
//	  issuer: "tenantdb"
//	  audience: ""
//	  expiration: "24h"
//	  login_path: "/api/v1/login"
//	  whitelist: ["/api/v1/user/signup"]
//	logging:
//	  level: "info"           # debug, info, warn, error
//	  format: "text"          # text or json
//	telemetry:
//	  enabled: false
//	  endpoint: "localhost:4317"
//	  insecure: true
//	  service_name: "tenantdb"
//
// # Validation
//
// Load applies defaults and then Validate, which requires server.http_addr
// (unless Tailscale is enabled), database.dir, a known database.driver and a
// jwt_secret of at least 32 characters.
package config
