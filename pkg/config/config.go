// Package config loads the server configuration from a yaml file with
// environment variable overrides. Precedence: flags > env > file > defaults.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default returns a config populated with defaults suitable for
// local development.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Address = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Server.Engine = "nethttp"
	cfg.Server.LogRequests = true
	cfg.Security.RateLimit.Requests = 100
	cfg.Security.RateLimit.MaxEntries = 10000
	cfg.Security.Headers.Enabled = true
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads the config file at path (optional), then applies
// environment overrides. A missing file is only an error when the path
// was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if path == "" {
		path = os.Getenv("GATEKIT_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = "gatekit.yaml"
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// fall through to env and defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GATEKIT_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("GATEKIT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("GATEKIT_ENGINE"); v != "" {
		cfg.Server.Engine = v
	}
	if v := os.Getenv("GATEKIT_TRUSTED_PROXIES"); v != "" {
		cfg.Security.Proxy.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("GATEKIT_TRUSTED_HOSTS"); v != "" {
		cfg.Security.TrustedHosts = splitList(v)
	}
	if v := os.Getenv("GATEKIT_CSRF_SECRET"); v != "" {
		cfg.Security.CSRF.Secret = v
	}
	if v := os.Getenv("GATEKIT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// SplitAddr parses a host:port listen address into its parts.
func SplitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validate(cfg *Config) error {
	switch cfg.Server.Engine {
	case "", "nethttp", "fasthttp":
	default:
		return fmt.Errorf("unknown engine %q (want nethttp or fasthttp)", cfg.Server.Engine)
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", cfg.Server.Port)
	}
	if cfg.Security.CSRF.Enabled && cfg.Security.CSRF.Secret == "" {
		return fmt.Errorf("csrf enabled but no secret configured (set security.csrf.secret or GATEKIT_CSRF_SECRET)")
	}
	return nil
}
