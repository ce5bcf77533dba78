package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds listener and transport settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	// Engine selects the transport adapter: "nethttp" (default) or
	// "fasthttp".
	Engine      string    `yaml:"engine"`
	MaxBodySize SizeBytes `yaml:"max_body_size"`
	LogRequests bool      `yaml:"log_requests"`
	// Compress enables response compression at the transport layer.
	Compress bool `yaml:"compress"`
}

// SecurityConfig groups the middleware policy blocks.
type SecurityConfig struct {
	Proxy         ProxyConfig         `yaml:"proxy"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	CORS          CORSConfig          `yaml:"cors"`
	CSRF          CSRFConfig          `yaml:"csrf"`
	Headers       HeadersConfig       `yaml:"headers"`
	TrustedHosts  []string            `yaml:"trusted_hosts"`
	HTTPSRedirect HTTPSRedirectConfig `yaml:"https_redirect"`
}

// ProxyConfig configures the trust resolver.
type ProxyConfig struct {
	TrustedProxies  []string `yaml:"trusted_proxies"`
	TrustedHopCount int      `yaml:"trusted_hop_count"`
}

// RateLimitConfig configures both the per-key window and the global
// throttle; zero GlobalRPS disables the throttle.
type RateLimitConfig struct {
	Enabled     bool     `yaml:"enabled"`
	Requests    int      `yaml:"requests"`
	Window      Duration `yaml:"window"`
	MaxEntries  int      `yaml:"max_entries"`
	JanitorCron string   `yaml:"janitor_cron"`
	GlobalRPS   float64  `yaml:"global_rps"`
	GlobalBurst int      `yaml:"global_burst"`
}

// CORSConfig mirrors policy.CORSConfig in yaml form.
type CORSConfig struct {
	Enabled          bool     `yaml:"enabled"`
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowedMethods   []string `yaml:"allowed_methods"`
	AllowedHeaders   []string `yaml:"allowed_headers"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAgeSeconds    int      `yaml:"max_age_seconds"`
}

// CSRFConfig mirrors policy.CSRFConfig in yaml form.
type CSRFConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Secret        string   `yaml:"secret"`
	CookieName    string   `yaml:"cookie_name"`
	HeaderName    string   `yaml:"header_name"`
	ExemptMethods []string `yaml:"exempt_methods"`
	Secure        bool     `yaml:"secure"`
	SameSite      string   `yaml:"same_site"`
}

// HeadersConfig mirrors policy.SecurityHeadersConfig in yaml form.
type HeadersConfig struct {
	Enabled               bool                `yaml:"enabled"`
	HSTSSeconds           int                 `yaml:"hsts_seconds"`
	HSTSIncludeSubdomains bool                `yaml:"hsts_include_subdomains"`
	HSTSPreload           bool                `yaml:"hsts_preload"`
	ContentSecurityPolicy string              `yaml:"content_security_policy"`
	PermissionsPolicy     map[string][]string `yaml:"permissions_policy"`
	FrameOptions          string              `yaml:"frame_options"`
	ReferrerPolicy        string              `yaml:"referrer_policy"`
}

// HTTPSRedirectConfig mirrors policy.HTTPSRedirectConfig in yaml form.
type HTTPSRedirectConfig struct {
	Enabled      bool     `yaml:"enabled"`
	StatusCode   int      `yaml:"status_code"`
	AllowedHosts []string `yaml:"allowed_hosts"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	host := c.Server.Address
	port := c.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// SizeBytes is a byte count unmarshaled from human-friendly strings like
// "10MiB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration wraps time.Duration, parsing strings like "100ms" or plain
// numbers interpreted as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = 0
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
