package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath     = "config.toml"
	DefaultHTTPAddr       = ":8080"
	DefaultJWTExpiresIn   = "24h"
	DefaultPGHost         = "127.0.0.1"
	DefaultPGPort         = 5432
	DefaultPGUser         = "postgres"
	DefaultPGDatabase     = "chatforge"
	DefaultPGSSLMode      = "disable"
	DefaultMediaRoot      = "data/media"
	DefaultPublicBaseURL  = "http://localhost:8080"
	DefaultMaxUploadBytes = 10 * 1024 * 1024
	DefaultUsageLimit     = 100
	DefaultUsagePeriod    = "720h"
	DefaultUsageSchedule  = "@hourly"
	DefaultUsageRetention = "2160h"
	DefaultVendorTimeout  = 120
	DefaultVendorRetries  = 2
	DefaultMCPTimeout     = 30
	DefaultMaxToolRounds  = 8
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Storage  StorageConfig  `toml:"storage"`
	Usage    UsageConfig    `toml:"usage"`
	Vendors  VendorsConfig  `toml:"vendors"`
	MCP      MCPConfig      `toml:"mcp"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type AdminConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	Email    string `toml:"email"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// ExpiresIn parses JWTExpiresIn, falling back to the default.
func (c AuthConfig) ExpiresIn() (time.Duration, error) {
	raw := c.JWTExpiresIn
	if raw == "" {
		raw = DefaultJWTExpiresIn
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid jwt_expires_in %q: %w", raw, err)
	}
	return d, nil
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN returns a postgres:// connection URL for pgx.
func (c PostgresConfig) DSN() string {
	return c.url("postgres")
}

// MigrateURL returns the URL understood by the golang-migrate pgx/v5 driver.
func (c PostgresConfig) MigrateURL() string {
	return c.url("pgx5")
}

func (c PostgresConfig) url(scheme string) string {
	u := url.URL{
		Scheme: scheme,
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

type StorageConfig struct {
	Root           string `toml:"root"`
	PublicBaseURL  string `toml:"public_base_url"`
	MaxUploadBytes int64  `toml:"max_upload_bytes"`
}

type UsageConfig struct {
	DefaultLimit        int    `toml:"default_limit"`
	Period              string `toml:"period"`
	MaintenanceSchedule string `toml:"maintenance_schedule"`
	EventRetention      string `toml:"event_retention"`
}

// PeriodDuration parses Period; invalid or empty values yield the default.
func (c UsageConfig) PeriodDuration() time.Duration {
	if d, err := time.ParseDuration(c.Period); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(DefaultUsagePeriod)
	return d
}

// Retention parses EventRetention. "0" disables ledger pruning.
func (c UsageConfig) Retention() (time.Duration, error) {
	if c.EventRetention == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.EventRetention)
	if err != nil {
		return 0, fmt.Errorf("invalid event_retention %q: %w", c.EventRetention, err)
	}
	return d, nil
}

type VendorConfig struct {
	APIKey         string            `toml:"api_key"`
	BaseURL        string            `toml:"base_url"`
	TimeoutSeconds int               `toml:"timeout_seconds"`
	MaxRetries     int               `toml:"max_retries"`
	Headers        map[string]string `toml:"headers"`
}

func (c VendorConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type VendorsConfig struct {
	OpenAI     VendorConfig `toml:"openai"`
	Anthropic  VendorConfig `toml:"anthropic"`
	Google     VendorConfig `toml:"google"`
	OpenRouter VendorConfig `toml:"openrouter"`
}

type MCPConfig struct {
	ConnectTimeoutSeconds int `toml:"connect_timeout_seconds"`
	MaxToolRounds         int `toml:"max_tool_rounds"`
}

func (c MCPConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

func defaultVendor() VendorConfig {
	return VendorConfig{TimeoutSeconds: DefaultVendorTimeout, MaxRetries: DefaultVendorRetries}
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "change-your-password-here",
			Email:    "you@example.com",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Storage: StorageConfig{
			Root:           DefaultMediaRoot,
			PublicBaseURL:  DefaultPublicBaseURL,
			MaxUploadBytes: DefaultMaxUploadBytes,
		},
		Usage: UsageConfig{
			DefaultLimit:        DefaultUsageLimit,
			Period:              DefaultUsagePeriod,
			MaintenanceSchedule: DefaultUsageSchedule,
			EventRetention:      DefaultUsageRetention,
		},
		Vendors: VendorsConfig{
			OpenAI:     defaultVendor(),
			Anthropic:  defaultVendor(),
			Google:     defaultVendor(),
			OpenRouter: defaultVendor(),
		},
		MCP: MCPConfig{
			ConnectTimeoutSeconds: DefaultMCPTimeout,
			MaxToolRounds:         DefaultMaxToolRounds,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
