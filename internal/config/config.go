package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no path is supplied.
const DefaultConfigPath = "config.yaml"

// Config is the application configuration loaded from YAML.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Cron     CronConfig     `yaml:"cron"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Listen string `yaml:"listen"` // Listen address, e.g. ":8080".
}

// DatabaseConfig controls the relational store connection.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // PostgreSQL or SQLite DSN.
}

// RedisConfig controls the optional advisory stock cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"` // Empty disables the cache.
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds JWT signing material.
type AuthConfig struct {
	UserJWTSecret      string `yaml:"user-jwt-secret"`
	AdminJWTSecret     string `yaml:"admin-jwt-secret"`
	TokenExpiryMinutes int    `yaml:"token-expiry-minutes"`
	SeedAdminUsername  string `yaml:"seed-admin-username"`
	SeedAdminPassword  string `yaml:"seed-admin-password"`
}

// CronConfig authenticates external scheduler callers.
type CronConfig struct {
	Secret string `yaml:"secret"` // Shared secret for POST /v0/cron/reconcile.
}

// LogConfig controls log output and rotation.
type LogConfig struct {
	Level      string `yaml:"level"` // logrus level name; empty means info.
	File       string `yaml:"file"`  // Rotating log file path; empty logs to stdout only.
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// JWTConfig is the subset handed to HTTP middleware.
type JWTConfig struct {
	UserSecret  string
	AdminSecret string
	Expiry      time.Duration
}

// JWT builds the middleware view of the auth configuration.
func (c *Config) JWT() JWTConfig {
	expiry := time.Duration(c.Auth.TokenExpiryMinutes) * time.Minute
	if expiry <= 0 {
		expiry = 12 * time.Hour
	}
	return JWTConfig{
		UserSecret:  c.Auth.UserJWTSecret,
		AdminSecret: c.Auth.AdminJWTSecret,
		Expiry:      expiry,
	}
}

// ResolveConfigPath picks the effective config path from the argument or environment.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed != "" {
		return trimmed
	}
	if env := strings.TrimSpace(os.Getenv("SLOTMARKET_CONFIG")); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Load reads and validates the YAML configuration file.
func Load(path string) (*Config, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}
	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
	}
	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, fmt.Errorf("config: database.dsn is required")
	}
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = ":8080"
	}
	return &cfg, nil
}
