// Package config provides configuration management for tenantgate.
// Configuration is loaded from a YAML file with environment variables
// taking precedence over file values.
package config

import (
	"fmt"
	"time"
)

// Config holds all configuration settings for the service.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Tenant   TenantConfig   `yaml:"tenant"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// DefaultProvider is the provider used when callers do not disambiguate.
	DefaultProvider string         `yaml:"defaultProvider"`
	Firebase        FirebaseConfig `yaml:"firebase"`
	APIKey          APIKeyConfig   `yaml:"apiKey"`
}

// FirebaseConfig holds settings for the federated identity provider.
type FirebaseConfig struct {
	Issuer   string `yaml:"issuer"`
	Audience string `yaml:"audience"`
	JWKSURL  string `yaml:"jwksURL"`
	AdminURL string `yaml:"adminURL"`
}

// APIKeyConfig holds settings for the API-key provider.
type APIKeyConfig struct {
	// QueryParam is the query parameter carrying the raw key.
	QueryParam string `yaml:"queryParam"`
}

// TenantConfig holds tenant access-control settings.
type TenantConfig struct {
	// Header is the request header carrying the tenant id.
	Header string `yaml:"header"`
	// CacheTTL bounds how long a cached membership list is used.
	CacheTTL Duration `yaml:"cacheTTL"`
	// CacheBackend selects the membership cache implementation: memory or redis.
	CacheBackend string `yaml:"cacheBackend"`
	Redis        RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings for the membership cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MetricsConfig holds metrics exposure settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     Duration(15 * time.Second),
			WriteTimeout:    Duration(15 * time.Second),
			ShutdownTimeout: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Auth: AuthConfig{
			DefaultProvider: "firebase",
			APIKey: APIKeyConfig{
				QueryParam: "token",
			},
		},
		Tenant: TenantConfig{
			Header:       "X-Tenant-Id",
			CacheTTL:     Duration(5 * time.Minute),
			CacheBackend: "memory",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Auth.DefaultProvider == "" {
		return fmt.Errorf("auth.defaultProvider is required")
	}
	if c.Auth.Firebase.Issuer == "" || c.Auth.Firebase.JWKSURL == "" {
		return fmt.Errorf("auth.firebase.issuer and auth.firebase.jwksURL are required")
	}
	if c.Auth.APIKey.QueryParam == "" {
		return fmt.Errorf("auth.apiKey.queryParam is required")
	}
	if c.Tenant.Header == "" {
		return fmt.Errorf("tenant.header is required")
	}
	if c.Tenant.CacheTTL <= 0 {
		return fmt.Errorf("tenant.cacheTTL must be positive")
	}
	switch c.Tenant.CacheBackend {
	case "memory":
	case "redis":
		if c.Tenant.Redis.Addr == "" {
			return fmt.Errorf("tenant.redis.addr is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("unknown tenant.cacheBackend: %s", c.Tenant.CacheBackend)
	}
	return nil
}
