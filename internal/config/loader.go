package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from the given YAML file, applies environment
// overrides, and validates the result. An empty path loads defaults plus
// environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnv overrides configuration values from environment variables.
// Environment variables take precedence over file values.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "TENANTGATE_SERVER_ADDR")
	setString(&cfg.Log.Level, "TENANTGATE_LOG_LEVEL")
	setString(&cfg.Log.Format, "TENANTGATE_LOG_FORMAT")
	setString(&cfg.Database.DSN, "TENANTGATE_DATABASE_DSN")
	setString(&cfg.Auth.DefaultProvider, "TENANTGATE_AUTH_DEFAULT_PROVIDER")
	setString(&cfg.Auth.Firebase.Issuer, "TENANTGATE_FIREBASE_ISSUER")
	setString(&cfg.Auth.Firebase.Audience, "TENANTGATE_FIREBASE_AUDIENCE")
	setString(&cfg.Auth.Firebase.JWKSURL, "TENANTGATE_FIREBASE_JWKS_URL")
	setString(&cfg.Auth.Firebase.AdminURL, "TENANTGATE_FIREBASE_ADMIN_URL")
	setString(&cfg.Auth.APIKey.QueryParam, "TENANTGATE_APIKEY_QUERY_PARAM")
	setString(&cfg.Tenant.Header, "TENANTGATE_TENANT_HEADER")
	setString(&cfg.Tenant.CacheBackend, "TENANTGATE_TENANT_CACHE_BACKEND")
	setString(&cfg.Tenant.Redis.Addr, "TENANTGATE_REDIS_ADDR")
	setString(&cfg.Tenant.Redis.Password, "TENANTGATE_REDIS_PASSWORD")
	setInt(&cfg.Tenant.Redis.DB, "TENANTGATE_REDIS_DB")
	setDuration(&cfg.Tenant.CacheTTL, "TENANTGATE_TENANT_CACHE_TTL")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
