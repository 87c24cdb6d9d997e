// Package config reads SplitWeek settings from SPLITWEEK_* environment
// variables. A .env file, when present, is loaded into the environment by
// the CLI before Load runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

const envPrefix = "SPLITWEEK_"

type Config struct {
	Port      int
	DBPath    string
	LogLevel  string
	LogFormat string

	JWTSecret string
	JWTIssuer string
	BaseURL   string

	PostmarkToken string
	FromEmail     string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	S3Endpoint  string
	S3Bucket    string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Prefix    string

	EnforceExpiry bool
	MaxParents    int
}

// Load reads the environment over the defaults. It fails only on values
// that are present but unparseable.
func Load() (*Config, error) {
	cfg := &Config{
		Port:       8080,
		DBPath:     "splitweek.db",
		LogLevel:   "info",
		LogFormat:  "text",
		JWTIssuer:  "splitweek",
		BaseURL:    "http://localhost:8080",
		S3Region:   "us-east-1",
		MaxParents: 2,
	}

	cfg.DBPath = str("DB_PATH", cfg.DBPath)
	cfg.LogLevel = str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = str("LOG_FORMAT", cfg.LogFormat)
	cfg.JWTSecret = str("JWT_SECRET", "")
	cfg.JWTIssuer = str("JWT_ISSUER", cfg.JWTIssuer)
	cfg.BaseURL = strings.TrimRight(str("BASE_URL", cfg.BaseURL), "/")
	cfg.PostmarkToken = str("POSTMARK_TOKEN", "")
	cfg.FromEmail = str("FROM_EMAIL", "")
	cfg.VAPIDPublicKey = str("VAPID_PUBLIC_KEY", "")
	cfg.VAPIDPrivateKey = str("VAPID_PRIVATE_KEY", "")
	cfg.VAPIDSubscriber = str("VAPID_SUBSCRIBER", cfg.FromEmail)
	cfg.S3Endpoint = str("S3_ENDPOINT", "")
	cfg.S3Bucket = str("S3_BUCKET", "")
	cfg.S3Region = str("S3_REGION", cfg.S3Region)
	cfg.S3AccessKey = str("S3_ACCESS_KEY", "")
	cfg.S3SecretKey = str("S3_SECRET_KEY", "")
	cfg.S3Prefix = str("S3_PREFIX", "")

	var errs []error
	var err error
	if cfg.Port, err = integer("PORT", cfg.Port); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxParents, err = integer("MAX_PARENTS", cfg.MaxParents); err != nil {
		errs = append(errs, err)
	}
	if cfg.EnforceExpiry, err = boolean("ENFORCE_EXPIRY", false); err != nil {
		errs = append(errs, err)
	}
	if cfg.MaxParents < 0 {
		errs = append(errs, fmt.Errorf("%sMAX_PARENTS must not be negative", envPrefix))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("%sJWT_SECRET is required", envPrefix)
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("%sJWT_SECRET must be at least 32 characters", envPrefix)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) EmailConfigured() bool {
	return c.PostmarkToken != "" && c.FromEmail != ""
}

func (c *Config) PushConfigured() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func str(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func integer(key string, def int) (int, error) {
	v := str(key, "")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s%s: %q is not a number", envPrefix, key, v)
	}
	return n, nil
}

func boolean(key string, def bool) (bool, error) {
	v := str(key, "")
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s%s: %q is not a boolean", envPrefix, key, v)
	}
	return b, nil
}
