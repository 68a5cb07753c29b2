// Package config reads server settings from the environment, after loading a .env
// file when one is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	DatabaseURL        string        `validate:"required_if=StoreBackend postgres"`
	Port               string        `validate:"required,numeric"`
	StoreBackend       string        `validate:"oneof=postgres memory"`
	SeedFile           string        `validate:"omitempty,file"`
	UnderwritingConfig string        `validate:"omitempty,file"`
	CORSAllowedOrigins []string      `validate:"min=1,dive,required"`
	MaxPageSize        int           `validate:"gte=1,lte=1000"`
	ShutdownTimeout    time.Duration `validate:"gt=0"`
	SlowRequest        time.Duration `validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads .env (if any) into the process environment and builds a Config from it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults for unset variables.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL:        getenv("DATABASE_URL"),
		Port:               withDefault(getenv("PORT"), "8080"),
		StoreBackend:       strings.ToLower(withDefault(getenv("STORE_BACKEND"), BackendPostgres)),
		SeedFile:           getenv("SEED_FILE"),
		UnderwritingConfig: getenv("UNDERWRITING_CONFIG"),
		CORSAllowedOrigins: splitList(withDefault(getenv("CORS_ALLOWED_ORIGINS"), "*")),
		MaxPageSize:        200,
		ShutdownTimeout:    30 * time.Second,
		SlowRequest:        2 * time.Second,
	}

	if v := getenv("MAX_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_PAGE_SIZE %q: %w", v, err)
		}
		cfg.MaxPageSize = n
	}
	if v := getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SHUTDOWN_TIMEOUT %q: %w", v, err)
		}
		cfg.ShutdownTimeout = d
	}
	if v := getenv("SLOW_REQUEST_THRESHOLD"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SLOW_REQUEST_THRESHOLD %q: %w", v, err)
		}
		cfg.SlowRequest = d
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func withDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
