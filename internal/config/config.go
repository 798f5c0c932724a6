package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds the settings resolved from the environment at startup.
type Config struct {
	PredictAPIURL  string
	PredictTimeout time.Duration

	HTTPAddr       string
	GRPCHealthAddr string
	JWTSecret      string
	JWTAudience    string
	SessionIdleTTL time.Duration
}

// DefaultSessionIdleTTL is how long an unused console session is kept.
const DefaultSessionIdleTTL = 30 * time.Minute

var (
	// ErrMissingAPIURL is returned when PREDICT_API_URL is not set.
	ErrMissingAPIURL = errors.New("PREDICT_API_URL is required")
	// ErrMissingJWTSecret is returned by RequireJWTSecret when JWT_SECRET is not set.
	ErrMissingJWTSecret = errors.New("JWT_SECRET is required to serve the console")
)

// Load reads the configuration using lookup, usually os.Getenv.
func Load(lookup func(string) string) (*Config, error) {
	if lookup == nil {
		lookup = os.Getenv
	}
	get := func(key, fallback string) string {
		if v := strings.TrimSpace(lookup(key)); v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		PredictAPIURL:  strings.TrimRight(get("PREDICT_API_URL", ""), "/"),
		HTTPAddr:       get("HTTP_ADDR", ":8080"),
		GRPCHealthAddr: get("GRPC_HEALTH_ADDR", ":8081"),
		JWTSecret:      get("JWT_SECRET", ""),
		JWTAudience:    get("JWT_AUDIENCE", ""),
		SessionIdleTTL: DefaultSessionIdleTTL,
	}

	if cfg.PredictAPIURL == "" {
		return nil, ErrMissingAPIURL
	}
	u, err := url.Parse(cfg.PredictAPIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("PREDICT_API_URL must be an absolute http(s) URL, got %q", cfg.PredictAPIURL)
	}

	if raw := get("PREDICT_TIMEOUT", ""); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout < 0 {
			return nil, fmt.Errorf("invalid PREDICT_TIMEOUT %q", raw)
		}
		cfg.PredictTimeout = timeout
	}

	if raw := get("SESSION_IDLE_TTL", ""); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid SESSION_IDLE_TTL %q", raw)
		}
		cfg.SessionIdleTTL = ttl
	}

	return cfg, nil
}

// RequireJWTSecret reports ErrMissingJWTSecret when no signing secret was
// configured. Only the console needs one; the CLI never checks tokens.
func (c *Config) RequireJWTSecret() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}
