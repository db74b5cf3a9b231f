package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values. Required Canvas settings
// fail Load immediately; optional ones carry explicit defaults.
type Config struct {
	Environment        string
	HTTPPort           string
	DatabaseURL        string
	CanvasClientID     string
	CanvasClientSecret string
	CanvasDomain       string
	CanvasScopes       []string
	// TokenExpirationBuffer is the lead time before actual expiry at which
	// GetToken proactively refreshes. Zero refreshes only expired tokens.
	TokenExpirationBuffer time.Duration
	ErrorTemplate         string
	IdentityHeader        string
	SessionCookie         string
	SessionTTL            time.Duration
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	ServiceName           string
	RateLimitRPM          int
	TelemetryEndpoint     string
	TelemetryInsecure     bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	clientID := strings.TrimSpace(os.Getenv("CANVAS_CLIENT_ID"))
	if clientID == "" {
		return Config{}, fmt.Errorf("CANVAS_CLIENT_ID is required")
	}
	clientSecret := strings.TrimSpace(os.Getenv("CANVAS_CLIENT_SECRET"))
	if clientSecret == "" {
		return Config{}, fmt.Errorf("CANVAS_CLIENT_SECRET is required")
	}
	canvasDomain := strings.TrimSpace(os.Getenv("CANVAS_DOMAIN"))
	if canvasDomain == "" {
		return Config{}, fmt.Errorf("CANVAS_DOMAIN is required")
	}

	cfg := Config{
		Environment:           getEnv("APP_ENV", "development"),
		HTTPPort:              getEnv("HTTP_PORT", "8080"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		CanvasClientID:        clientID,
		CanvasClientSecret:    clientSecret,
		CanvasDomain:          canvasDomain,
		CanvasScopes:          getList("CANVAS_SCOPES", nil),
		TokenExpirationBuffer: getDuration("CANVAS_TOKEN_EXPIRATION_BUFFER", 0),
		ErrorTemplate:         os.Getenv("OAUTH_ERROR_TEMPLATE"),
		IdentityHeader:        getEnv("IDENTITY_HEADER", "X-Remote-User"),
		SessionCookie:         getEnv("SESSION_COOKIE", "canvas_oauth_session"),
		SessionTTL:            getDuration("SESSION_TTL", 10*time.Minute),
		RedisAddr:             getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0),
		ServiceName:           getEnv("SERVICE_NAME", "canvas-auth"),
		RateLimitRPM:          getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:     os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:     getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TokenExpirationBuffer < 0 {
		return Config{}, fmt.Errorf("CANVAS_TOKEN_EXPIRATION_BUFFER must not be negative")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
