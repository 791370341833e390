package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port            int
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	AnthropicURL    string
	MaxTokens       int
	Responder       string // live | canned
	CannedDelay     time.Duration
	ModelTimeout    time.Duration // 0 disables the timeout
	SessionTTL      time.Duration
	MaxUploadBytes  int
	RateLimit       string // ulule/limiter format, e.g. "30-M"
	AllowedOrigins  []string
	DatabaseURL     string
	ProfileSlug     string
	NatsURL         string
	NatsToken       string
}

func Load() Config {
	cfg := Config{
		Port:            envInt("BROKERCHAT_PORT", 8760),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("BROKERCHAT_MODEL", "claude-sonnet-4-20250514"),
		AnthropicURL:    envStr("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		MaxTokens:       envInt("CHAT_MAX_TOKENS", 1500),
		Responder:       envStr("CHAT_RESPONDER", ""),
		CannedDelay:     envDuration("CHAT_CANNED_DELAY", 1500*time.Millisecond),
		ModelTimeout:    envDuration("CHAT_MODEL_TIMEOUT", 0),
		SessionTTL:      envDuration("CHAT_SESSION_TTL", 2*time.Hour),
		MaxUploadBytes:  envInt("CHAT_MAX_UPLOAD_BYTES", 5<<20),
		RateLimit:       envStr("CHAT_RATE_LIMIT", "30-M"),
		AllowedOrigins:  envList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		ProfileSlug:     envStr("PROFILE_SLUG", "aip-best-rate"),
		NatsURL:         envStr("NATS_URL", ""),
		NatsToken:       envStr("NATS_TOKEN", ""),
	}
	if cfg.Responder == "" {
		// Without a key the widget still works, it just answers from the demo set.
		cfg.Responder = "live"
		if cfg.AnthropicAPIKey == "" {
			cfg.Responder = "canned"
		}
	}
	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
