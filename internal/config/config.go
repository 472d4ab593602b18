package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the booking service.
// Components receive values from here at construction time; nothing
// reads ambient process state after Load.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	SessionTTL     time.Duration
	TurnoverBuffer time.Duration
	Timezone       string
	SuggestionN    int

	InterpreterMode    string
	OpenAIKey          string
	OpenAIModel        string
	InterpreterTimeout time.Duration

	DatabaseURL string
	RedisURL    string
	RoomsFile   string

	NATSURL     string
	NATSSubject string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "roomclerk"),
		AllowAnyOrigin:     false,
		Timezone:           envOrDefault("APP_TIMEZONE", "UTC"),
		InterpreterMode:    envOrDefault("INTERPRETER_MODE", "auto"),
		OpenAIKey:          strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:        envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		RoomsFile:          strings.TrimSpace(os.Getenv("ROOMS_FILE")),
		NATSURL:            strings.TrimSpace(os.Getenv("NATS_URL")),
		NATSSubject:        envOrDefault("NATS_TURN_SUBJECT", "roomclerk.turn"),
		ShutdownTimeout:    15 * time.Second,
		SessionTTL:         5 * time.Hour,
		TurnoverBuffer:     30 * time.Minute,
		InterpreterTimeout: 30 * time.Second,
		SuggestionN:        3,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL, err = durationFromEnv("APP_SESSION_TTL", cfg.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnoverBuffer, err = durationFromEnv("APP_TURNOVER_BUFFER", cfg.TurnoverBuffer)
	if err != nil {
		return Config{}, err
	}
	cfg.InterpreterTimeout, err = durationFromEnv("INTERPRETER_TIMEOUT", cfg.InterpreterTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SuggestionN, err = intFromEnv("APP_SIMILAR_SUGGESTIONS", cfg.SuggestionN)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionTTL < time.Minute {
		return Config{}, fmt.Errorf("APP_SESSION_TTL must be at least 1m")
	}
	if cfg.TurnoverBuffer < 0 {
		return Config{}, fmt.Errorf("APP_TURNOVER_BUFFER must not be negative")
	}
	if cfg.InterpreterTimeout <= 0 {
		return Config{}, fmt.Errorf("INTERPRETER_TIMEOUT must be positive")
	}
	if cfg.SuggestionN <= 0 {
		return Config{}, fmt.Errorf("APP_SIMILAR_SUGGESTIONS must be positive")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("APP_TIMEZONE parse error: %w", err)
	}

	return cfg, nil
}

// Location resolves the configured timezone; Load already validated it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
