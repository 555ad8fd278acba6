// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, the bot timezone and
// schedule, WhatsApp credentials, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-recipe-bot")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// WhatsAppConfig carries the Cloud API credentials and webhook verification
// token. Token and phone number ID are required in production; the verify
// token only guards the webhook GET handshake.
type WhatsAppConfig struct {
	Token         string // WHATSAPP_TOKEN
	PhoneNumberID string // WHATSAPP_PHONE_NUMBER_ID
	VerifyToken   string // WHATSAPP_VERIFY_TOKEN
	APIBaseURL    string // WHATSAPP_API_URL (override for tests)
}

// ScheduleConfig defines the daily jobs: when the recipe push and the history
// reset fire (local time, "HH:MM"), and what happens when the process was
// down at fire time.
type ScheduleConfig struct {
	RecipeSendTime string // RECIPE_SEND_TIME, e.g. "22:00"
	ResetTime      string // RESET_TIME, e.g. "00:00"
	GCTime         string // GC_TIME, e.g. "03:30"
	// CatchUp is "skip" (default: missed fire waits for the next day) or
	// "fire" (run once immediately on startup when today's instant passed
	// and the job has not yet run today).
	CatchUp string // CATCH_UP
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel  string // debug|info|warn|error|fatal|panic
	LogPretty bool   // pretty console logs in dev

	// App
	DBPath         string        // SQLite path
	Timezone       string        // BOT_TIMEZONE, IANA name, e.g. "Australia/Sydney"
	RecipientPhone string        // RECIPIENT_PHONE_NUMBER for the daily push
	EventTTL       time.Duration // how long processed-event fingerprints are kept
	RetentionDays  int           // how long suggestions/receipt rows are kept
	MinReceipts    int           // receipts needed before predictions are offered

	Schedule ScheduleConfig
	WhatsApp WhatsAppConfig

	// Rate limiting (ops endpoints)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty: getbool("LOG_PRETTY", false),

		// App
		DBPath:         getenv("DB_PATH", "bot.db"),
		Timezone:       getenv("BOT_TIMEZONE", "Australia/Sydney"),
		RecipientPhone: getenv("RECIPIENT_PHONE_NUMBER", ""),
		EventTTL:       getdur("EVENT_TTL", 48*time.Hour),
		RetentionDays:  getint("RETENTION_DAYS", 30),
		MinReceipts:    getint("MIN_RECEIPTS", 25),

		Schedule: ScheduleConfig{
			RecipeSendTime: getenv("RECIPE_SEND_TIME", "22:00"),
			ResetTime:      getenv("RESET_TIME", "00:00"),
			GCTime:         getenv("GC_TIME", "03:30"),
			CatchUp:        strings.ToLower(getenv("CATCH_UP", "skip")),
		},
		WhatsApp: WhatsAppConfig{
			Token:         getenv("WHATSAPP_TOKEN", ""),
			PhoneNumberID: getenv("WHATSAPP_PHONE_NUMBER_ID", ""),
			VerifyToken:   getenv("WHATSAPP_VERIFY_TOKEN", ""),
			APIBaseURL:    getenv("WHATSAPP_API_URL", "https://graph.facebook.com/v22.0"),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-recipe-bot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return cfg, fmt.Errorf("BOT_TIMEZONE %q is not a valid IANA timezone: %w", cfg.Timezone, err)
	}
	if cfg.EventTTL < 24*time.Hour {
		return cfg, errors.New("EVENT_TTL must be at least 24h to cover the platform retry window")
	}
	if cfg.RetentionDays < 1 {
		return cfg, errors.New("RETENTION_DAYS must be >= 1")
	}
	if cfg.MinReceipts < 1 {
		return cfg, errors.New("MIN_RECEIPTS must be >= 1")
	}
	for _, tt := range []struct{ key, val string }{
		{"RECIPE_SEND_TIME", cfg.Schedule.RecipeSendTime},
		{"RESET_TIME", cfg.Schedule.ResetTime},
		{"GC_TIME", cfg.Schedule.GCTime},
	} {
		if _, _, err := ParseClock(tt.val); err != nil {
			return cfg, fmt.Errorf("%s: %w", tt.key, err)
		}
	}
	switch cfg.Schedule.CatchUp {
	case "skip", "fire":
	default:
		return cfg, errors.New(`CATCH_UP must be "skip" or "fire"`)
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// Location resolves the configured bot timezone. Load has already validated
// the name, so this never fails after a successful Load.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ParseClock parses a local "HH:MM" string into hour and minute components.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
