package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gowa-broadcast/internal/dispatch"
	"gowa-broadcast/internal/helper"
	"gowa-broadcast/internal/session"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	LogLevel          string
	LogFormat         string
	AppDatabaseURL    string
	DeviceDatabaseURL string
	DeviceName        string

	JWTSecret         string
	JWTAccessExpiry   time.Duration
	AdminUsername     string
	AdminPasswordHash string

	CORSAllowOrigins   []string
	RateLimitPerSecond int
	RateLimitBurst     int
	RateLimitWindow    time.Duration

	WebhookURL    string
	WebhookSecret string
	MediaMaxBytes int64

	Phone    helper.PhoneNormalizer
	Session  session.Config
	Dispatch dispatch.Config
}

// Load reads .env when present, then the process environment.
func Load() *Config {
	_ = godotenv.Load()

	sess := session.DefaultConfig()
	sess.MaxReconnectAttempts = getEnvInt("WHATSAPP_MAX_RECONNECT_ATTEMPTS", sess.MaxReconnectAttempts)
	sess.BackoffUnit = getEnvDuration("WHATSAPP_RECONNECT_BACKOFF", sess.BackoffUnit)
	sess.BackoffCap = getEnvDuration("WHATSAPP_RECONNECT_BACKOFF_MAX", sess.BackoffCap)
	sess.KeepaliveInterval = getEnvDuration("WHATSAPP_KEEPALIVE_INTERVAL", sess.KeepaliveInterval)
	sess.ScanTimeout = getEnvDuration("WHATSAPP_SCAN_TIMEOUT", sess.ScanTimeout)
	sess.QRWait = getEnvDuration("WHATSAPP_QR_WAIT", sess.QRWait)
	sess.LogoutTimeout = getEnvDuration("WHATSAPP_LOGOUT_TIMEOUT", sess.LogoutTimeout)
	sess.LogoutOnClose = getEnvBool("WHATSAPP_LOGOUT_ON_SHUTDOWN", sess.LogoutOnClose)
	sess.TypingDelay = getEnvDuration("WHATSAPP_TYPING_DELAY", sess.TypingDelay)

	disp := dispatch.DefaultConfig()
	disp.BatchSize = getEnvInt("WHATSAPP_BATCH_SIZE", disp.BatchSize)
	disp.MessageDelay = getEnvDuration("WHATSAPP_MESSAGE_DELAY", disp.MessageDelay)
	disp.MessageJitter = getEnvDuration("WHATSAPP_MESSAGE_JITTER", disp.MessageJitter)
	disp.BatchDelay = getEnvDuration("WHATSAPP_BATCH_DELAY", disp.BatchDelay)
	disp.BatchJitter = getEnvDuration("WHATSAPP_BATCH_JITTER", disp.BatchJitter)
	disp.MaxPerMinute = getEnvInt("WHATSAPP_MAX_PER_MINUTE", disp.MaxPerMinute)

	return &Config{
		Port:              getEnv("PORT", "2121"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "console"),
		AppDatabaseURL:    getEnv("APP_DATABASE_URL", "sqlite://data/app.db"),
		DeviceDatabaseURL: getEnv("WHATSAPP_DATABASE_URL", "sqlite://data/whatsapp.db"),
		DeviceName:        getEnv("WHATSAPP_DEVICE_NAME", "Broadcast"),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:   getEnvDuration("JWT_ACCESS_TOKEN_EXPIRY", time.Hour),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		CORSAllowOrigins:   splitList(getEnv("CORS_ALLOW_ORIGINS", "")),
		RateLimitPerSecond: getEnvInt("RATE_LIMIT_PER_SECOND", 10),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 10),
		RateLimitWindow:    time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", 3)) * time.Minute,

		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", ""),
		MediaMaxBytes: int64(getEnvInt("MEDIA_MAX_BYTES", 10<<20)),

		Phone: helper.PhoneNormalizer{
			CountryCode: getEnv("PHONE_DEFAULT_COUNTRY_CODE", "972"),
			MinDigits:   getEnvInt("PHONE_MIN_DIGITS", 7),
		},
		Session:  sess,
		Dispatch: disp,
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or plain milliseconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
