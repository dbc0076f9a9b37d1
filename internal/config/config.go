package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	PublicURL       string        // externally reachable base URL, used for the OAuth redirect
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DBPath string // path to the SQLite database file

	// Sessions
	TokenSecret string        // HMAC secret for access tokens
	AccessTTL   time.Duration // access token lifetime (default: 15m)
	SessionTTL  time.Duration // refresh token lifetime (default: 30 days)

	// OAuth provider (defaults target GitHub)
	OAuthClientID     string
	OAuthClientSecret string
	OAuthAuthURL      string
	OAuthTokenURL     string
	OAuthUserInfoURL  string
	OAuthScopes       []string

	// Redis (sessions, CLI grant parking, change-event fanout)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDialTimeout    time.Duration
	RedisReadTimeout    time.Duration
	RedisWriteTimeout   time.Duration
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisMaxWait        time.Duration // cap on the wait between retries
	RedisPingTimeout    time.Duration // per-attempt ping timeout

	// Brute-force guard on /auth endpoints
	AuthRateBurst     int
	AuthRatePerMinute int
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SATCHEL_LISTEN_PORT", ":8080"),
		PublicURL:       strings.TrimRight(requireEnv("SATCHEL_PUBLIC_URL"), "/"),
		ShutdownTimeout: mustDuration("SATCHEL_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("SATCHEL_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SATCHEL_PRETTY_LOG", true),

		// Storage
		DBPath: getenv("SATCHEL_DB_PATH", "satchel.db"),

		// Sessions
		TokenSecret: requireEnv("SATCHEL_TOKEN_SECRET"),
		AccessTTL:   mustDuration("SATCHEL_ACCESS_TTL", 15*time.Minute),
		SessionTTL:  mustDuration("SATCHEL_SESSION_TTL", 30*24*time.Hour),

		// OAuth
		OAuthClientID:     requireEnv("SATCHEL_OAUTH_CLIENT_ID"),
		OAuthClientSecret: requireEnv("SATCHEL_OAUTH_CLIENT_SECRET"),
		OAuthAuthURL:      getenv("SATCHEL_OAUTH_AUTH_URL", "https://github.com/login/oauth/authorize"),
		OAuthTokenURL:     getenv("SATCHEL_OAUTH_TOKEN_URL", "https://github.com/login/oauth/access_token"),
		OAuthUserInfoURL:  getenv("SATCHEL_OAUTH_USERINFO_URL", "https://api.github.com/user"),
		OAuthScopes:       splitAndTrim(getenv("SATCHEL_OAUTH_SCOPES", "read:user")),

		// Redis settings
		RedisAddr:           requireEnv("SATCHEL_REDIS_ADDR"),
		RedisUser:           getenv("SATCHEL_REDIS_USERNAME", "default"),
		RedisPassword:       getenv("SATCHEL_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("SATCHEL_REDIS_DB", 0),
		RedisDialTimeout:    mustDuration("SATCHEL_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisReadTimeout:    mustDuration("SATCHEL_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWriteTimeout:   mustDuration("SATCHEL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("SATCHEL_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("SATCHEL_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("SATCHEL_REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisMaxWait:        mustDuration("SATCHEL_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("SATCHEL_REDIS_PING_TIMEOUT", 5*time.Second),

		// Auth rate limiting
		AuthRateBurst:     getenvInt("SATCHEL_AUTH_RATE_BURST", 10),
		AuthRatePerMinute: getenvInt("SATCHEL_AUTH_RATE_PER_MINUTE", 30),
	}

	if len(cfg.TokenSecret) < 32 {
		panic("❌ FATAL: SATCHEL_TOKEN_SECRET must be at least 32 bytes")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.TokenSecret = "***REDACTED***"
		cfgCopy.OAuthClientSecret = "***REDACTED***"
		if cfg.RedisPassword != "" {
			cfgCopy.RedisPassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
