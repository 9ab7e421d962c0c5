package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
	LogFile   string // optional rotating JSON log file

	// Bookmark store
	StoreDriver string // "postgres" | "memory"
	DatabaseURL string // postgres DSN, required when StoreDriver=postgres
	AutoMigrate bool   // run the bookmarks table migration on startup

	// Redis (sessions, oauth state, principal change notifications)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisTLS              bool          // dial Redis over TLS
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Sessions
	SessionTTL     time.Duration // lifetime of a signed-in browser session
	SessionIdleTTL time.Duration // idle time before a session controller is evicted
	CookieName     string
	CookieSecure   bool

	// Identity
	GoogleClientID     string // empty => /auth/login disabled
	GoogleClientSecret string
	GoogleRedirectURL  string
	PostLoginRedirect  string
	JWTSecret          string // empty => bearer tokens disabled
	JWTIssuer          string // optional expected "iss"

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to readyz/infra
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	RateBurst  int // mutating requests allowed in a burst per client IP
	RatePerMin int // refill rate per client IP
}

// source resolves configuration keys. Real environment variables win over
// values read from the optional YAML file.
type source struct {
	file map[string]string
}

var src = &source{}

func (s *source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func Load() *Config {
	// .env is optional, like in container deployments
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] failed to load .env: %v", err)
	}

	if path := os.Getenv("MARKS_CONFIG_FILE"); path != "" {
		values, err := readFile(path)
		if err != nil {
			panic(fmt.Sprintf("❌ FATAL: %v", err))
		}
		src = &source{file: values}
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MARKS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MARKS_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("MARKS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARKS_PRETTY_LOG", true),
		LogFile:   getenv("MARKS_LOG_FILE", ""),

		// Store
		StoreDriver: getenv("MARKS_STORE_DRIVER", StoreDriverPostgres),
		DatabaseURL: getenv("MARKS_DATABASE_URL", ""),
		AutoMigrate: mustBool("MARKS_AUTO_MIGRATE", true),

		// Redis settings
		RedisAddr:             requireEnv("MARKS_REDIS_ADDR"),
		RedisUser:             getenv("MARKS_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("MARKS_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("MARKS_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("MARKS_REDIS_DB"),
		RedisTLS:              mustBool("MARKS_REDIS_TLS", false),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Sessions
		SessionTTL:     mustDuration("MARKS_SESSION_TTL", 30*24*time.Hour),
		SessionIdleTTL: mustDuration("MARKS_SESSION_IDLE_TTL", 30*time.Minute),
		CookieName:     getenv("MARKS_COOKIE_NAME", "marks_session"),
		CookieSecure:   mustBool("MARKS_COOKIE_SECURE", true),

		// Identity
		GoogleClientID:     getenv("MARKS_GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getenv("MARKS_GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getenv("MARKS_GOOGLE_REDIRECT_URL", ""),
		PostLoginRedirect:  getenv("MARKS_POST_LOGIN_REDIRECT", "/"),
		JWTSecret:          getenv("MARKS_JWT_SECRET", ""),
		JWTIssuer:          getenv("MARKS_JWT_ISSUER", ""),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("MARKS_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("MARKS_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("MARKS_TRUST_PROXY", true),

		RateBurst:  getenvInt("MARKS_RATE_BURST", 20),
		RatePerMin: getenvInt("MARKS_RATE_PER_MIN", 60),
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Validate checks cross-field rules that single helpers cannot express.
func (c *Config) Validate() error {
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("MARKS_REDIS_PASSWORD is required when MARKS_REDIS_PASSWORD_REQUIRED=true")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("MARKS_DATABASE_URL is required when MARKS_STORE_DRIVER=%s", StoreDriverPostgres)
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown MARKS_STORE_DRIVER %q", c.StoreDriver)
	}
	if c.GoogleClientID != "" && (c.GoogleClientSecret == "" || c.GoogleRedirectURL == "") {
		return fmt.Errorf("MARKS_GOOGLE_CLIENT_SECRET and MARKS_GOOGLE_REDIRECT_URL are required with MARKS_GOOGLE_CLIENT_ID")
	}
	return nil
}

// GoogleEnabled reports whether the OAuth login flow is configured.
func (c *Config) GoogleEnabled() bool { return c.GoogleClientID != "" }

// BearerEnabled reports whether bearer tokens are accepted.
func (c *Config) BearerEnabled() bool { return c.JWTSecret != "" }

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	const hidden = "***REDACTED***"
	if cp.RedisPassword != "" {
		cp.RedisPassword = hidden
	}
	if cp.RedisUser != "" {
		cp.RedisUser = hidden
	}
	if cp.DatabaseURL != "" {
		cp.DatabaseURL = hidden
	}
	if cp.GoogleClientSecret != "" {
		cp.GoogleClientSecret = hidden
	}
	if cp.JWTSecret != "" {
		cp.JWTSecret = hidden
	}
	return cp
}

// readFile parses a flat YAML mapping of configuration keys.
//
//	MARKS_REDIS_ADDR: localhost:6379
//	MARKS_REDIS_DB: 0
func readFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config yaml: %w", err)
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		switch tv := v.(type) {
		case nil:
			continue
		case []interface{}:
			parts := make([]string, 0, len(tv))
			for _, p := range tv {
				parts = append(parts, fmt.Sprint(p))
			}
			values[k] = strings.Join(parts, ",")
		default:
			values[k] = fmt.Sprint(tv)
		}
	}
	return values, nil
}

// helpers
func getenv(key, def string) string {
	if v := src.lookup(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := src.lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := src.lookup(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := src.lookup(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := src.lookup(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := src.lookup(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
