package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted by STASH_STORE.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout (scraping included)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage
	Store     string // "sqlite" | "memory"
	DBPath    string // SQLite file path (":memory:" allowed)
	UsersFile string // YAML file of basic-auth users (username + bcrypt hash)

	// Scoring
	RescoreInterval   time.Duration // periodic rescore of every user (0 = disabled)
	RescoreWorkers    int           // max users rescored concurrently
	RecomputeThrottle time.Duration // min gap between two page-load recomputes of a user
	RecomputeTimeout  time.Duration // deadline of one recompute
	StrictScoring     bool          // true => abort a recompute on a malformed visit timestamp

	// Visit log retention
	VisitRetention time.Duration // 0 = keep forever
	PruneInterval  time.Duration // how often the pruner runs

	// Scraper
	ScrapeTimeout time.Duration // per-fetch timeout (ex: 10s)

	// Homepage bookmarks import
	BookmarkFile   string        // path to a Homepage bookmarks.yaml (optional, empty = import disabled)
	ImportUser     string        // owner of imported bookmarks
	ImportInterval time.Duration // interval to re-import the file (default: 24h)

	// Redis (optional, empty addr = throttle kept in process)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Rate limiting of /api
	RateLimitBurst  int // requests allowed in a burst, per client
	RateLimitPerMin int // refill per client per minute

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to specific IPs (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

// Load reads an optional .env file then the STASH_* environment.
// Invalid required settings panic, as the process cannot start without them.
func Load() *Config {
	loadDotEnv(getenv("STASH_ENV_FILE", ".env"))

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("STASH_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("STASH_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("STASH_REQUEST_TIMEOUT", 15*time.Second),

		// Logging
		LogLevel:  getenv("STASH_LOG_LEVEL", "info"),
		PrettyLog: mustBool("STASH_PRETTY_LOG", true),

		// Storage
		Store:     strings.ToLower(getenv("STASH_STORE", StoreSQLite)),
		DBPath:    getenv("STASH_DB_PATH", "/data/stash.db"),
		UsersFile: getenv("STASH_USERS_FILE", "/app/users.yaml"),

		// Scoring
		RescoreInterval:   mustDuration("STASH_RESCORE_INTERVAL", 6*time.Hour),
		RescoreWorkers:    getenvInt("STASH_RESCORE_WORKERS", 4),
		RecomputeThrottle: mustDuration("STASH_RECOMPUTE_THROTTLE", 30*time.Second),
		RecomputeTimeout:  mustDuration("STASH_RECOMPUTE_TIMEOUT", 30*time.Second),
		StrictScoring:     mustBool("STASH_STRICT_SCORING", false),

		// Retention
		VisitRetention: mustDuration("STASH_VISIT_RETENTION", 0),
		PruneInterval:  mustDuration("STASH_PRUNE_INTERVAL", 24*time.Hour),

		// Scraper
		ScrapeTimeout: mustDuration("STASH_SCRAPE_TIMEOUT", 10*time.Second),

		// Import
		BookmarkFile:   getenv("STASH_BOOKMARK_FILE", ""),
		ImportUser:     getenv("STASH_IMPORT_USER", ""),
		ImportInterval: mustDuration("STASH_IMPORT_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:             getenv("STASH_REDIS_ADDR", ""),
		RedisUser:             getenv("STASH_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("STASH_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("STASH_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("STASH_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Rate limiting
		RateLimitBurst:  getenvInt("STASH_RATE_LIMIT_BURST", 60),
		RateLimitPerMin: getenvInt("STASH_RATE_LIMIT_PER_MIN", 120),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("STASH_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("STASH_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("STASH_TRUST_PROXY", false),
	}

	if err := cfg.Validate(); err != nil {
		panic("❌ FATAL: " + err.Error())
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			return fmt.Errorf("STASH_DB_PATH is required when STASH_STORE=%s", StoreSQLite)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STASH_STORE must be %q or %q, got %q", StoreSQLite, StoreMemory, c.Store)
	}
	if c.RedisAddr != "" && c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("STASH_REDIS_PASSWORD is required when STASH_REDIS_PASSWORD_REQUIRED=true")
	}
	if c.BookmarkFile != "" && c.ImportUser == "" {
		return fmt.Errorf("STASH_IMPORT_USER is required when STASH_BOOKMARK_FILE is set")
	}
	if c.RescoreWorkers < 1 {
		c.RescoreWorkers = 1
	}
	if c.VisitRetention < 0 {
		return fmt.Errorf("STASH_VISIT_RETENTION must be >= 0, got %v", c.VisitRetention)
	}
	return nil
}

// RedisEnabled reports whether a Redis server is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// loadDotEnv populates the environment from path. A missing file is fine; real
// environment variables always win.
func loadDotEnv(path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[WARN] failed to load %s: %v\n", path, err)
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
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
