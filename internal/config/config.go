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
	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Coordinator
	ListenAddr      string        // ex: ":5000"
	ShutdownTimeout time.Duration // ex: 5s
	DatabasePath    string        // sqlite file holding targets and result history
	TargetsFile     string        // yaml seed file with monitored targets (empty = no reloader)
	ReloadInterval  time.Duration // interval to reload the targets file (default: 1h)
	GCInterval      time.Duration // interval to run target garbage collection (default: 24h)
	GCThreshold     time.Duration // disabled targets older than this are deleted (default: 30d)
	BaseInterval    time.Duration // a target is due once its latest result is older than this
	ExtendedWindow  time.Duration // optional checks are skipped if one ran within this window
	DetailsLimit    int           // results returned by /check-details
	AllowedCIDRS    []string      // optional, restrict internal endpoints to these IPs/CIDRs
	TrustProxy      bool          // true => trust X-Forwarded-For headers
	SubmitBurst     int           // rate limit burst for /submit-check per client IP
	SubmitPerMin    int           // rate limit refill for /submit-check per client IP

	// Alert dispatch (empty server => log-only)
	DispatchServer   string
	DispatchUser     string
	DispatchPassword string
	DispatchTimeout  time.Duration

	// Queue (Redis)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s), must exceed QueueBlock
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisPoolSize         int           // Redis connection pool size
	RedisPingTimeout      time.Duration // timeout for each ping attempt
	QueueName             string        // stream name (default: scheduled)
	QueueGroup            string        // consumer group shared by all workers
	QueueConsumer         string        // consumer name of this worker (default: hostname)
	QueueBlock            time.Duration // how long a receive blocks waiting for a task
	QueueClaimIdle        time.Duration // un-acked deliveries idle longer than this are redelivered
	QueueMaxAttempts      int           // coordinator connection attempts before running degraded
	QueueRetryStep        time.Duration // attempt i sleeps i*step

	// Worker
	CoordinatorURL  string        // base address of the coordinator (ex: http://coordinator:5000)
	SubmitTimeout   time.Duration // timeout for the result submission POST
	DedupWindow     time.Duration // duplicate suppression window
	DedupShared     bool          // true => share the window across workers through redis
	FetchTimeout    time.Duration // per request timeout of the check engine
	MaxBodyBytes    int64         // response body cap
	MaxRedirects    int           // redirects followed before the last 3xx is reported
	PolitenessDelay time.Duration // delay before checking a link on a foreign host
	MaxPages        int           // recursive crawl page bound (0 = unbounded)
	UserAgent       string

	// Performance scorer
	PerfEndpoint  string
	PerfAPIKey    string
	PerfTimeout   time.Duration
	PerfThreshold float64

	// Spelling
	SpellingDictionary  string // symspell style "word count" file (empty = embedded list)
	SpellingMaxDistance int

	// Scheduler
	SchedulerInterval time.Duration
}

func Load() *Config {
	cfg := &Config{
		LogLevel:  getenv("SITECHECK_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SITECHECK_PRETTY_LOG", true),

		ListenAddr:      getenv("SITECHECK_LISTEN_ADDR", ":5000"),
		ShutdownTimeout: mustDuration("SITECHECK_SHUTDOWN_TIMEOUT", 5*time.Second),
		DatabasePath:    getenv("SITECHECK_DATABASE", "sitecheck.db"),
		TargetsFile:     getenv("SITECHECK_TARGETS_FILE", ""),
		ReloadInterval:  mustDuration("SITECHECK_TARGETS_RELOAD_INTERVAL", time.Hour),
		GCInterval:      mustDuration("SITECHECK_GC_INTERVAL", 24*time.Hour),
		GCThreshold:     mustDuration("SITECHECK_GC_THRESHOLD", 30*24*time.Hour),
		BaseInterval:    mustDuration("SITECHECK_BASE_INTERVAL", 5*time.Minute),
		ExtendedWindow:  mustDuration("SITECHECK_EXTENDED_WINDOW", 5*time.Hour),
		DetailsLimit:    getenvInt("SITECHECK_DETAILS_LIMIT", 50),
		AllowedCIDRS:    splitAndTrim(getenv("SITECHECK_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("SITECHECK_TRUST_PROXY", false),
		SubmitBurst:     getenvInt("SITECHECK_SUBMIT_BURST", 30),
		SubmitPerMin:    getenvInt("SITECHECK_SUBMIT_PER_MIN", 120),

		DispatchServer:   strings.TrimSuffix(getenv("SITECHECK_DISPATCH_SERVER", ""), "/"),
		DispatchUser:     getenv("SITECHECK_DISPATCH_USER", ""),
		DispatchPassword: getenv("SITECHECK_DISPATCH_PASSWORD", ""),
		DispatchTimeout:  mustDuration("SITECHECK_DISPATCH_TIMEOUT", 10*time.Second),

		RedisAddr:             getenv("SITECHECK_REDIS_ADDR", ""),
		RedisUser:             getenv("SITECHECK_REDIS_USERNAME", ""),
		RedisPassword:         getenv("SITECHECK_REDIS_PASSWORD", ""),
		RedisPasswordRequired: mustBool("SITECHECK_REDIS_PASSWORD_REQUIRED", false),
		RedisDB:               getenvInt("SITECHECK_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 10*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		QueueName:             getenv("SITECHECK_QUEUE_NAME", "scheduled"),
		QueueGroup:            getenv("SITECHECK_QUEUE_GROUP", "workers"),
		QueueConsumer:         getenv("SITECHECK_QUEUE_CONSUMER", hostname()),
		QueueBlock:            mustDuration("SITECHECK_QUEUE_BLOCK", 5*time.Second),
		QueueClaimIdle:        mustDuration("SITECHECK_QUEUE_CLAIM_IDLE", 10*time.Minute),
		QueueMaxAttempts:      getenvInt("SITECHECK_QUEUE_MAX_ATTEMPTS", 5),
		QueueRetryStep:        mustDuration("SITECHECK_QUEUE_RETRY_STEP", 20*time.Second),

		CoordinatorURL:  strings.TrimSuffix(getenv("SITECHECK_COORDINATOR_URL", "http://localhost:5000"), "/"),
		SubmitTimeout:   mustDuration("SITECHECK_SUBMIT_TIMEOUT", 30*time.Second),
		DedupWindow:     mustDuration("SITECHECK_DEDUP_WINDOW", 5*time.Minute),
		DedupShared:     mustBool("SITECHECK_DEDUP_SHARED", false),
		FetchTimeout:    mustDuration("SITECHECK_FETCH_TIMEOUT", 20*time.Second),
		MaxBodyBytes:    int64(getenvInt("SITECHECK_MAX_BODY_BYTES", 4<<20)),
		MaxRedirects:    getenvInt("SITECHECK_MAX_REDIRECTS", 5),
		PolitenessDelay: mustDuration("SITECHECK_POLITENESS_DELAY", time.Second),
		MaxPages:        getenvInt("SITECHECK_MAX_PAGES", 0),
		UserAgent:       getenv("SITECHECK_USER_AGENT", "sitecheck/1.0 (+website monitoring)"),

		PerfEndpoint:  getenv("SITECHECK_PERF_ENDPOINT", "https://www.googleapis.com/pagespeedonline/v5/runPagespeed"),
		PerfAPIKey:    getenv("SITECHECK_PERF_API_KEY", ""),
		PerfTimeout:   mustDuration("SITECHECK_PERF_TIMEOUT", 90*time.Second),
		PerfThreshold: mustFloat("SITECHECK_PERF_THRESHOLD", 0.75),

		SpellingDictionary:  getenv("SITECHECK_SPELLING_DICTIONARY", ""),
		SpellingMaxDistance: getenvInt("SITECHECK_SPELLING_MAX_DISTANCE", 2),

		SchedulerInterval: mustDuration("SITECHECK_SCHEDULER_INTERVAL", 5*time.Minute),
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = redact(cfg.RedisPassword)
		cfgCopy.DispatchPassword = redact(cfg.DispatchPassword)
		cfgCopy.PerfAPIKey = redact(cfg.PerfAPIKey)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// RequireCoordinator panics when a value the coordinator cannot run without is missing.
func (c *Config) RequireCoordinator() {
	c.RedisAddr = requireValue("SITECHECK_REDIS_ADDR", c.RedisAddr)
	c.requireRedisPassword()
	if c.DispatchServer != "" && (c.DispatchUser == "" || c.DispatchPassword == "") {
		panic("❌ FATAL: SITECHECK_DISPATCH_USER and SITECHECK_DISPATCH_PASSWORD are required when SITECHECK_DISPATCH_SERVER is set")
	}
}

// RequireWorker panics when a value the worker cannot run without is missing.
func (c *Config) RequireWorker() {
	c.RedisAddr = requireValue("SITECHECK_REDIS_ADDR", c.RedisAddr)
	c.CoordinatorURL = requireValue("SITECHECK_COORDINATOR_URL", c.CoordinatorURL)
	c.requireRedisPassword()
	if c.RedisRT <= c.QueueBlock {
		panic(fmt.Sprintf("❌ FATAL: REDIS_READ_TIMEOUT (%s) must be greater than SITECHECK_QUEUE_BLOCK (%s)", c.RedisRT, c.QueueBlock))
	}
}

// RequireScheduler panics when a value the scheduler cannot run without is missing.
func (c *Config) RequireScheduler() {
	c.CoordinatorURL = requireValue("SITECHECK_COORDINATOR_URL", c.CoordinatorURL)
	if c.SchedulerInterval <= 0 {
		panic("❌ FATAL: SITECHECK_SCHEDULER_INTERVAL must be > 0")
	}
}

func (c *Config) requireRedisPassword() {
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		panic("❌ FATAL: SITECHECK_REDIS_PASSWORD is required when SITECHECK_REDIS_PASSWORD_REQUIRED=true")
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	return requireValue(key, os.Getenv(key))
}

func requireValue(key, v string) string {
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

func mustFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "worker"
	}
	return h
}
