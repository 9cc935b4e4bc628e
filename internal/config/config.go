// Package config loads the gateway configuration from environment variables
// (optionally seeded from a .env file) and validates it before startup.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//   - TLS_CERT_FILE / TLS_KEY_FILE: serve HTTPS when both are set
//
// Security:
//   - JWT_SECRET: token signing secret (required, minimum 32 characters)
//   - JWT_ISSUER: issuer claim (default: api-gateway)
//   - ACCESS_TOKEN_TTL: default access token lifetime (default: 1h)
//   - REFRESH_TOKEN_TTL: refresh token lifetime (default: 30d)
//   - ENCRYPTION_KEY: key for webhook secrets at rest (required, minimum 32 characters)
//   - BOOTSTRAP_CLIENT_ID / BOOTSTRAP_CLIENT_SECRET: admin client created on first start
//
// Storage:
//   - STORAGE_TYPE: memory, sqlite or postgres (default: sqlite)
//   - DATABASE_PATH: SQLite file (default: ./api_gateway.db)
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_DB, POSTGRES_USER, POSTGRES_PASSWORD, POSTGRES_SSL_MODE
//
// Redis (optional, enables shared rate limits, shared cache and job locks):
//   - REDIS_ADDRESS, REDIS_PASSWORD, REDIS_DB (0-15), REDIS_POOL_SIZE
//
// Rate Limiting:
//   - RATE_LIMIT_ENABLED (default: true)
//   - RATE_LIMIT_BACKEND: memory or redis (default: memory)
//   - RATE_LIMIT_TIERS: "free=60/1m,partner=600/1m,partner:events=100/1s"
//   - RATE_LIMIT_DEFAULT_TIER (default: free)
//   - AUTH_RATE_LIMIT: per-IP limit on /auth routes (default: 20/1m)
//   - TRUSTED_PROXIES: CIDRs or addresses allowed to set X-Forwarded-For (default: none)
//
// Response Cache:
//   - CACHE_ENABLED (default: true), CACHE_BACKEND: memory or redis, CACHE_DEFAULT_TTL (default: 30s)
//
// Webhooks:
//   - WEBHOOK_WORKERS (8), WEBHOOK_QUEUE_SIZE (256 per worker), WEBHOOK_SHED_THRESHOLD (5000)
//   - WEBHOOK_MAX_ATTEMPTS (6), WEBHOOK_BACKOFF_BASE (30s), WEBHOOK_BACKOFF_MAX (1h)
//   - WEBHOOK_TIMEOUT (10s), WEBHOOK_FAILURE_THRESHOLD (10), WEBHOOK_TRIAL_INTERVAL (1m)
//   - WEBHOOK_POLL_INTERVAL (1s), WEBHOOK_LEASE (1m)
//   - WEBHOOK_CRITICAL_EVENTS: comma separated event types never shed
//   - WEBHOOK_ALLOW_INSECURE: accept http:// targets (default: false)
//
// Health & Alerts:
//   - HEALTH_WINDOW (5m), HEALTH_MIN_SAMPLES (10), HEALTH_DEGRADED_RATIO (0.05),
//     HEALTH_UNHEALTHY_RATIO (0.25), HEALTH_ROLLUP_WINDOW (1h)
//   - ALERT_WEBHOOK_URL, ALERT_SNS_TOPIC_ARN, ALERT_EMAIL_TO
//   - SMTP_HOST, SMTP_PORT, SMTP_USERNAME, SMTP_PASSWORD, SMTP_FROM
//   - AWS_REGION, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY
//
// Domain event feed:
//   - EVENT_SOURCE: none, redis, rabbitmq, sqs, pubsub or kafka (default: none)
//   - EVENT_TOPIC: stream, queue, topic or subscription name (default: domain-events)
//   - RABBITMQ_URL, SQS_QUEUE_URL, GCP_PROJECT_ID, GCP_CREDENTIALS_FILE,
//     KAFKA_BROKERS, KAFKA_GROUP_ID
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"api-gateway/internal/common/utils"
)

// Config holds all configuration values for the gateway.
type Config struct {
	Port        string
	LogLevel    string
	TLSCertFile string
	TLSKeyFile  string

	JWTSecret             string
	JWTIssuer             string
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration
	EncryptionKey         string
	BootstrapClientID     string
	BootstrapClientSecret string

	StorageType      string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	RedisAddress  string
	RedisPassword string
	RedisDB       int
	RedisPoolSize int

	RateLimitEnabled     bool
	RateLimitBackend     string
	RateLimitTiers       []RateLimitTier
	RateLimitDefaultTier string
	AuthRateLimit        RateLimitTier
	TrustedProxies       []netip.Prefix

	CacheEnabled    bool
	CacheBackend    string
	CacheDefaultTTL time.Duration

	WebhookWorkers          int
	WebhookQueueSize        int
	WebhookShedThreshold    int
	WebhookMaxAttempts      int
	WebhookBackoffBase      time.Duration
	WebhookBackoffMax       time.Duration
	WebhookTimeout          time.Duration
	WebhookFailureThreshold int
	WebhookTrialInterval    time.Duration
	WebhookPollInterval     time.Duration
	WebhookLease            time.Duration
	WebhookCriticalEvents   []string
	WebhookAllowInsecure    bool

	HealthWindow         time.Duration
	HealthMinSamples     int
	HealthDegradedRatio  float64
	HealthUnhealthyRatio float64
	HealthRollupWindow   time.Duration

	AlertWebhookURL  string
	AlertSNSTopicARN string
	AlertEmailTo     []string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	EventSource        string
	EventTopic         string
	RabbitMQURL        string
	SQSQueueURL        string
	GCPProjectID       string
	GCPCredentialsFile string
	KafkaBrokers       []string
	KafkaGroupID       string

	// parse errors collected by Load and reported by Validate
	loadErrors []string
}

// RateLimitTier is one entry of RATE_LIMIT_TIERS. An empty RouteClass means
// the limit applies to every route class of the tier.
type RateLimitTier struct {
	Tier       string
	RouteClass string
	Requests   int
	Window     time.Duration
}

// Load reads the configuration from the environment. Malformed values fall
// back to their defaults and are reported by Validate.
func Load() *Config {
	c := &Config{}

	c.Port = getEnv("PORT", "8080")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.TLSCertFile = getEnv("TLS_CERT_FILE", "")
	c.TLSKeyFile = getEnv("TLS_KEY_FILE", "")

	c.JWTSecret = getEnv("JWT_SECRET", "")
	c.JWTIssuer = getEnv("JWT_ISSUER", "api-gateway")
	c.AccessTokenTTL = c.getDurationEnv("ACCESS_TOKEN_TTL", time.Hour)
	c.RefreshTokenTTL = c.getDurationEnv("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	c.EncryptionKey = getEnv("ENCRYPTION_KEY", "")
	c.BootstrapClientID = getEnv("BOOTSTRAP_CLIENT_ID", "")
	c.BootstrapClientSecret = getEnv("BOOTSTRAP_CLIENT_SECRET", "")

	c.StorageType = strings.ToLower(getEnv("STORAGE_TYPE", "sqlite"))
	c.DatabasePath = getEnv("DATABASE_PATH", "./api_gateway.db")
	c.PostgresHost = getEnv("POSTGRES_HOST", "localhost")
	c.PostgresPort = getEnv("POSTGRES_PORT", "5432")
	c.PostgresDB = getEnv("POSTGRES_DB", "api_gateway")
	c.PostgresUser = getEnv("POSTGRES_USER", "postgres")
	c.PostgresPassword = getEnv("POSTGRES_PASSWORD", "")
	c.PostgresSSLMode = getEnv("POSTGRES_SSL_MODE", "disable")

	c.RedisAddress = getEnv("REDIS_ADDRESS", "")
	c.RedisPassword = getEnv("REDIS_PASSWORD", "")
	c.RedisDB = c.getIntEnv("REDIS_DB", 0)
	c.RedisPoolSize = c.getIntEnv("REDIS_POOL_SIZE", 10)

	c.RateLimitEnabled = getBoolEnv("RATE_LIMIT_ENABLED", true)
	c.RateLimitBackend = strings.ToLower(getEnv("RATE_LIMIT_BACKEND", "memory"))
	c.RateLimitDefaultTier = getEnv("RATE_LIMIT_DEFAULT_TIER", "free")
	tiers, err := ParseRateLimitTiers(getEnv("RATE_LIMIT_TIERS", "free=60/1m,partner=600/1m"))
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("RATE_LIMIT_TIERS: %v", err))
	}
	c.RateLimitTiers = tiers
	authLimit, err := parseLimit(getEnv("AUTH_RATE_LIMIT", "20/1m"))
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("AUTH_RATE_LIMIT: %v", err))
	}
	authLimit.Tier = "auth"
	c.AuthRateLimit = authLimit
	proxies, err := ParseTrustedProxies(getListEnv("TRUSTED_PROXIES"))
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("TRUSTED_PROXIES: %v", err))
	}
	c.TrustedProxies = proxies

	c.CacheEnabled = getBoolEnv("CACHE_ENABLED", true)
	c.CacheBackend = strings.ToLower(getEnv("CACHE_BACKEND", "memory"))
	c.CacheDefaultTTL = c.getDurationEnv("CACHE_DEFAULT_TTL", 30*time.Second)

	c.WebhookWorkers = c.getIntEnv("WEBHOOK_WORKERS", 8)
	c.WebhookQueueSize = c.getIntEnv("WEBHOOK_QUEUE_SIZE", 256)
	c.WebhookShedThreshold = c.getIntEnv("WEBHOOK_SHED_THRESHOLD", 5000)
	c.WebhookMaxAttempts = c.getIntEnv("WEBHOOK_MAX_ATTEMPTS", 6)
	c.WebhookBackoffBase = c.getDurationEnv("WEBHOOK_BACKOFF_BASE", 30*time.Second)
	c.WebhookBackoffMax = c.getDurationEnv("WEBHOOK_BACKOFF_MAX", time.Hour)
	c.WebhookTimeout = c.getDurationEnv("WEBHOOK_TIMEOUT", 10*time.Second)
	c.WebhookFailureThreshold = c.getIntEnv("WEBHOOK_FAILURE_THRESHOLD", 10)
	c.WebhookTrialInterval = c.getDurationEnv("WEBHOOK_TRIAL_INTERVAL", time.Minute)
	c.WebhookPollInterval = c.getDurationEnv("WEBHOOK_POLL_INTERVAL", time.Second)
	c.WebhookLease = c.getDurationEnv("WEBHOOK_LEASE", time.Minute)
	c.WebhookCriticalEvents = getListEnv("WEBHOOK_CRITICAL_EVENTS")
	c.WebhookAllowInsecure = getBoolEnv("WEBHOOK_ALLOW_INSECURE", false)

	c.HealthWindow = c.getDurationEnv("HEALTH_WINDOW", 5*time.Minute)
	c.HealthMinSamples = c.getIntEnv("HEALTH_MIN_SAMPLES", 10)
	c.HealthDegradedRatio = c.getFloatEnv("HEALTH_DEGRADED_RATIO", 0.05)
	c.HealthUnhealthyRatio = c.getFloatEnv("HEALTH_UNHEALTHY_RATIO", 0.25)
	c.HealthRollupWindow = c.getDurationEnv("HEALTH_ROLLUP_WINDOW", time.Hour)

	c.AlertWebhookURL = getEnv("ALERT_WEBHOOK_URL", "")
	c.AlertSNSTopicARN = getEnv("ALERT_SNS_TOPIC_ARN", "")
	c.AlertEmailTo = getListEnv("ALERT_EMAIL_TO")
	c.SMTPHost = getEnv("SMTP_HOST", "")
	c.SMTPPort = c.getIntEnv("SMTP_PORT", 587)
	c.SMTPUsername = getEnv("SMTP_USERNAME", "")
	c.SMTPPassword = getEnv("SMTP_PASSWORD", "")
	c.SMTPFrom = getEnv("SMTP_FROM", "")

	c.AWSRegion = getEnv("AWS_REGION", "us-east-1")
	c.AWSAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	c.AWSSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")

	c.EventSource = strings.ToLower(getEnv("EVENT_SOURCE", "none"))
	c.EventTopic = getEnv("EVENT_TOPIC", "domain-events")
	c.RabbitMQURL = getEnv("RABBITMQ_URL", "")
	c.SQSQueueURL = getEnv("SQS_QUEUE_URL", "")
	c.GCPProjectID = getEnv("GCP_PROJECT_ID", "")
	c.GCPCredentialsFile = getEnv("GCP_CREDENTIALS_FILE", "")
	c.KafkaBrokers = getListEnv("KAFKA_BROKERS")
	c.KafkaGroupID = getEnv("KAFKA_GROUP_ID", "api-gateway")

	return c
}

// PostgresDSN builds the connection string for pgx.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSLMode)
}

// RedisEnabled reports whether a Redis server was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

// Validate checks required fields, formats and cross-field dependencies.
// It must pass before the application starts.
func (c *Config) Validate() error {
	if len(c.loadErrors) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(c.loadErrors, "; "))
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}
	if len(c.EncryptionKey) < 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be at least 32 characters long")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL and REFRESH_TOKEN_TTL must be positive")
	}

	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE must be set together")
	}
	if (c.BootstrapClientID == "") != (c.BootstrapClientSecret == "") {
		return fmt.Errorf("BOOTSTRAP_CLIENT_ID and BOOTSTRAP_CLIENT_SECRET must be set together")
	}

	switch c.StorageType {
	case "memory", "sqlite":
	case "postgres", "postgresql":
		if c.PostgresHost == "" || c.PostgresDB == "" || c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_HOST, POSTGRES_DB and POSTGRES_USER are required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	default:
		return fmt.Errorf("STORAGE_TYPE must be 'memory', 'sqlite' or 'postgres'")
	}

	if c.RedisEnabled() {
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if c.RedisPoolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	}

	if err := c.validateBackend("RATE_LIMIT_BACKEND", c.RateLimitBackend); err != nil {
		return err
	}
	if err := c.validateBackend("CACHE_BACKEND", c.CacheBackend); err != nil {
		return err
	}
	if c.RateLimitEnabled {
		found := false
		for _, tier := range c.RateLimitTiers {
			if tier.Tier == c.RateLimitDefaultTier && tier.RouteClass == "" {
				found = true
			}
		}
		if !found {
			return fmt.Errorf("RATE_LIMIT_DEFAULT_TIER %q has no entry in RATE_LIMIT_TIERS", c.RateLimitDefaultTier)
		}
	}
	if c.CacheDefaultTTL <= 0 {
		return fmt.Errorf("CACHE_DEFAULT_TTL must be positive")
	}

	if c.WebhookWorkers < 1 || c.WebhookQueueSize < 1 || c.WebhookShedThreshold < 1 {
		return fmt.Errorf("WEBHOOK_WORKERS, WEBHOOK_QUEUE_SIZE and WEBHOOK_SHED_THRESHOLD must be positive")
	}
	if c.WebhookMaxAttempts < 1 {
		return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS must be at least 1")
	}
	if c.WebhookFailureThreshold < 1 {
		return fmt.Errorf("WEBHOOK_FAILURE_THRESHOLD must be at least 1")
	}
	if c.WebhookTimeout <= 0 || c.WebhookBackoffBase <= 0 || c.WebhookBackoffMax < c.WebhookBackoffBase {
		return fmt.Errorf("WEBHOOK_TIMEOUT and WEBHOOK_BACKOFF_BASE must be positive and WEBHOOK_BACKOFF_MAX must not be below the base")
	}
	if c.WebhookTrialInterval <= 0 || c.WebhookPollInterval <= 0 || c.WebhookLease <= c.WebhookTimeout {
		return fmt.Errorf("WEBHOOK_TRIAL_INTERVAL and WEBHOOK_POLL_INTERVAL must be positive and WEBHOOK_LEASE must exceed WEBHOOK_TIMEOUT")
	}

	if c.HealthWindow < time.Minute {
		return fmt.Errorf("HEALTH_WINDOW must be at least one minute")
	}
	if c.HealthDegradedRatio <= 0 || c.HealthUnhealthyRatio < c.HealthDegradedRatio || c.HealthUnhealthyRatio > 1 {
		return fmt.Errorf("HEALTH_DEGRADED_RATIO must be positive and not above HEALTH_UNHEALTHY_RATIO (max 1)")
	}
	if len(c.AlertEmailTo) > 0 && (c.SMTPHost == "" || c.SMTPFrom == "") {
		return fmt.Errorf("SMTP_HOST and SMTP_FROM are required when ALERT_EMAIL_TO is set")
	}

	switch c.EventSource {
	case "none", "":
	case "redis":
		if !c.RedisEnabled() {
			return fmt.Errorf("EVENT_SOURCE=redis requires REDIS_ADDRESS")
		}
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when EVENT_SOURCE=rabbitmq")
		}
	case "sqs":
		if c.SQSQueueURL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required when EVENT_SOURCE=sqs")
		}
	case "pubsub":
		if c.GCPProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required when EVENT_SOURCE=pubsub")
		}
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENT_SOURCE=kafka")
		}
	default:
		return fmt.Errorf("EVENT_SOURCE must be one of none, redis, rabbitmq, sqs, pubsub, kafka")
	}

	return nil
}

func (c *Config) validateBackend(name, value string) error {
	switch value {
	case "memory":
		return nil
	case "redis":
		if !c.RedisEnabled() {
			return fmt.Errorf("%s=redis requires REDIS_ADDRESS", name)
		}
		return nil
	default:
		return fmt.Errorf("%s must be 'memory' or 'redis'", name)
	}
}

// ParseRateLimitTiers parses "tier[:class]=N/window" entries separated by commas.
func ParseRateLimitTiers(spec string) ([]RateLimitTier, error) {
	var tiers []RateLimitTier
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		name, limit, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q must look like tier=N/window", entry)
		}

		tier, err := parseLimit(limit)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		tier.Tier, tier.RouteClass, _ = strings.Cut(strings.TrimSpace(name), ":")
		if tier.Tier == "" {
			return nil, fmt.Errorf("entry %q has an empty tier name", entry)
		}
		tiers = append(tiers, tier)
	}

	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	return tiers, nil
}

func parseLimit(s string) (RateLimitTier, error) {
	count, window, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return RateLimitTier{}, fmt.Errorf("limit %q must look like N/window", s)
	}

	n, err := strconv.Atoi(count)
	if err != nil || n < 1 {
		return RateLimitTier{}, fmt.Errorf("limit %q needs a positive request count", s)
	}

	// "1m" and "m" are both accepted
	if window != "" && (window[0] < '0' || window[0] > '9') {
		window = "1" + window
	}
	d, err := utils.ParseDuration(window)
	if err != nil || d <= 0 {
		return RateLimitTier{}, fmt.Errorf("limit %q needs a positive window", s)
	}

	return RateLimitTier{Requests: n, Window: d}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseTrustedProxies accepts CIDR prefixes and bare addresses, the latter
// as single-host prefixes.
func ParseTrustedProxies(values []string) ([]netip.Prefix, error) {
	prefixes := make([]netip.Prefix, 0, len(values))
	for _, v := range values {
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("invalid prefix %q", v)
			}
			prefixes = append(prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("invalid address %q", v)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func (c *Config) getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("%s must be an integer", key))
		return defaultValue
	}
	return parsed
}

func (c *Config) getFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("%s must be a number", key))
		return defaultValue
	}
	return parsed
}

func (c *Config) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := utils.ParseDuration(value)
	if err != nil {
		c.loadErrors = append(c.loadErrors, fmt.Sprintf("%s must be a duration such as 30s or 1h", key))
		return defaultValue
	}
	return parsed
}
