package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port     string         `yaml:"port"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Polling  PollingConfig  `yaml:"polling"`
	Cache    CacheConfig    `yaml:"cache"`
	Prefs    PrefsConfig    `yaml:"prefs"`
	Log      LogConfig      `yaml:"log"`
	Sentry   SentryConfig   `yaml:"sentry"`
}

type UpstreamConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PageSize       int           `yaml:"page_size"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	RateLimit      float64       `yaml:"rate_limit"`
	RateBurst      int           `yaml:"rate_burst"`
	// HostLimits overrides the rate limit for single hosts, keyed the way
	// they appear in request urls ("api.example.com" or "host:port").
	HostLimits map[string]HostLimit `yaml:"host_limits"`
}

type HostLimit struct {
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type PollingConfig struct {
	ConvergenceDelay    time.Duration `yaml:"convergence_delay"`
	MaxConvergencePolls int           `yaml:"max_convergence_polls"`
	// IdleTTL is how long a search may go unread before it is torn down.
	// Zero disables eviction.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	RedisHost     string        `yaml:"redis_host"`
	RedisPort     string        `yaml:"redis_port"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// PrefsConfig points at the sqlite preference table. The locale fields are
// used for keys missing from it, or for everything when Database is empty.
type PrefsConfig struct {
	Database string `yaml:"database"`
	Country  string `yaml:"country"`
	Currency string `yaml:"currency"`
	Language string `yaml:"language"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SentryConfig struct {
	DSN         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
}

func Default() Config {
	return Config{
		Port: "8080",
		Upstream: UpstreamConfig{
			RequestTimeout: 30 * time.Second,
			PageSize:       30,
			MaxRetries:     3,
			RetryBackoff:   500 * time.Millisecond,
			MaxBackoff:     8 * time.Second,
			RateLimit:      5,
			RateBurst:      10,
		},
		Polling: PollingConfig{
			ConvergenceDelay:    2 * time.Second,
			MaxConvergencePolls: 30,
			IdleTTL:             10 * time.Minute,
		},
		Cache: CacheConfig{
			Enabled:   false,
			RedisHost: "localhost",
			RedisPort: "6379",
			TTL:       5 * time.Minute,
		},
		Prefs: PrefsConfig{
			Country:  "IN",
			Currency: "INR",
			Language: "en",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sentry: SentryConfig{
			Environment: "production",
		},
	}
}

// Load reads the YAML file at path when given, applies environment overrides
// and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)

	up := &cfg.Upstream
	up.BaseURL = getEnv("FLIGHTPOLL_BASE_URL", up.BaseURL)
	up.APIKey = getEnv("FLIGHTPOLL_API_KEY", up.APIKey)
	up.RequestTimeout = getEnvDuration("FLIGHTPOLL_REQUEST_TIMEOUT", up.RequestTimeout)
	up.PageSize = getEnvInt("FLIGHTPOLL_PAGE_SIZE", up.PageSize)
	up.MaxRetries = getEnvInt("FLIGHTPOLL_MAX_RETRIES", up.MaxRetries)
	up.RetryBackoff = getEnvDuration("FLIGHTPOLL_RETRY_BACKOFF", up.RetryBackoff)
	up.MaxBackoff = getEnvDuration("FLIGHTPOLL_MAX_BACKOFF", up.MaxBackoff)
	up.RateLimit = getEnvFloat("FLIGHTPOLL_RATE_LIMIT", up.RateLimit)
	up.RateBurst = getEnvInt("FLIGHTPOLL_RATE_BURST", up.RateBurst)

	cfg.Polling.ConvergenceDelay = getEnvDuration("FLIGHTPOLL_CONVERGENCE_DELAY", cfg.Polling.ConvergenceDelay)
	cfg.Polling.MaxConvergencePolls = getEnvInt("FLIGHTPOLL_MAX_CONVERGENCE_POLLS", cfg.Polling.MaxConvergencePolls)
	cfg.Polling.IdleTTL = getEnvDuration("FLIGHTPOLL_IDLE_TTL", cfg.Polling.IdleTTL)

	c := &cfg.Cache
	c.Enabled = getEnvBool("CACHE_ENABLED", c.Enabled)
	c.RedisHost = getEnv("REDIS_HOST", c.RedisHost)
	c.RedisPort = getEnv("REDIS_PORT", c.RedisPort)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.TTL = getEnvDuration("REDIS_TTL", c.TTL)

	p := &cfg.Prefs
	p.Database = getEnv("FLIGHTPOLL_PREFS_DB", p.Database)
	p.Country = getEnv("FLIGHTPOLL_COUNTRY", p.Country)
	p.Currency = getEnv("FLIGHTPOLL_CURRENCY", p.Currency)
	p.Language = getEnv("FLIGHTPOLL_LANGUAGE", p.Language)

	cfg.Log.Level = getEnv("FLIGHTPOLL_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("FLIGHTPOLL_LOG_FORMAT", cfg.Log.Format)

	cfg.Sentry.DSN = getEnv("SENTRY_DSN", cfg.Sentry.DSN)
	cfg.Sentry.Environment = getEnv("SENTRY_ENVIRONMENT", cfg.Sentry.Environment)
}

func (c Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream.base_url is required (set FLIGHTPOLL_BASE_URL or yaml)")
	}
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("upstream.base_url %q must be an absolute url", c.Upstream.BaseURL)
	}
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.Upstream.RequestTimeout <= 0 {
		return errors.New("upstream.request_timeout must be positive")
	}
	if c.Upstream.PageSize < 1 {
		return errors.New("upstream.page_size must be at least 1")
	}
	if c.Upstream.MaxRetries < 0 {
		return errors.New("upstream.max_retries must not be negative")
	}
	if c.Upstream.RetryBackoff > c.Upstream.MaxBackoff {
		return errors.New("upstream.retry_backoff must not exceed upstream.max_backoff")
	}
	for host, l := range c.Upstream.HostLimits {
		if l.RateLimit <= 0 || l.RateBurst < 1 {
			return fmt.Errorf("upstream.host_limits[%s] needs a positive rate_limit and rate_burst", host)
		}
	}
	if c.Polling.ConvergenceDelay < 0 {
		return errors.New("polling.convergence_delay must not be negative")
	}
	if c.Polling.MaxConvergencePolls < 0 {
		return errors.New("polling.max_convergence_polls must not be negative")
	}
	if c.Polling.IdleTTL < 0 {
		return errors.New("polling.idle_ttl must not be negative")
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive when the cache is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
