package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-link-preview/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug       bool   `mapstructure:"debug"`
	SentryDSN   string `mapstructure:"sentry_dsn"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadHost        string        `mapstructure:"read_host"`
	ReadPort        int           `mapstructure:"read_port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds

	AllowedOrigins []string `mapstructure:"allowed_origins"` // empty allows every origin
}

// AuthConfig holds credentials accepted by the API write endpoints
type AuthConfig struct {
	JWTPublicKey string   `mapstructure:"jwt_public_key"`
	APIKeys      []string `mapstructure:"api_keys"`
}

// GitHubConfig holds source repository API configuration
type GitHubConfig struct {
	APIURL     string        `mapstructure:"api_url"`
	Token      string        `mapstructure:"token"`
	APIVersion string        `mapstructure:"api_version"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// BudgetVerifyInterval is how long a cached rate-limit snapshot is trusted before re-verification
	BudgetVerifyInterval time.Duration `mapstructure:"budget_verify_interval"`
}

// BlogsConfig holds blog platform adapter configuration
type BlogsConfig struct {
	DevToAPIURL  string        `mapstructure:"devto_api_url"`
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// ScraperConfig holds generic webpage scraper configuration
type ScraperConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
	MaxRedirects int           `mapstructure:"max_redirects"`
}

// BatchConfig holds batch refresh configuration
type BatchConfig struct {
	WaveSize    int           `mapstructure:"wave_size"`
	WaveDelay   time.Duration `mapstructure:"wave_delay"`
	ItemTimeout time.Duration `mapstructure:"item_timeout"`
}

// RateLimitConfig holds the pacing configuration of a single upstream provider
type RateLimitConfig struct {
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxQueueTime      time.Duration `mapstructure:"max_queue_time"`
}

// RateLimiterConfig holds outbound pacing proxy configuration.
// The proxy is disabled when RedisAddr is empty.
type RateLimiterConfig struct {
	RedisAddr               string                     `mapstructure:"redis_addr"`
	RedisPassword           string                     `mapstructure:"redis_password"`
	RedisDB                 int                        `mapstructure:"redis_db"`
	RedisKeyPrefix          string                     `mapstructure:"redis_key_prefix"`
	MaxWorkers              int                        `mapstructure:"max_workers"`
	MaxQueueSize            int                        `mapstructure:"max_queue_size"`
	EnableLocalFallback     bool                       `mapstructure:"enable_local_fallback"`
	LocalFallbackMultiplier float64                    `mapstructure:"local_fallback_multiplier"`
	Providers               map[string]RateLimitConfig `mapstructure:"providers"`
}

// Enabled reports whether the pacing proxy should be started
func (c RateLimiterConfig) Enabled() bool {
	return c.RedisAddr != ""
}

// PipelineConfig holds everything needed to build the preview pipeline
type PipelineConfig struct {
	GitHub               GitHubConfig      `mapstructure:"github"`
	Blogs                BlogsConfig       `mapstructure:"blogs"`
	Scraper              ScraperConfig     `mapstructure:"scraper"`
	Batch                BatchConfig       `mapstructure:"batch"`
	RateLimit            RateLimiterConfig `mapstructure:"rate_limit"`
	PlatformRegistryPath string            `mapstructure:"platform_registry_path"`
}

// WorkerConfig holds worker configuration
type WorkerConfig struct {
	WorkerPoolSize  int `mapstructure:"pool_size"`
	WorkerQueueSize int `mapstructure:"queue_size"`
}

// PreviewSweeperConfig holds configuration for the preview refresh sweeper
type PreviewSweeperConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
	Worker    WorkerConfig  `mapstructure:"worker"`

	// FailedRetryAfter is how long a retryable failure rests before it is fetched again
	FailedRetryAfter time.Duration `mapstructure:"failed_retry_after"`
}

// APIConfig holds configuration for API server
type APIConfig struct {
	BaseConfig     `mapstructure:",squash"`
	PipelineConfig `mapstructure:",squash"`
	Server         ServerConfig   `mapstructure:"server"`
	Database       DatabaseConfig `mapstructure:"database"`
	Auth           AuthConfig     `mapstructure:"auth"`
}

// SweeperConfig holds configuration for the sweeper program
type SweeperConfig struct {
	BaseConfig     `mapstructure:",squash"`
	PipelineConfig `mapstructure:",squash"`
	Database       DatabaseConfig       `mapstructure:"database"`
	PreviewSweeper PreviewSweeperConfig `mapstructure:"preview_sweeper"`
}

// setPipelineDefaults sets the defaults shared by every binary that runs the preview pipeline
func setPipelineDefaults(v *viper.Viper) {
	v.SetDefault("github.api_url", domain.GITHUB_API_URL)
	v.SetDefault("github.api_version", "2022-11-28")
	v.SetDefault("github.timeout", "10s")
	v.SetDefault("github.budget_verify_interval", "5m")
	v.SetDefault("blogs.devto_api_url", domain.DEVTO_API_URL)
	v.SetDefault("blogs.user_agent", domain.DEFAULT_USER_AGENT)
	v.SetDefault("blogs.timeout", "10s")
	v.SetDefault("blogs.max_body_bytes", 5*1024*1024) // 5MB
	v.SetDefault("scraper.user_agent", domain.DEFAULT_USER_AGENT)
	v.SetDefault("scraper.timeout", "10s")
	v.SetDefault("scraper.max_body_bytes", 5*1024*1024) // 5MB
	v.SetDefault("scraper.max_redirects", 3)
	v.SetDefault("batch.wave_size", 5)
	v.SetDefault("batch.wave_delay", "1s")
	v.SetDefault("batch.item_timeout", "30s")
	v.SetDefault("rate_limit.redis_key_prefix", "ff:link-preview:limiter:")
	v.SetDefault("rate_limit.enable_local_fallback", true)
	v.SetDefault("rate_limit.local_fallback_multiplier", 0.5)
	v.SetDefault("rate_limit.providers.github.requests_per_second", 10)
	v.SetDefault("rate_limit.providers.github.burst", 10)
	for _, p := range domain.SupportedPlatforms() {
		v.SetDefault(fmt.Sprintf("rate_limit.providers.%s.requests_per_second", p), 5)
		v.SetDefault(fmt.Sprintf("rate_limit.providers.%s.burst", p), 5)
	}
}

// LoadAPIConfig loads configuration for API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 60) // batch refreshes hold the connection open
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	setPipelineDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// LoadSweeperConfig loads configuration for the sweeper program
func LoadSweeperConfig(configFile string, envPath string) (*SweeperConfig, error) {
	v := configureViper("sweeper", configFile, envPath)

	// Set defaults
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 5)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("preview_sweeper.interval", "10m")
	v.SetDefault("preview_sweeper.batch_size", 50)
	v.SetDefault("preview_sweeper.failed_retry_after", "1h")
	v.SetDefault("preview_sweeper.worker.pool_size", 5)
	v.SetDefault("preview_sweeper.worker.queue_size", 100)
	setPipelineDefaults(v)

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg SweeperConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if cfg.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}

	return &cfg, nil
}

// readConfig reads the config file, tolerating its absence
func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
			return nil
		}
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			// Explicit config file missing, use environment variables
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// Search for config.yaml in multiple locations:
		// 1. Current directory
		v.AddConfigPath(".")
		// 2. Service-specific directory (e.g., cmd/sweeper/, cmd/api/)
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		// 3. Config directory
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("FF_LINK_PREVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	// Common config keys
	commonKeys := []string{
		"debug",
		"sentry_dsn",
		"environment",
		// Database
		"database.host",
		"database.port",
		"database.read_host",
		"database.read_port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.allowed_origins",
		// Auth
		"auth.jwt_public_key",
		"auth.api_keys",
		// GitHub
		"github.api_url",
		"github.api_version",
		"github.timeout",
		"github.budget_verify_interval",
		// Blogs
		"blogs.devto_api_url",
		"blogs.user_agent",
		"blogs.timeout",
		"blogs.max_body_bytes",
		// Scraper
		"scraper.user_agent",
		"scraper.timeout",
		"scraper.max_body_bytes",
		"scraper.max_redirects",
		// Batch
		"batch.wave_size",
		"batch.wave_delay",
		"batch.item_timeout",
		// Rate limit
		"rate_limit.redis_addr",
		"rate_limit.redis_password",
		"rate_limit.redis_db",
		"rate_limit.redis_key_prefix",
		"rate_limit.max_workers",
		"rate_limit.max_queue_size",
		"rate_limit.enable_local_fallback",
		"rate_limit.local_fallback_multiplier",
		// Registry
		"platform_registry_path",
		// Preview sweeper
		"preview_sweeper.interval",
		"preview_sweeper.batch_size",
		"preview_sweeper.failed_retry_after",
		"preview_sweeper.worker.pool_size",
		"preview_sweeper.worker.queue_size",
	}

	for _, key := range commonKeys {
		_ = v.BindEnv(key)
	}

	// The token also honours the conventional unprefixed variable
	_ = v.BindEnv("github.token", "FF_LINK_PREVIEW_GITHUB_TOKEN", "GITHUB_TOKEN")
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	// Always try shared base first, then local, then optional per-service local.
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	// Default to config directory
	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// ReadDSN returns the read-replica database connection string.
// If ReadPort is not configured, it falls back to Port.
func (c *DatabaseConfig) ReadDSN() string {
	port := c.ReadPort
	if port == 0 {
		port = c.Port
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.ReadHost, port, c.User, c.Password, c.DBName, c.SSLMode)
}
