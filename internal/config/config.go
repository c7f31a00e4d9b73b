package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Environment represents where the tooling runs
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvCI          Environment = "ci"
	EnvProduction  Environment = "production"
)

// LLM providers
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string      `envconfig:"LOG_FILE" default:""`
	Debug    bool        `envconfig:"DEBUG" default:"false"`
	CI       bool        `envconfig:"CI" default:"false"`

	// Browser
	Browser BrowserConfig

	// Locator resolution
	Locator LocatorConfig

	// Output locations
	Paths PathsConfig

	// LLM
	LLM LLMConfig

	// Redis
	Redis RedisConfig

	// S3/MinIO
	Storage StorageConfig

	// Report server
	Server ServerConfig
}

// BrowserConfig holds playwright session settings
type BrowserConfig struct {
	BaseURL        string        `envconfig:"BASE_URL" default:"https://practice.expandtesting.com"`
	Kind           string        `envconfig:"BROWSER" default:"chromium"`
	Headless       bool          `envconfig:"HEADLESS" default:"true"`
	SlowMo         time.Duration `envconfig:"BROWSER_SLOW_MO" default:"0s"`
	ViewportWidth  int           `envconfig:"VIEWPORT_WIDTH" default:"1280"`
	ViewportHeight int           `envconfig:"VIEWPORT_HEIGHT" default:"720"`
	UserAgent      string        `envconfig:"USER_AGENT" default:""`
	DefaultTimeout time.Duration `envconfig:"BROWSER_TIMEOUT" default:"30s"`
	NavTimeout     time.Duration `envconfig:"NAVIGATION_TIMEOUT" default:"30s"`
	Install        bool          `envconfig:"PLAYWRIGHT_INSTALL" default:"false"`
}

// LocatorConfig holds resolver settings
type LocatorConfig struct {
	WaitTimeout time.Duration `envconfig:"LOCATOR_WAIT_TIMEOUT" default:"5s"`
	Debug       bool          `envconfig:"LOCATOR_DEBUG" default:"false"`
	TablesDir   string        `envconfig:"LOCATOR_DIR" default:"locators"`
}

// PathsConfig holds output directories
type PathsConfig struct {
	Screenshots string `envconfig:"SCREENSHOT_DIR" default:"screenshots"`
	Suites      string `envconfig:"SUITES_DIR" default:"test-suites"`
	Pages       string `envconfig:"PAGES_DIR" default:"pages"`
	Tests       string `envconfig:"TESTS_DIR" default:"tests"`
	Reports     string `envconfig:"REPORTS_DIR" default:"reports"`
	Analysis    string `envconfig:"ANALYSIS_DIR" default:"analysis"`
}

// LLMConfig holds completion provider settings
type LLMConfig struct {
	Provider         string        `envconfig:"LLM_PROVIDER" default:"openrouter"`
	AnthropicAPIKey  string        `envconfig:"ANTHROPIC_API_KEY" default:""`
	AnthropicModel   string        `envconfig:"CLAUDE_MODEL" default:"claude-sonnet-4-20250514"`
	OpenRouterAPIKey string        `envconfig:"OPENROUTER_API_KEY" default:""`
	OpenRouterModel  string        `envconfig:"OPENROUTER_MODEL" default:"amazon/nova-lite-v1"`
	OpenRouterURL    string        `envconfig:"OPENROUTER_URL" default:"https://openrouter.ai/api/v1"`
	MaxTokens        int           `envconfig:"LLM_MAX_TOKENS" default:"12000"`
	Temperature      float64       `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	Timeout          time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`
	RateLimitRPM     int           `envconfig:"LLM_RATE_LIMIT_RPM" default:"50"`
	MaxRetries       int           `envconfig:"LLM_MAX_RETRIES" default:"3"`
	EnableCaching    bool          `envconfig:"LLM_ENABLE_CACHING" default:"true"`
	CacheBackend     string        `envconfig:"LLM_CACHE_BACKEND" default:"memory"` // memory, redis
	CacheTTL         time.Duration `envconfig:"LLM_CACHE_TTL" default:"24h"`
	CacheSize        int           `envconfig:"LLM_CACHE_SIZE" default:"1000"`
}

// APIKey returns the key of the selected provider.
func (c LLMConfig) APIKey() string {
	if c.Provider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenRouterAPIKey
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
	KeyPrefix    string        `envconfig:"REDIS_KEY_PREFIX" default:"e2ekit:llm:"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig holds S3/MinIO artifact settings
type StorageConfig struct {
	Enabled         bool   `envconfig:"STORAGE_ENABLED" default:"false"`
	Endpoint        string `envconfig:"S3_ENDPOINT" default:"localhost:9000"`
	AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID" default:"minioadmin"`
	SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY" default:"minioadmin"`
	Bucket          string `envconfig:"S3_BUCKET" default:"e2ekit"`
	Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	UseSSL          bool   `envconfig:"S3_USE_SSL" default:"false"`
	ScreenshotPath  string `envconfig:"STORAGE_SCREENSHOT_PATH" default:"screenshots"`
	ReportPath      string `envconfig:"STORAGE_REPORT_PATH" default:"reports"`
}

// ServerConfig holds report server settings
type ServerConfig struct {
	Host               string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port               int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout        time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout       time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout    time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	CORSAllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadDotEnv loads variables from .env files that exist. Variables already
// set in the environment win.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config without validation (for CLI commands that
// do not need every section)
func LoadWithDefaults() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}
	if cfg.CI && cfg.Env == EnvDevelopment {
		cfg.Env = EnvCI
	}
	return &cfg, nil
}

var (
	validLogLevels = []string{"debug", "info", "warn", "error"}
	validBrowsers  = []string{"chromium", "firefox", "webkit"}
)

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []string

	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of %s", strings.Join(validLogLevels, ", ")))
	}

	if !contains(validBrowsers, strings.ToLower(c.Browser.Kind)) {
		errs = append(errs, fmt.Sprintf("BROWSER must be one of %s", strings.Join(validBrowsers, ", ")))
	}
	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		errs = append(errs, "VIEWPORT_WIDTH and VIEWPORT_HEIGHT must be positive")
	}
	if c.Locator.WaitTimeout <= 0 {
		errs = append(errs, "LOCATOR_WAIT_TIMEOUT must be positive")
	}

	switch c.LLM.Provider {
	case ProviderAnthropic:
		if c.LLM.AnthropicAPIKey == "" {
			errs = append(errs, "ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case ProviderOpenRouter:
		if c.LLM.OpenRouterAPIKey == "" {
			errs = append(errs, "OPENROUTER_API_KEY is required for the openrouter provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("LLM_PROVIDER must be %s or %s", ProviderAnthropic, ProviderOpenRouter))
	}
	if c.LLM.CacheBackend != "memory" && c.LLM.CacheBackend != "redis" {
		errs = append(errs, "LLM_CACHE_BACKEND must be memory or redis")
	}

	if c.Storage.Enabled && (c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "") {
		errs = append(errs, "S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when storage is enabled")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsCI returns true when running under continuous integration
func (c *Config) IsCI() bool {
	return c.CI || c.Env == EnvCI
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
