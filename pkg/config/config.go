// Package config provides configuration management for the clmsfetch
// preloader. Settings load from a YAML file with sensible defaults and
// can be overridden through CLMSFETCH_* environment variables, which take
// precedence over file values.
package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/xcube-dev/clmsfetch/pkg/errors"
	"github.com/xcube-dev/clmsfetch/pkg/fsutil"
)

// Default endpoints of the remote dataset service.
const (
	DefaultTokenURL   = "https://land.copernicus.eu/@@oauth2-token"
	DefaultRequestURL = "https://land.copernicus.eu/api/@datarequest_post"
	DefaultStatusURL  = "https://land.copernicus.eu/api/@datarequest_search"
)

// Default configuration values.
const (
	// DefaultPollInterval is the delay between job status polls.
	DefaultPollInterval = 15 * time.Second

	// DefaultHTTPTimeout is the timeout for JSON API requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultStreamTimeout bounds a whole payload download.
	DefaultStreamTimeout = 600 * time.Second

	// DefaultRetryAttempts bounds payload download retries.
	DefaultRetryAttempts = 7

	// DefaultMaxConcurrent is the number of datasets preloaded in parallel.
	DefaultMaxConcurrent = 4

	// DefaultChunkSize is the preferred artifact chunk edge length in pixels.
	DefaultChunkSize = 2000
)

// Config represents the application configuration.
type Config struct {
	// CredentialsFile is the path to the service-key JSON file.
	CredentialsFile string `yaml:"credentials_file" env:"CLMSFETCH_CREDENTIALS_FILE"`

	// Service endpoints
	Service ServiceConfig `yaml:"service"`

	// General settings
	Settings Settings `yaml:"settings"`
}

// ServiceConfig holds the endpoints of the remote dataset service.
type ServiceConfig struct {
	TokenURL   string `yaml:"token_url" env:"CLMSFETCH_TOKEN_URL"`
	RequestURL string `yaml:"request_url" env:"CLMSFETCH_REQUEST_URL"`
	StatusURL  string `yaml:"status_url" env:"CLMSFETCH_STATUS_URL"`
}

// Settings represents general application settings.
type Settings struct {
	// Cache settings
	CacheDir  string `yaml:"cache_dir,omitempty" env:"CLMSFETCH_CACHE_DIR"`
	ChunkSize int    `yaml:"chunk_size" env:"CLMSFETCH_CHUNK_SIZE"`

	// Network settings
	HTTPTimeout   time.Duration `yaml:"http_timeout" env:"CLMSFETCH_HTTP_TIMEOUT"`
	StreamTimeout time.Duration `yaml:"stream_timeout" env:"CLMSFETCH_STREAM_TIMEOUT"`
	RetryAttempts int           `yaml:"retry_attempts" env:"CLMSFETCH_RETRY_ATTEMPTS"`

	// Preload settings
	PollInterval  time.Duration `yaml:"poll_interval" env:"CLMSFETCH_POLL_INTERVAL"`
	MaxConcurrent int           `yaml:"max_concurrent_preloads" env:"CLMSFETCH_MAX_CONCURRENT"`

	// Output settings
	LogLevel string `yaml:"log_level" env:"CLMSFETCH_LOG_LEVEL"` // error, warn, info, debug
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	cacheDir, err := fsutil.DefaultCacheDir()
	if err != nil {
		cacheDir = filepath.Join(os.TempDir(), fsutil.AppName)
	}

	return &Config{
		Service: ServiceConfig{
			TokenURL:   DefaultTokenURL,
			RequestURL: DefaultRequestURL,
			StatusURL:  DefaultStatusURL,
		},
		Settings: Settings{
			CacheDir:      cacheDir,
			ChunkSize:     DefaultChunkSize,
			HTTPTimeout:   DefaultHTTPTimeout,
			StreamTimeout: DefaultStreamTimeout,
			RetryAttempts: DefaultRetryAttempts,
			PollInterval:  DefaultPollInterval,
			MaxConcurrent: DefaultMaxConcurrent,
			LogLevel:      "info",
		},
	}
}

// LoadConfig loads configuration from a file, applies environment
// overrides and validates the result. A missing file yields the defaults,
// still subject to environment overrides.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, errors.ErrEmptyConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidPath, err.Error())
	}

	file, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return finalize(DefaultConfig())
		}
		return nil, errors.Wrapf(err, "failed to open config file: %s", path)
	}
	defer func() { _ = file.Close() }()

	return LoadConfigFromReader(file)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config data")
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}

	config.applyDefaults()
	return finalize(&config)
}

// finalize applies environment overrides and validates.
func finalize(config *Config) (*Config, error) {
	if err := env.Parse(config); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if c.Service.TokenURL == "" || c.Service.RequestURL == "" || c.Service.StatusURL == "" {
		return errors.Wrap(errors.ErrConfigValidation, "service endpoints must not be empty")
	}
	if c.Settings.CacheDir == "" {
		return errors.Wrap(errors.ErrConfigValidation, "cache_dir must not be empty")
	}
	if c.Settings.HTTPTimeout < 0 || c.Settings.StreamTimeout < 0 {
		return errors.Wrap(errors.ErrConfigValidation, "timeouts must not be negative")
	}
	if c.Settings.PollInterval <= 0 {
		return errors.Wrap(errors.ErrConfigValidation, "poll_interval must be positive")
	}
	if c.Settings.RetryAttempts < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "retry_attempts must be at least 1")
	}
	if c.Settings.MaxConcurrent < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "max_concurrent_preloads must be at least 1")
	}
	if c.Settings.ChunkSize < 1 {
		return errors.Wrap(errors.ErrConfigValidation, "chunk_size must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Settings.LogLevel)] {
		return errors.Wrapf(errors.ErrConfigValidation, "unknown log level %q", c.Settings.LogLevel)
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode config")
	}
	return data, nil
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get user config directory")
	}
	return filepath.Join(configDir, fsutil.AppName, "config.yaml"), nil
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Service.TokenURL == "" {
		c.Service.TokenURL = defaults.Service.TokenURL
	}
	if c.Service.RequestURL == "" {
		c.Service.RequestURL = defaults.Service.RequestURL
	}
	if c.Service.StatusURL == "" {
		c.Service.StatusURL = defaults.Service.StatusURL
	}
	if c.Settings.CacheDir == "" {
		c.Settings.CacheDir = defaults.Settings.CacheDir
	}
	if c.Settings.ChunkSize == 0 {
		c.Settings.ChunkSize = defaults.Settings.ChunkSize
	}
	if c.Settings.HTTPTimeout == 0 {
		c.Settings.HTTPTimeout = defaults.Settings.HTTPTimeout
	}
	if c.Settings.StreamTimeout == 0 {
		c.Settings.StreamTimeout = defaults.Settings.StreamTimeout
	}
	if c.Settings.RetryAttempts == 0 {
		c.Settings.RetryAttempts = defaults.Settings.RetryAttempts
	}
	if c.Settings.PollInterval == 0 {
		c.Settings.PollInterval = defaults.Settings.PollInterval
	}
	if c.Settings.MaxConcurrent == 0 {
		c.Settings.MaxConcurrent = defaults.Settings.MaxConcurrent
	}
	if c.Settings.LogLevel == "" {
		c.Settings.LogLevel = defaults.Settings.LogLevel
	}
}
