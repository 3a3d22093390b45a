package cli

import (
	"fmt"

	"github.com/xcube-dev/clmsfetch/internal/logger"
	"github.com/xcube-dev/clmsfetch/pkg/auth"
	"github.com/xcube-dev/clmsfetch/pkg/cache"
	"github.com/xcube-dev/clmsfetch/pkg/config"
	"github.com/xcube-dev/clmsfetch/pkg/download"
	"github.com/xcube-dev/clmsfetch/pkg/httpclient"
	"github.com/xcube-dev/clmsfetch/pkg/jobs"
	"github.com/xcube-dev/clmsfetch/pkg/mosaic"
	"github.com/xcube-dev/clmsfetch/pkg/orchestrator"
)

// These variables will be set by the main package
var (
	ConfigPath *string
	Verbose    *bool
)

// loadConfig loads the configuration and initializes logging.
func loadConfig() (*config.Config, error) {
	configPath := ""
	if ConfigPath != nil {
		configPath = *ConfigPath
	}
	if configPath == "" {
		defaultPath, err := config.GetDefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get default config path: %w", err)
		}
		configPath = defaultPath
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if Verbose != nil && *Verbose {
		cfg.Settings.LogLevel = "debug"
	}
	logger.InitLogger(cfg.Settings.LogLevel)

	return cfg, nil
}

// openCacheIndex opens the cache index for the configured cache directory
// and loads the current snapshot.
func openCacheIndex(cfg *config.Config) (*cache.Index, error) {
	idx, err := cache.NewIndex(cfg.Settings.CacheDir)
	if err != nil {
		return nil, err
	}
	if err := idx.Refresh(); err != nil {
		return nil, err
	}
	return idx, nil
}

// buildOrchestrator wires the full preload pipeline from the config.
func buildOrchestrator(cfg *config.Config, hooks orchestrator.Hooks) (*orchestrator.Orchestrator, error) {
	creds, err := auth.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewJWTTokenSource(creds, cfg.Settings.HTTPTimeout)
	if err != nil {
		return nil, err
	}

	client := httpclient.NewClient(httpclient.Options{
		Timeout:       cfg.Settings.HTTPTimeout,
		StreamTimeout: cfg.Settings.StreamTimeout,
	})

	tracker := jobs.NewTracker(cfg.Service.StatusURL, client, tokens)
	manager := download.NewManager(cfg.Service.RequestURL, client, tokens, tracker,
		download.WithRetry(cfg.Settings.RetryAttempts, download.DefaultRetryDelay))

	idx, err := cache.NewIndex(cfg.Settings.CacheDir)
	if err != nil {
		return nil, err
	}
	mosaicker := mosaic.New(cfg.Settings.CacheDir, mosaic.WithPreferredChunk(cfg.Settings.ChunkSize))

	return orchestrator.New(manager, tracker, mosaicker, idx, hooks, orchestrator.Options{
		PollInterval: cfg.Settings.PollInterval,
		Concurrency:  cfg.Settings.MaxConcurrent,
	}), nil
}
