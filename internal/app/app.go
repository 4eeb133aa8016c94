// Package app assembles the application context shared by all commands.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gametunnel/internal/config"
	"gametunnel/internal/storage"
	"gametunnel/internal/storage/sqlite"
)

// App represents the application context
type App struct {
	Config   *config.Config
	Registry *config.Registry
	Storage  storage.Storage
	Logger   *zap.Logger

	ConfigPath string
	DBPath     string
}

// Options override the default file locations.
type Options struct {
	ConfigPath string
	DBPath     string
	LogLevel   string
}

// New creates a new application instance
func New(opts Options) (*App, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "gametunnel")
	dataDir := filepath.Join(homeDir, ".local", "share", "gametunnel")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(configDir, "config.yaml")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "gametunnel.db")
	}
	store, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &App{
		Config:     cfg,
		Registry:   cfg.Endpoints(),
		Storage:    store,
		Logger:     logger,
		ConfigPath: configPath,
		DBPath:     dbPath,
	}, nil
}

// Close closes the application and releases resources
func (a *App) Close() error {
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}

// buildLogger constructs the service logger. Without a log file everything
// goes to stderr so command output on stdout stays parseable.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.OutputPaths = []string{"stderr"}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, err
		}
		zapCfg.OutputPaths = []string{cfg.File}
	}

	return zapCfg.Build()
}
