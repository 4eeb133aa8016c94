package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"gametunnel/internal/storage/models"
	gterrors "gametunnel/pkg/errors"
)

// Duration wraps time.Duration so config files can use either Go duration
// strings ("10s", "1m30s") or bare numbers, which are read as seconds for
// compatibility with older config files.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs float64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

// ServerConfig is one entry of the `servers:` section.
type ServerConfig struct {
	Name     string `yaml:"name"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Region   string `yaml:"region"`
	Location string `yaml:"location"`
}

// MonitorConfig controls probing, scoring and selection.
type MonitorConfig struct {
	ProbeInterval   Duration `yaml:"probe_interval"`
	ProbeTimeout    Duration `yaml:"probe_timeout"`
	PublishInterval Duration `yaml:"publish_interval"`
	Strategy        string   `yaml:"strategy"` // tcp, udp
	Workers         int64    `yaml:"workers"`
	WindowSize      int      `yaml:"window_size"`

	// Scoring
	EWMAAlpha           float64 `yaml:"ewma_alpha"`
	DegradedThresholdMS float64 `yaml:"degraded_threshold_ms"`
	RecoverThresholdMS  float64 `yaml:"recover_threshold_ms"`
	FailurePenaltyMS    float64 `yaml:"failure_penalty_ms"`
	SuccessesUp         int     `yaml:"successes_up"`
	FailuresDown        int     `yaml:"failures_down"`

	// Selection hysteresis
	SwitchMargin float64 `yaml:"switch_margin"`
	SwitchRounds int     `yaml:"switch_rounds"`
}

// DashboardConfig controls the HTTP/websocket dashboard server.
type DashboardConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// ClientConfig mirrors the `client:` section consumed by the data plane.
type ClientConfig struct {
	AutoConnect       bool     `yaml:"auto_connect"`
	RetryAttempts     int      `yaml:"retry_attempts"`
	RetryDelay        Duration `yaml:"retry_delay"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
}

// LoggingConfig controls the service logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// GameConfig is parsed for config-file round-tripping. Game-aware routing is
// not implemented; nothing consumes these entries yet.
type GameConfig struct {
	Name       string `yaml:"name"`
	Executable string `yaml:"executable"`
	Ports      []int  `yaml:"ports"`
	Protocol   string `yaml:"protocol"`
}

// Config is the full application configuration.
type Config struct {
	Servers   []ServerConfig  `yaml:"servers"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Client    ClientConfig    `yaml:"client"`
	Logging   LoggingConfig   `yaml:"logging"`
	Games     []GameConfig    `yaml:"games"`
}

// Default returns the built-in configuration, used when no config file
// exists and as the base that loaded files override.
func Default() *Config {
	return &Config{
		Monitor: MonitorConfig{
			ProbeInterval:       Duration(10 * time.Second),
			ProbeTimeout:        Duration(5 * time.Second),
			PublishInterval:     Duration(5 * time.Second),
			Strategy:            "tcp",
			Workers:             10,
			WindowSize:          60,
			EWMAAlpha:           0.3,
			DegradedThresholdMS: 100,
			RecoverThresholdMS:  80,
			FailurePenaltyMS:    1000,
			SuccessesUp:         2,
			FailuresDown:        3,
			SwitchMargin:        0.10,
			SwitchRounds:        2,
		},
		Dashboard: DashboardConfig{
			Host: "127.0.0.1",
			Port: 5000,
		},
		Client: ClientConfig{
			AutoConnect:       true,
			RetryAttempts:     3,
			RetryDelay:        Duration(5 * time.Second),
			HeartbeatInterval: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path on top of the defaults. A missing file
// is not an error: the defaults are returned, matching the behavior users
// expect from a fresh install.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", gterrors.ErrConfigInvalid, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		if s.Name == "" || s.Host == "" {
			return fmt.Errorf("%w: server %d is missing name or host", gterrors.ErrConfigInvalid, i)
		}
		if s.Port <= 0 || s.Port > 65535 {
			return fmt.Errorf("%w: server '%s' has invalid port %d", gterrors.ErrConfigInvalid, s.Name, s.Port)
		}
		id := models.EndpointID(s.Name)
		if seen[id] {
			return fmt.Errorf("%w: duplicate server name '%s'", gterrors.ErrConfigInvalid, s.Name)
		}
		seen[id] = true
	}
	if c.Monitor.SwitchMargin < 0 || c.Monitor.SwitchMargin >= 1 {
		return fmt.Errorf("%w: switch_margin must be in [0,1)", gterrors.ErrConfigInvalid)
	}
	if c.Monitor.RecoverThresholdMS > c.Monitor.DegradedThresholdMS {
		return fmt.Errorf("%w: recover_threshold_ms must not exceed degraded_threshold_ms", gterrors.ErrConfigInvalid)
	}
	return nil
}

// Endpoints builds the immutable endpoint registry from the servers section.
func (c *Config) Endpoints() *Registry {
	eps := make([]*models.Endpoint, 0, len(c.Servers))
	for _, s := range c.Servers {
		eps = append(eps, &models.Endpoint{
			ID:       models.EndpointID(s.Name),
			Name:     s.Name,
			Host:     s.Host,
			Port:     s.Port,
			Region:   s.Region,
			Location: s.Location,
		})
	}
	return NewRegistry(eps)
}
