// Package config loads seedplan settings from a file and SEEDPLAN_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Store    StoreConfig    `mapstructure:"store"`
	Planning PlanningConfig `mapstructure:"planning"`
	Space    SpaceConfig    `mapstructure:"space"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

type StoreConfig struct {
	// Type selects the content-key store: sqlite, badger or memory.
	Type string `mapstructure:"type" validate:"required,oneof=sqlite badger memory"`

	// Path is the sqlite file or the badger directory.
	Path string `mapstructure:"path" validate:"required_unless=Type memory"`
}

type PlanningConfig struct {
	DownloadDir string `mapstructure:"download_dir" validate:"required"`

	// MaxTotalSize and MaxDownloadSize are humanized byte sizes. An empty
	// MaxTotalSize leaves the budget to the disk; an empty MaxDownloadSize
	// defaults to a fiftieth of MaxTotalSize, or no cap without one. An
	// explicit "0" download size admits nothing.
	MaxTotalSize    string `mapstructure:"max_total_size"`
	MaxDownloadSize string `mapstructure:"max_download_size"`

	// PrimarySite is the only site whose torrents may be deleted. Empty
	// allows all sites.
	PrimarySite string `mapstructure:"primary_site"`
}

type SpaceConfig struct {
	Source    string        `mapstructure:"source" validate:"required,oneof=local agent"`
	AgentAddr string        `mapstructure:"agent_addr" validate:"required_if=Source agent"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type AgentConfig struct {
	Listen        string   `mapstructure:"listen" validate:"required"`
	MetricsListen string   `mapstructure:"metrics_listen"`
	AllowedDirs   []string `mapstructure:"allowed_dirs" validate:"dive,startswith=/"`
}

type MetricsConfig struct {
	// Textfile receives the planning metrics after each CLI run when set.
	Textfile string `mapstructure:"textfile"`
}

// Unbounded is the per-run limit returned when downloads are not capped.
const Unbounded int64 = -1

// Limits returns the parsed size limits in bytes. A total of 0 leaves the
// budget to the disk; perRun is Unbounded when no cap applies.
func (p PlanningConfig) Limits() (total, perRun int64, err error) {
	total, err = parseSize(p.MaxTotalSize)
	if err != nil {
		return 0, 0, fmt.Errorf("planning.max_total_size: %w", err)
	}
	perRun, err = parseSize(p.MaxDownloadSize)
	if err != nil {
		return 0, 0, fmt.Errorf("planning.max_download_size: %w", err)
	}
	if strings.TrimSpace(p.MaxDownloadSize) == "" {
		perRun = Unbounded
		if total > 0 {
			perRun = total / 50
		}
	}
	return total, perRun, nil
}

var errSizeRange = errors.New("size out of range")

func parseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, err
	}
	if v > 1<<62 {
		return 0, errSizeRange
	}
	return int64(v), nil
}

// Load reads configPath, or config.yaml in the XDG config directory when
// configPath is empty. A missing default file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

var envKeys = []string{
	"logging.level", "logging.format",
	"store.type", "store.path",
	"planning.download_dir", "planning.max_total_size", "planning.max_download_size", "planning.primary_site",
	"space.source", "space.agent_addr", "space.timeout",
	"agent.listen", "agent.metrics_listen", "agent.allowed_dirs",
	"metrics.textfile",
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("SEEDPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(ConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "seedplan")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "seedplan")
}

func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "seedplan")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "share", "seedplan")
}
