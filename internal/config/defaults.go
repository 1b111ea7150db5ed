package config

import (
	"path/filepath"
	"strings"
	"time"
)

func ApplyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "INFO"
	}
	cfg.Logging.Level = strings.ToUpper(cfg.Logging.Level)
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Store.Type == "" {
		cfg.Store.Type = "sqlite"
	}
	if cfg.Store.Path == "" {
		switch cfg.Store.Type {
		case "sqlite":
			cfg.Store.Path = filepath.Join(dataDir(), "torrents.db")
		case "badger":
			cfg.Store.Path = filepath.Join(dataDir(), "torrents")
		}
	}

	if cfg.Space.Source == "" {
		cfg.Space.Source = "local"
	}
	if cfg.Space.Timeout == 0 {
		cfg.Space.Timeout = 5 * time.Second
	}

	if cfg.Agent.Listen == "" {
		cfg.Agent.Listen = ":9090"
	}
	if len(cfg.Agent.AllowedDirs) == 0 && cfg.Planning.DownloadDir != "" {
		cfg.Agent.AllowedDirs = []string{cfg.Planning.DownloadDir}
	}
}
