package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".careclaw"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. CARECLAW_CONFIG overrides
// the default ~/.careclaw/config.json.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("CARECLAW_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	// Override with environment variables for each group.
	envconfig.Process("CARECLAW_PATHS", &cfg.Paths)
	envconfig.Process("CARECLAW_MODEL", &cfg.Model)
	envconfig.Process("CARECLAW_OPENAI", &cfg.Providers.OpenAI)
	envconfig.Process("CARECLAW_CHANNELS_WHATSAPP", &cfg.Channels.WhatsApp)
	envconfig.Process("CARECLAW_CHANNELS_KAFKA", &cfg.Channels.Kafka)
	envconfig.Process("CARECLAW_TOOLS_SEARCH", &cfg.Tools.Search)
	envconfig.Process("CARECLAW_TOOLS_ALERT", &cfg.Tools.Alert)
	envconfig.Process("CARECLAW_MEMORY", &cfg.Memory)
	envconfig.Process("CARECLAW_GEO", &cfg.Geo)
	envconfig.Process("CARECLAW_BUDGET", &cfg.Budget)

	// Fallback for the API key.
	if cfg.Providers.OpenAI.APIKey == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.Providers.OpenAI.APIKey = key
		}
	}
	if cfg.Tools.Search.APIKey == "" {
		if key := os.Getenv("BRAVE_API_KEY"); key != "" {
			cfg.Tools.Search.APIKey = key
		}
	}

	expandHome(&cfg.Paths.DataDir)
	expandHome(&cfg.Paths.TranscriptDB)
	expandHome(&cfg.Memory.SQLitePath)
	expandHome(&cfg.Channels.WhatsApp.StorePath)

	return cfg, nil
}

func expandHome(p *string) {
	if strings.HasPrefix(*p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			*p = filepath.Join(home, (*p)[1:])
		}
	}
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
