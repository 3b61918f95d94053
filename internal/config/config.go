// internal/config/config.go
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings are the user-tunable knobs, read from settings.yaml when present.
type Settings struct {
	ClaudeDir           string `yaml:"claude_dir,omitempty"`
	PageLimit           int    `yaml:"page_limit,omitempty"`
	SummaryRetries      int    `yaml:"summary_retries,omitempty"`
	SummaryRetryDelayMS int    `yaml:"summary_retry_delay_ms,omitempty"`
	SummaryScanDepth    int    `yaml:"summary_scan_depth,omitempty"`
	DisableListCache    bool   `yaml:"disable_list_cache,omitempty"`
}

// Config holds all resolved application paths.
type Config struct {
	HomeDir      string
	ChronicleDir string
	ClaudeDir    string
	CachePath    string
	ArchiveDir   string
	Settings     Settings
}

// Load resolves paths and reads optional settings from
// ~/.chronicle/settings.yaml.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(home)
}

// LoadFrom is Load anchored at an explicit home directory.
func LoadFrom(home string) (*Config, error) {
	chronicleDir := filepath.Join(home, ".chronicle")
	if err := os.MkdirAll(chronicleDir, 0755); err != nil {
		return nil, err
	}

	cfg := &Config{
		HomeDir:      home,
		ChronicleDir: chronicleDir,
		ClaudeDir:    filepath.Join(home, ".claude"),
		CachePath:    filepath.Join(chronicleDir, "sessions.db"),
		ArchiveDir:   filepath.Join(chronicleDir, "archives"),
	}

	settingsPath := filepath.Join(chronicleDir, "settings.yaml")
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, &cfg.Settings); err != nil {
		return nil, err
	}

	if cfg.Settings.ClaudeDir != "" {
		cfg.ClaudeDir = cfg.Settings.ClaudeDir
	}
	return cfg, nil
}

// Save writes the current settings back to settings.yaml.
func (c *Config) Save() error {
	data, err := yaml.Marshal(&c.Settings)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.ChronicleDir, "settings.yaml"), data, 0644)
}
