package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir     string `json:"data_dir"`
	LogLevel    string `json:"log_level"`
	DisplayName string `json:"display_name"`
	API         struct {
		BaseURL        string `json:"base_url"`
		Token          string `json:"token"`
		TimeoutSeconds int    `json:"timeout_seconds"`
	} `json:"api"`
	Save struct {
		DelayMS       int `json:"delay_ms"`
		RetryDelayMS  int `json:"retry_delay_ms"`
		MaxConcurrent int `json:"max_concurrent"`
	} `json:"save"`
	Quota struct {
		DefaultLimit          int    `json:"default_limit"`
		SnapshotMaxAgeMinutes int    `json:"snapshot_max_age_minutes"`
		RefreshSchedule       string `json:"refresh_schedule"`
		UpgradeLink           string `json:"upgrade_link"`
	} `json:"quota"`
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".draftsync"),
		LogLevel: "info",
	}
	cfg.API.BaseURL = "https://api.draftsync.app/v1"
	cfg.API.TimeoutSeconds = 60
	cfg.Save.DelayMS = 1500
	cfg.Save.RetryDelayMS = 5000
	cfg.Save.MaxConcurrent = 2
	cfg.Quota.DefaultLimit = 10
	cfg.Quota.SnapshotMaxAgeMinutes = 60
	cfg.Quota.RefreshSchedule = "@every 5m"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if token := os.Getenv("DRAFTSYNC_API_TOKEN"); token != "" {
		cfg.API.Token = token
	}
	if baseURL := os.Getenv("DRAFTSYNC_BASE_URL"); baseURL != "" {
		cfg.API.BaseURL = baseURL
	}
	if name := os.Getenv("DRAFTSYNC_DISPLAY_NAME"); name != "" {
		cfg.DisplayName = name
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}

// ListValues returns the config as a flat dot-separated key map, optionally
// masking secrets.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var nested map[string]any
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	flat := Flatten(nested)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads one dot-separated key from the config file at path.
func GetValue(path, key string) (any, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return nil, err
	}
	val, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return val, nil
}

// SetValue writes one dot-separated key into the config file at path.
func SetValue(path, key string, value any) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	flat, err := ListValues(cfg, false)
	if err != nil {
		return err
	}
	if _, ok := flat[key]; !ok {
		return fmt.Errorf("unknown config key: %s", key)
	}
	// String input from the CLI may stand for a number or bool.
	if s, ok := value.(string); ok {
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err == nil {
			value = parsed
		}
	}
	flat[key] = value

	nested := Unflatten(flat)
	data, err := json.Marshal(nested)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	updated := &Config{}
	if err := json.Unmarshal(data, updated); err != nil {
		return fmt.Errorf("apply config value: %w", err)
	}
	return writeDefaults(path, updated)
}
