package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all pathmap server configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	ListenAddr     string `json:"listen_addr"`
	BaseURL        string `json:"base_url"`
	DBPath         string `json:"db_path"`
	Dataset        string `json:"dataset"`
	ReloadSchedule string `json:"reload_schedule"`
	LogLevel       string `json:"log_level"`
	Panel          bool   `json:"panel"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":4200",
		DBPath:     filepath.Join(pathmapDir(), "pathmap.db"),
		LogLevel:   "info",
		Panel:      true,
	}
}

func pathmapDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pathmap"
	}
	return filepath.Join(home, ".pathmap")
}

func settingsPath() string {
	return filepath.Join(pathmapDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	applyEnv(&cfg, os.Getenv)

	// Derive base_url from listen_addr if empty.
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}

	return cfg
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("PATHMAP_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := getenv("PATHMAP_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := getenv("PATHMAP_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("PATHMAP_DATASET"); v != "" {
		cfg.Dataset = v
	}
	if v := getenv("PATHMAP_RELOAD_SCHEDULE"); v != "" {
		cfg.ReloadSchedule = v
	}
	if v := getenv("PATHMAP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("PATHMAP_PANEL"); v != "" {
		cfg.Panel = v == "true" || v == "1"
	}
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	PanelChanged    bool
	LogLevelChanged bool
	DatasetChanged  bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.Panel != new.Panel {
		d.PanelChanged = true
	}
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if old.Dataset != new.Dataset {
		d.DatasetChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.BaseURL != new.BaseURL {
		d.RestartNeeded = append(d.RestartNeeded, "base_url")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.ReloadSchedule != new.ReloadSchedule {
		d.RestartNeeded = append(d.RestartNeeded, "reload_schedule")
	}
	return d
}

func pidPath() string {
	return filepath.Join(pathmapDir(), "pathmap.pid")
}
