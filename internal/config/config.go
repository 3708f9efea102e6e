package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the config file.
const (
	EnvBaseURL        = "AUTHPANEL_BASE_URL"
	EnvConfigDir      = "AUTHPANEL_CONFIG_DIR"
	EnvRequestTimeout = "AUTHPANEL_REQUEST_TIMEOUT"
)

type Config struct {
	Dir     string `yaml:"-"`
	DBPath  string `yaml:"-"`
	LogPath string `yaml:"log_path"`

	// BaseURL is where the auth API lives.
	BaseURL string `yaml:"base_url"`
	// RequestTimeout bounds each API call. Zero leaves the transport defaults.
	RequestTimeout time.Duration `yaml:"request_timeout"`
	// HealthInterval is how often the status bar re-probes the server.
	HealthInterval time.Duration `yaml:"health_interval"`
}

func Default() Config {
	return withDir(Config{
		BaseURL:        "http://localhost:5000",
		HealthInterval: 30 * time.Second,
	}, filepath.Join(userConfigDir(), "authpanel"))
}

// Load builds the config from defaults, then the YAML file at path (the
// config dir's config.yaml when path is empty; a missing default file is
// fine), then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		cfg = withDir(cfg, dir)
	}

	explicit := path != ""
	if !explicit {
		path = filepath.Join(cfg.Dir, "config.yaml")
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv(EnvRequestTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvRequestTimeout, err)
		}
		cfg.RequestTimeout = d
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = Default().HealthInterval
	}
	return cfg, nil
}

func withDir(cfg Config, dir string) Config {
	cfg.Dir = dir
	cfg.DBPath = filepath.Join(dir, "authpanel.db")
	cfg.LogPath = filepath.Join(dir, "debug.log")
	return cfg
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}
