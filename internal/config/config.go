package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	EnvDBPath   = "LAZYAGENDA_DB"
	EnvLogPath  = "LAZYAGENDA_LOG"
	EnvLogLevel = "LAZYAGENDA_LOG_LEVEL"
)

type Config struct {
	DBPath   string `json:"db_path"`
	LogPath  string `json:"log_path"`
	LogLevel string `json:"log_level"`
}

func Default() Config {
	return Config{LogLevel: "info"}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "lazyagenda", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

func Load(path string) (Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Config{}, err
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return config, nil
}

// ApplyEnv overrides cfg with the values of envFile and then with the
// process environment. A missing envFile is not an error.
func ApplyEnv(cfg Config, envFile string) (Config, error) {
	values := map[string]string{}
	if envFile != "" {
		read, err := godotenv.Read(envFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read env file %s: %w", envFile, err)
		}
		if err == nil {
			values = read
		}
	}

	lookup := func(key string) (string, bool) {
		if value, ok := os.LookupEnv(key); ok && value != "" {
			return value, true
		}
		value, ok := values[key]
		return value, ok && value != ""
	}

	if value, ok := lookup(EnvDBPath); ok {
		cfg.DBPath = value
	}
	if value, ok := lookup(EnvLogPath); ok {
		cfg.LogPath = value
	}
	if value, ok := lookup(EnvLogLevel); ok {
		cfg.LogLevel = value
	}
	return cfg, nil
}

// Resolve fills paths left empty with files next to the config file.
func (c Config) Resolve(configPath string) Config {
	dir := filepath.Dir(configPath)
	if c.DBPath == "" {
		c.DBPath = filepath.Join(dir, "lazyagenda.db")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(dir, "lazyagenda.log")
	}
	if c.LogLevel == "" {
		c.LogLevel = Default().LogLevel
	}
	return c
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
