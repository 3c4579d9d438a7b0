// Package config reads go-facecues process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/teslashibe/go-facecues/pkg/blink"
	"github.com/teslashibe/go-facecues/pkg/gaze"
	"github.com/teslashibe/go-facecues/pkg/signals"
)

// Environment variables.
const (
	EnvPort               = "FACECUES_PORT"
	EnvLogLevel           = "FACECUES_LOG_LEVEL"
	EnvGazeThreshold      = "FACECUES_GAZE_THRESHOLD"
	EnvEARThreshold       = "FACECUES_EAR_THRESHOLD"
	EnvMouthOpenThreshold = "FACECUES_MOUTH_OPEN_THRESHOLD"
	EnvWorkers            = "FACECUES_WORKERS"
)

// Defaults.
const (
	DefaultPort     = "8080"
	DefaultLogLevel = "info"
	DefaultWorkers  = 4
)

// Config is the process configuration.
type Config struct {
	Port     string
	LogLevel string
	Workers  int
	Signals  signals.Config
}

// LoadDotEnv loads variables from the given files, or .env when none are
// given. Variables already set are kept. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv builds a Config from the environment, falling back to defaults.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:     String(EnvPort, DefaultPort),
		LogLevel: String(EnvLogLevel, DefaultLogLevel),
		Signals:  signals.DefaultConfig(),
	}

	var err error
	if cfg.Workers, err = Int(EnvWorkers, DefaultWorkers); err != nil {
		return Config{}, err
	}
	if cfg.Signals.Gaze.Threshold, err = Float(EnvGazeThreshold, gaze.DefaultThreshold); err != nil {
		return Config{}, err
	}
	if cfg.Signals.Blink.EARThreshold, err = Float(EnvEARThreshold, blink.DefaultEARThreshold); err != nil {
		return Config{}, err
	}
	if cfg.Signals.Blink.MouthOpenThreshold, err = Float(EnvMouthOpenThreshold, blink.DefaultMouthOpenThreshold); err != nil {
		return Config{}, err
	}

	if cfg.Workers < 1 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", EnvWorkers, cfg.Workers)
	}
	if err := cfg.Signals.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// String returns the value of key, or def if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns key parsed as an int, or def if unset.
func Int(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// Float returns key parsed as a float64, or def if unset.
func Float(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
