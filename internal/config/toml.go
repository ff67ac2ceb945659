// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Descent  DescentConfig  `toml:"descent"`
	Viewport ViewportConfig `toml:"viewport"`
	Domain   DomainConfig   `toml:"domain"`
	Log      LogConfig      `toml:"log"`
}

// DescentConfig maps descent settings.
type DescentConfig struct {
	Expression     *string  `toml:"expression"`
	LearningRate   *float64 `toml:"learning-rate"`
	IntervalMs     *int     `toml:"interval-ms"`
	MaxIterations  *int     `toml:"max-iterations"`
	Epsilon        *float64 `toml:"epsilon"`
	DerivativeStep *float64 `toml:"derivative-step"`
}

// ViewportConfig maps the default visible window.
type ViewportConfig struct {
	XMin *float64 `toml:"x-min"`
	XMax *float64 `toml:"x-max"`
	YMin *float64 `toml:"y-min"`
	YMax *float64 `toml:"y-max"`
}

// DomainConfig maps an optional fixed search interval. Both ends must be set
// for it to take effect.
type DomainConfig struct {
	Min *float64 `toml:"min"`
	Max *float64 `toml:"max"`
}

// LogConfig maps diagnostics log settings.
type LogConfig struct {
	File  *string `toml:"file"`
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
