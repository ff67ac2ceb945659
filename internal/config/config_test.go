package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Descent.LearningRate != nil || cfg.Domain.Min != nil {
		t.Fatalf("expected empty config")
	}
}

func TestLoadConfigValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[descent]
expression = "(x-2)^2"
learning-rate = 0.05
interval-ms = 80

[viewport]
x-min = -5.0
x-max = 5.0

[domain]
min = -20.0
max = 20.0

[log]
level = "debug"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Descent.Expression == nil || *cfg.Descent.Expression != "(x-2)^2" {
		t.Fatalf("expression not decoded")
	}
	if cfg.Descent.LearningRate == nil || *cfg.Descent.LearningRate != 0.05 {
		t.Fatalf("learning rate not decoded")
	}
	if cfg.Descent.IntervalMs == nil || *cfg.Descent.IntervalMs != 80 {
		t.Fatalf("interval not decoded")
	}
	if cfg.Descent.MaxIterations != nil {
		t.Fatalf("unset key should stay nil")
	}
	if cfg.Viewport.XMin == nil || *cfg.Viewport.XMin != -5 || cfg.Viewport.YMin != nil {
		t.Fatalf("viewport not decoded")
	}
	if cfg.Domain.Max == nil || *cfg.Domain.Max != 20 {
		t.Fatalf("domain not decoded")
	}
	if cfg.Log.Level == nil || *cfg.Log.Level != "debug" {
		t.Fatalf("log level not decoded")
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[descent]\nlearnig-rate = 0.1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "learnig-rate") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestDefaultPathsUseXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("XDG_DATA_HOME", "/tmp/data")
	if got := DefaultConfigPath(); got != filepath.Join("/tmp/cfg", "tuigrad", "config.toml") {
		t.Fatalf("unexpected config path %s", got)
	}
	if got := DefaultPresetsPath(); got != filepath.Join("/tmp/cfg", "tuigrad", "presets.txt") {
		t.Fatalf("unexpected presets path %s", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/tmp/data", "tuigrad", "tuigrad.db") {
		t.Fatalf("unexpected db path %s", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/tmp/data", "tuigrad", "tuigrad.log") {
		t.Fatalf("unexpected log path %s", got)
	}
}
