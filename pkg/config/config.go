// Package config loads the console's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a svconsole config.yaml file.
type Config struct {
	Version int          `yaml:"version"`
	Server  ServerConfig `yaml:"server"`
	Poll    PollConfig   `yaml:"poll"`
	UI      UIConfig     `yaml:"ui"`
	Log     LogConfig    `yaml:"log"`
	REPL    REPLConfig   `yaml:"repl"`
}

// ServerConfig locates the controller.
type ServerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"` // 0: transport defaults only
}

// PollConfig controls the status poller.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// UIConfig controls the interactive front ends.
type UIConfig struct {
	NotifyDuration time.Duration `yaml:"notify_duration"`
	AutoScroll     bool          `yaml:"auto_scroll"`
}

// LogConfig controls diagnostic logging, not the operator console log.
type LogConfig struct {
	Level    string `yaml:"level"`
	File     string `yaml:"file,omitempty"`
	Journald bool   `yaml:"journald"`
}

// REPLConfig controls line mode.
type REPLConfig struct {
	HistoryFile string `yaml:"history_file,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Server:  ServerConfig{URL: "http://localhost:8080"},
		Poll:    PollConfig{Interval: 3 * time.Second},
		UI:      UIConfig{NotifyDuration: 3 * time.Second, AutoScroll: true},
		Log:     LogConfig{Level: "info"},
	}
}

// Parse decodes data on top of the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := Decode(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Decode overlays data onto c: keys present in data replace the values in c,
// absent keys leave them alone. ${VAR} references are expanded from the
// environment before decoding.
func Decode(data []byte, c *Config) error {
	expanded := os.ExpandEnv(string(data))
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

// LoadFile overlays the file at path onto c.
func LoadFile(path string, c *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := Decode(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load reads a single file on top of the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if err := LoadFile(path, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Marshal encodes c as YAML.
func Marshal(c *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes c to path, creating parent directories.
func Save(path string, c *Config) error {
	data, err := Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
