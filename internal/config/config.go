// Package config loads the optional YAML configuration file of the regbatch
// command. Command-line flags override values from the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the file layout.
//
//	store: ./machine.reg
//	encoding: utf-16le
//	registration:
//	  clsid: 96D16936-E510-4EA4-8EE8-BC9C0BD7057B
//	  name: Drop for Symlink
//	  module: C:\Program Files\dropsym\dropsym.dll
//	log:
//	  level: info
//	  format: text
//	  dir: ""
type Config struct {
	Store        string       `yaml:"store"`
	Encoding     string       `yaml:"encoding"`
	Registration Registration `yaml:"registration"`
	Log          Log          `yaml:"log"`
}

// Registration overrides the shell-extension registration settings.
type Registration struct {
	CLSID          string `yaml:"clsid"`
	Name           string `yaml:"name"`
	Module         string `yaml:"module"`
	ThreadingModel string `yaml:"threading_model"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Dir    string `yaml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Encoding: "utf-16le",
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := Decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Decode overlays YAML data onto cfg. Unknown fields are rejected.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
