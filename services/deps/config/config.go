// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads seamlydeps.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/seamlydeps/services/deps/model"
)

// DefaultFileName is looked up in the working directory when no path is
// given.
const DefaultFileName = "seamlydeps.yaml"

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the on-disk configuration.
type Config struct {
	// Measurements is the measurement reference table (CSV, .smis or .vit).
	Measurements string `yaml:"measurements,omitempty"`

	// VariablePrefix marks variable names in formulas. Default "#".
	VariablePrefix string `yaml:"variable_prefix" validate:"required,max=4"`

	// Workers is the dependency extraction pool size. 0 means one per CPU.
	Workers int `yaml:"workers" validate:"gte=0,lte=256"`

	// Functions are extra formula names treated as built-ins.
	Functions []string `yaml:"functions,omitempty" validate:"dive,required"`

	// DisplayAttributes extends the presentation-attribute deny-list.
	DisplayAttributes []string `yaml:"display_attributes,omitempty" validate:"dive,required"`

	// Store is the snapshot database directory. Empty disables snapshots.
	Store string `yaml:"store,omitempty"`

	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Server    ServerConfig    `yaml:"server"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir,omitempty"`
}

// TelemetryConfig selects the OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint,omitempty" validate:"required_if=TraceExporter otlp"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port  int  `yaml:"port" validate:"min=1,max=65535"`
	Watch bool `yaml:"watch"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		VariablePrefix: model.DefaultVariablePrefix,
		Log:            LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "prometheus",
		},
		Server: ServerConfig{Port: 12230},
	}
}

var validate = validator.New()

// Validate checks the struct tags.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Load reads path, or DefaultFileName when path is empty.
//
// Description:
//
//	A missing file yields Default(). Fields absent from the file keep
//	their default values. Relative Measurements and Store paths are
//	resolved against the directory of the file.
//
// Outputs:
//
//	Config - The merged configuration.
//	string - The file actually read, empty when defaults were used.
//	error - Read, parse or validation failure.
func Load(path string) (Config, string, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, "", nil
		}
		return cfg, "", fmt.Errorf("failed to read the config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, "", fmt.Errorf("failed to parse the config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, "", err
	}

	dir := filepath.Dir(path)
	cfg.Measurements = resolve(dir, cfg.Measurements)
	cfg.Store = resolve(dir, cfg.Store)
	return cfg, path, nil
}

// Write saves cfg as YAML, creating parent directories.
func Write(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func resolve(dir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
