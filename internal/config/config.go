// Package config loads export settings and model descriptions.
//
// Settings are layered: built-in defaults, then an optional YAML file, then
// environment variables with the BORN_ prefix. Nested keys are separated by
// a double underscore, so BORN_EXPORT__OPSET sets export.opset and
// BORN_LOG__LEVEL sets log.level.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "BORN_"

type Config struct {
	Log     LogConfig     `koanf:"log"`
	Seed    uint64        `koanf:"seed"`
	Model   ModelConfig   `koanf:"model"`
	Input   InputConfig   `koanf:"input"`
	Weights WeightsConfig `koanf:"weights"`
	Export  ExportConfig  `koanf:"export"`
	Trace   TraceConfig   `koanf:"trace"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, text
}

// InputConfig describes the single model input. An empty shape lets the
// converter infer it.
type InputConfig struct {
	Name  string `koanf:"name"`
	Shape []int  `koanf:"shape"` // -1 marks a dynamic dimension
	DType string `koanf:"dtype"`
}

type WeightsConfig struct {
	Path        string `koanf:"path"`   // SafeTensors file; empty keeps the initial weights
	Format      string `koanf:"format"` // born, torch
	Prefix      string `koanf:"prefix"`
	AllowUnused bool   `koanf:"allow_unused"`
}

type ExportConfig struct {
	Output     string   `koanf:"output"`
	Opset      int      `koanf:"opset"`
	Converter  string   `koanf:"converter"`
	OutputSpec []string `koanf:"output_spec"`
	GraphName  string   `koanf:"graph_name"`
	DocString  string   `koanf:"doc_string"`
}

// TraceConfig enables printing export spans to stderr.
type TraceConfig struct {
	Enabled bool `koanf:"enabled"`
}

func defaults(k *koanf.Koanf) {
	_ = k.Set("log.level", "info")
	_ = k.Set("log.format", "text")
	_ = k.Set("seed", 1)
	_ = k.Set("input.name", "x")
	_ = k.Set("input.dtype", "float32")
	_ = k.Set("weights.format", "born")
	_ = k.Set("export.output", "model.onnx")
	_ = k.Set("export.opset", 9)
	_ = k.Set("export.converter", "born2onnx")
}

// envKey maps BORN_EXPORT__OUTPUT_SPEC to export.output_spec.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Load reads the YAML file at path (if any) over the defaults and applies
// environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	defaults(k)

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that do not depend on the model.
// Model descriptions are checked by ModelConfig.Build.
func (c *Config) Validate() error {
	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("%w: log.format %q (want json or text)", ErrInvalidConfig, c.Log.Format)
	}
	if c.Export.Output == "" {
		return fmt.Errorf("%w: export.output is empty", ErrInvalidConfig)
	}
	for i, d := range c.Input.Shape {
		if d <= 0 && d != -1 {
			return fmt.Errorf("%w: input.shape[%d] = %d", ErrInvalidConfig, i, d)
		}
	}
	return nil
}
