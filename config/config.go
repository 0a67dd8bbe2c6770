// Package config holds the carrier recovery pipeline configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pipelined.dev/radio/loop"
)

// ErrInvalidConfig is returned when the configuration fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Loop kinds.
const (
	Costas  = "costas"
	PLL     = "pll"
	Carrier = "carrier"
)

// Defaults.
const (
	DefaultBufferSize = 4096
	DefaultBandwidth  = 0.01
	DefaultOrder      = 2
)

// Config describes the pipeline from input file to output file.
type Config struct {
	Input      string `yaml:"input"`
	Output     string `yaml:"output"`
	BufferSize int    `yaml:"buffer_size"`
	Debug      bool   `yaml:"debug"`
	Loop       Loop   `yaml:"loop"`
}

// Loop configures the carrier recovery loop.
type Loop struct {
	Kind      string  `yaml:"kind"`
	Order     int     `yaml:"order"`
	Bandwidth float32 `yaml:"bandwidth"`
}

// Default returns the configuration with default values.
func Default() Config {
	return Config{
		BufferSize: DefaultBufferSize,
		Loop: Loop{
			Kind:      Costas,
			Order:     DefaultOrder,
			Bandwidth: DefaultBandwidth,
		},
	}
}

// Load reads the file on top of default values. Missing keys keep their
// defaults.
func Load(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("load config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// Marshal returns YAML representation of the configuration.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("%w: input is required", ErrInvalidConfig)
	}
	if c.Output == "" {
		return fmt.Errorf("%w: output is required", ErrInvalidConfig)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: buffer size must be positive: %d", ErrInvalidConfig, c.BufferSize)
	}
	return c.Loop.Validate()
}

// Validate checks the loop configuration.
func (l Loop) Validate() error {
	switch l.Kind {
	case Costas:
		switch loop.Order(l.Order) {
		case loop.Order2, loop.Order4, loop.Order8:
		default:
			return fmt.Errorf("%w: unsupported costas order: %d", ErrInvalidConfig, l.Order)
		}
	case PLL, Carrier:
	default:
		return fmt.Errorf("%w: unknown loop kind: %q", ErrInvalidConfig, l.Kind)
	}
	if l.Bandwidth <= 0 || l.Bandwidth >= 1 {
		return fmt.Errorf("%w: bandwidth must be in (0, 1): %v", ErrInvalidConfig, l.Bandwidth)
	}
	return nil
}
