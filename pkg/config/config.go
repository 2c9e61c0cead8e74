// Package config loads the YAML configuration used to bring up devices.
//
// A minimal file:
//
//	gpus:
//	  - name: simpledrm
//	    index: 0
//	trace:
//	  path: /var/log/kms/session.klog
//	scanout:
//	  width: 1280
//	  height: 800
//	  bpp: 32
//	state_file: /var/lib/kms/state.json
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config errors.
var (
	ErrInvalid = errors.New("config: invalid")
)

// Config is the top-level configuration.
type Config struct {
	GPUs      []GPU   `yaml:"gpus"`
	Trace     Trace   `yaml:"trace"`
	Scanout   Scanout `yaml:"scanout"`
	StateFile string  `yaml:"state_file"`
}

// GPU names a driver and the device index to expose it under.
type GPU struct {
	Name  string `yaml:"name"`
	Index uint32 `yaml:"index"`
}

// Trace configures protocol tracing.
type Trace struct {
	// Path is the .klog file to write. Empty disables file tracing.
	Path string `yaml:"path"`

	// Console mirrors trace events to the operational log.
	Console bool `yaml:"console"`
}

// Enabled reports whether any trace output is configured.
func (t Trace) Enabled() bool {
	return t.Path != "" || t.Console
}

// Scanout describes the firmware framebuffer surface.
type Scanout struct {
	Width  uint32 `yaml:"width"`
	Height uint32 `yaml:"height"`
	Bpp    uint32 `yaml:"bpp"`
}

// Pitch returns the surface stride in bytes.
func (s Scanout) Pitch() uint32 {
	return s.Width * ((s.Bpp + 7) / 8)
}

// Size returns the surface size in bytes.
func (s Scanout) Size() int {
	return int(s.Pitch()) * int(s.Height)
}

// Default returns the configuration used when no file is given: one
// simpledrm device at index 0 with a 1280x800 XRGB scanout.
func Default() *Config {
	return &Config{
		GPUs: []GPU{{Name: "simpledrm", Index: 0}},
		Scanout: Scanout{
			Width:  1280,
			Height: 800,
			Bpp:    32,
		},
	}
}

// Parse decodes YAML on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if len(c.GPUs) == 0 {
		return fmt.Errorf("%w: no gpus", ErrInvalid)
	}
	seen := make(map[uint32]string, len(c.GPUs))
	for i, g := range c.GPUs {
		if g.Name == "" {
			return fmt.Errorf("%w: gpus[%d]: name is required", ErrInvalid, i)
		}
		if prev, ok := seen[g.Index]; ok {
			return fmt.Errorf("%w: gpus[%d]: index %d already used by %s", ErrInvalid, i, g.Index, prev)
		}
		seen[g.Index] = g.Name
	}

	s := c.Scanout
	if s.Width == 0 || s.Height == 0 {
		return fmt.Errorf("%w: scanout: zero dimension %dx%d", ErrInvalid, s.Width, s.Height)
	}
	if s.Width > 8192 || s.Height > 8192 {
		return fmt.Errorf("%w: scanout: %dx%d exceeds 8192", ErrInvalid, s.Width, s.Height)
	}
	switch s.Bpp {
	case 8, 16, 24, 32:
	default:
		return fmt.Errorf("%w: scanout: unsupported bpp %d", ErrInvalid, s.Bpp)
	}
	return nil
}
