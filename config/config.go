// Package config loads the YAML run configuration that drives cmd/funky
// (which variant to run, resource limits, which entrypoints to seed the
// solver from) and validates ad-hoc JSON requests against an embedded
// schema, per SPEC_FULL.md §4.8.
package config

import (
	"fmt"
	"io"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Variant selects which of the three tabulation algorithms a run uses.
type Variant string

const (
	VariantNaive  Variant = "naive"
	VariantFast   Variant = "fast"
	VariantSparse Variant = "sparse"
)

// Entrypoint names one seed for the solver: the analogue of a source in a
// traditional taint config, except funky's propagation is implicit once
// seeded, so the only thing a config entry names is where to start.
type Entrypoint struct {
	Function string `yaml:"function"`
	PC       int    `yaml:"pc"`
	Variable string `yaml:"variable"`
}

// RunOptions controls solver behaviour: which variant, whether naive's
// per-function init may run in parallel, a resource-exhaustion ceiling on
// the number of distinct facts, and log verbosity.
type RunOptions struct {
	Variant      Variant `yaml:"variant"`
	ParallelInit bool    `yaml:"parallel_init"`
	MaxFacts     int     `yaml:"max_facts"`
	LogLevel     string  `yaml:"log_level"`
}

// Config is the top-level shape of a funky run configuration file.
type Config struct {
	Entrypoints []Entrypoint `yaml:"entrypoints"`
	Run         RunOptions   `yaml:"run"`
}

// Load parses a Config from r, applying defaults for any field the
// document leaves unset.
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Run.Variant == "" {
		c.Run.Variant = VariantFast
	}
	if c.Run.LogLevel == "" {
		c.Run.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	switch c.Run.Variant {
	case VariantNaive, VariantFast, VariantSparse:
	default:
		return fmt.Errorf("config: unknown run.variant %q", c.Run.Variant)
	}
	if len(c.Entrypoints) == 0 {
		return fmt.Errorf("config: at least one entrypoint is required")
	}
	for i, e := range c.Entrypoints {
		if strings.TrimSpace(e.Function) == "" {
			return fmt.Errorf("config: entrypoints[%d]: function is required", i)
		}
		if e.PC < 0 {
			return fmt.Errorf("config: entrypoints[%d]: pc must be >= 0", i)
		}
	}
	return nil
}
