// Package config loads the per-library configuration file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bolet777/mediahub/internal/atomicfile"
	"github.com/bolet777/mediahub/internal/collision"
	"github.com/bolet777/mediahub/internal/scanner"
)

type Config struct {
	CollisionPolicy string   `yaml:"collisionPolicy"`
	Exclude         []string `yaml:"exclude"`
	HashCache       bool     `yaml:"hashCache"`
	ExtraExtensions []string `yaml:"extraExtensions,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		CollisionPolicy: string(collision.PolicyRename),
		Exclude: []string{
			"**/.DS_Store",
			"**/Thumbs.db",
			"**/@eaDir/**",
			"**/.*/**",
		},
		HashCache: true,
	}
}

// LoadConfig reads path. A missing file yields DefaultConfig; keys absent
// from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	if cfg.Exclude == nil {
		cfg.Exclude = []string{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the collision policy and exclude patterns.
func (c *Config) Validate() error {
	if _, err := collision.ParsePolicy(c.CollisionPolicy); err != nil {
		return err
	}
	return scanner.ValidatePatterns(c.Exclude)
}

// Policy returns the parsed collision policy.
func (c *Config) Policy() collision.Policy {
	p, err := collision.ParsePolicy(c.CollisionPolicy)
	if err != nil {
		return collision.PolicyRename
	}
	return p
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return atomicfile.WriteFile(path, data, 0o644)
}
