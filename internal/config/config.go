// Package config loads the per-project .provgraph.yaml file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/jward/provgraph/internal/classify"
	"github.com/jward/provgraph/internal/frontend"
	"github.com/jward/provgraph/internal/semantic"
	"github.com/jward/provgraph/internal/visit"
)

// FileName is the configuration file looked up in the analysed root.
const FileName = ".provgraph.yaml"

// Config holds analysis and output settings. Empty fields take their
// defaults.
type Config struct {
	// Packages are the framework package specifiers.
	Packages []string `yaml:"packages"`
	// ConsumerBases are the framework classes consumer components extend.
	ConsumerBases []string `yaml:"consumer_bases"`
	// BuildMethod is the notifier class method walked when a provider is
	// constructed from a class.
	BuildMethod string `yaml:"build_method"`
	// Exclude lists directory names skipped during discovery.
	Exclude []string `yaml:"exclude"`
	// Format is the default output format.
	Format string `yaml:"format"`
	// Filter is a Risor expression applied before rendering.
	Filter string `yaml:"filter"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Packages:      append([]string(nil), semantic.DefaultPackages...),
		ConsumerBases: append([]string(nil), classify.DefaultConsumerBases...),
		BuildMethod:   visit.DefaultBuildMethod,
		Exclude:       append([]string(nil), frontend.DefaultExclude...),
		Format:        "mermaid",
	}
}

// Load reads FileName from root. A missing file yields Default.
func Load(root string) (Config, error) {
	cfg, err := LoadFile(filepath.Join(root, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile reads the configuration at path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration. Unknown keys are rejected; an empty
// document yields Default.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}

func (c *Config) applyDefaults() {
	def := Default()
	if len(c.Packages) == 0 {
		c.Packages = def.Packages
	}
	if len(c.ConsumerBases) == 0 {
		c.ConsumerBases = def.ConsumerBases
	}
	if c.BuildMethod == "" {
		c.BuildMethod = def.BuildMethod
	}
	if c.Exclude == nil {
		c.Exclude = def.Exclude
	}
	if c.Format == "" {
		c.Format = def.Format
	}
}
