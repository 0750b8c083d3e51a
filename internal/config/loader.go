package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if !cfg.Server.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("server.transport %q is invalid; valid values: stdio, streamable-http", cfg.Server.Transport))
	}
	if cfg.Server.Transport == TransportStreamableHTTP && cfg.Server.Listen == "" {
		errs = append(errs, fmt.Errorf("server.listen is required for the streamable-http transport"))
	}
	if cfg.Dynamic.Enabled && cfg.Database.PostgresDSN == "" {
		errs = append(errs, fmt.Errorf("dynamic.enabled requires database.postgres_dsn"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
