// Package config loads the server-side configuration for a reef-based
// bundle server: transport listen addresses, the HTTP prefix and context
// header mapping, the mesh wire defaults, and the ambient log settings.
// Grounded on the teacher pack's own YAML config loader
// (internal/config/config.go in theRebelliousNerd-codenerd): a defaults-
// first struct, gopkg.in/yaml.v3 unmarshaling over it, environment
// overrides applied afterward, and a Validate pass.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	HTTP HTTP `yaml:"http"`
	Mesh Mesh `yaml:"mesh"`
	Log  Log  `yaml:"log"`
}

// HTTP configures the HTTP/WSGI-style transport.
type HTTP struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr"`
	// Prefix is the routing prefix every mounted bundle is rendered under.
	Prefix string `yaml:"prefix"`
	// ContextHeaderPrefix maps header name <-> pipeline context key, per
	// spec §6; empty disables context header propagation.
	ContextHeaderPrefix string `yaml:"context_header_prefix"`
}

// Mesh configures the length-framed mesh/1 transport.
type Mesh struct {
	// Addr is the listen address, e.g. ":8090". Empty disables the mesh
	// listener.
	Addr string `yaml:"addr"`
	// DefaultMimetype selects the wire codec the mesh server encodes
	// responses with; "json" or "msgpack".
	DefaultMimetype string `yaml:"default_mimetype"`
}

// Log configures the ambient slog-based logging described in
// internal/obslog.
type Log struct {
	// Mode is "auto", "dev", or "prod"; "auto" matches the root reef
	// package's own terminal-detection default.
	Mode string `yaml:"mode"`
	// Level is "debug", "info", "warn", or "error".
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		HTTP: HTTP{Addr: ":8080", Prefix: "/api"},
		Mesh: Mesh{Addr: ":8090", DefaultMimetype: "json"},
		Log:  Log{Mode: "auto", Level: "info"},
	}
}

// Load reads and parses the YAML file at path over Default(), so any field
// the file omits keeps its default. A missing file is not an error: Load
// returns the defaults, mirroring the teacher pack's own "config file not
// found, using defaults" Load behavior.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides lets REEF_HTTP_ADDR/REEF_MESH_ADDR override the listen
// addresses without editing the file, the same escape hatch the teacher
// pack's own config loader offers for its own settings.
func applyEnvOverrides(cfg *Config) {
	if addr := os.Getenv("REEF_HTTP_ADDR"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if addr := os.Getenv("REEF_MESH_ADDR"); addr != "" {
		cfg.Mesh.Addr = addr
	}
}

// Validate reports whether cfg is internally consistent.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" && c.Mesh.Addr == "" {
		return fmt.Errorf("config: at least one of http.addr or mesh.addr must be set")
	}
	switch c.Mesh.DefaultMimetype {
	case "", "json", "msgpack":
	default:
		return fmt.Errorf("config: mesh.default_mimetype must be json or msgpack, got %q", c.Mesh.DefaultMimetype)
	}
	switch c.Log.Mode {
	case "", "auto", "dev", "prod":
	default:
		return fmt.Errorf("config: log.mode must be auto, dev, or prod, got %q", c.Log.Mode)
	}
	return nil
}
