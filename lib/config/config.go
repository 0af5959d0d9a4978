// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/mavlink-bridge/bridge"
	"github.com/bureau-foundation/mavlink-bridge/overlay"
)

// EnvironmentVariable names the configuration file for [Load].
const EnvironmentVariable = "MAVLINK_BRIDGE_CONFIG"

// Config is the whole configuration file.
type Config struct {
	// Overlay configures the overlay session the bridge joins.
	Overlay OverlayConfig `yaml:"overlay" json:"overlay"`

	// Admin configures the HTTP admin interface.
	Admin AdminConfig `yaml:"admin" json:"admin"`

	// Logging configures the root logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// MAVLink is the bridge core's configuration.
	MAVLink bridge.Config `yaml:"mavlink" json:"mavlink"`
}

// OverlayConfig configures the overlay peer session.
type OverlayConfig struct {
	// ID is the session identity in lowercase hex. Empty picks a
	// random one at startup.
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// Mode is "peer" or "client".
	Mode string `yaml:"mode" json:"mode"`

	// Listen and Connect are locators: "tcp/host:port" or "host:port".
	Listen  []string `yaml:"listen,omitempty" json:"listen,omitempty"`
	Connect []string `yaml:"connect,omitempty" json:"connect,omitempty"`

	// Compression is "none", "lz4", or "zstd".
	Compression string `yaml:"compression" json:"compression"`

	// SharedKey encrypts every peer link when set. Usually written as
	// ${VAR} so the key stays out of the file.
	SharedKey string `yaml:"shared_key,omitempty" json:"shared_key,omitempty"`
}

// AdminConfig configures the HTTP admin interface.
type AdminConfig struct {
	// Listen is the TCP listen address. Empty disables the interface.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" json:"level"`

	// Format is auto, text, or json. Auto picks text when stderr is a
	// terminal and JSON otherwise.
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used as a base before loading a
// file.
func Default() *Config {
	return &Config{
		Overlay: OverlayConfig{
			Mode:        string(overlay.ModePeer),
			Compression: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
		MAVLink: bridge.DefaultConfig(),
	}
}

// Load loads the file named by MAVLINK_BRIDGE_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your configuration file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads and validates the file at path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// loadFile decodes a single file over the current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch extension := strings.ToLower(filepath.Ext(path)); extension {
	case ".yaml", ".yml":
		return c.decodeYAML(data)
	case ".json", ".jsonc", ".json5":
		return c.decodeJSON(data)
	default:
		return fmt.Errorf("unsupported configuration file extension %q (want .yaml, .yml, .json, .jsonc, or .json5)", extension)
	}
}

func (c *Config) decodeYAML(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		// An empty file decodes to nothing and keeps every default.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func (c *Config) decodeJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	return decoder.Decode(c)
}

// expandVariables expands ${VAR} and ${VAR:-default} in address
// fields.
func (c *Config) expandVariables() {
	for index := range c.MAVLink.Endpoints {
		c.MAVLink.Endpoints[index].Endpoint = expandVars(c.MAVLink.Endpoints[index].Endpoint)
	}
	for index := range c.Overlay.Listen {
		c.Overlay.Listen[index] = expandVars(c.Overlay.Listen[index])
	}
	for index := range c.Overlay.Connect {
		c.Overlay.Connect[index] = expandVars(c.Overlay.Connect[index])
	}
	c.Overlay.SharedKey = expandVars(c.Overlay.SharedKey)
	c.Admin.Listen = expandVars(c.Admin.Listen)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Overlay.ID != "" {
		if err := overlay.ValidateSessionID(c.Overlay.ID); err != nil {
			errs = append(errs, fmt.Errorf("overlay.id: %w", err))
		}
	}
	mode, err := overlay.ParseMode(c.Overlay.Mode)
	if err != nil {
		errs = append(errs, fmt.Errorf("overlay.mode: %w", err))
	}
	if mode == overlay.ModeClient && len(c.Overlay.Listen) > 0 {
		errs = append(errs, errors.New("overlay.listen: client mode cannot listen"))
	}
	for _, locator := range append(append([]string(nil), c.Overlay.Listen...), c.Overlay.Connect...) {
		if _, err := overlay.ParseLocator(locator); err != nil {
			errs = append(errs, fmt.Errorf("overlay: %w", err))
		}
	}
	if _, err := overlay.ParseCompression(c.Overlay.Compression); err != nil {
		errs = append(errs, fmt.Errorf("overlay.compression: %w", err))
	}
	if err := overlay.ValidateSharedKey([]byte(c.Overlay.SharedKey)); err != nil {
		errs = append(errs, fmt.Errorf("overlay.shared_key: %w", err))
	}

	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "", "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q (want auto, text, or json)", c.Logging.Format))
	}

	if err := c.MAVLink.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("mavlink: %w", err))
	}

	return errors.Join(errs...)
}

// PeerConfig returns the overlay settings as an overlay.PeerConfig.
// Call only on a validated Config.
func (c *Config) PeerConfig(logger *slog.Logger) overlay.PeerConfig {
	mode, _ := overlay.ParseMode(c.Overlay.Mode)
	compression, _ := overlay.ParseCompression(c.Overlay.Compression)
	return overlay.PeerConfig{
		ID:          c.Overlay.ID,
		Mode:        mode,
		Listen:      c.Overlay.Listen,
		Connect:     c.Overlay.Connect,
		Compression: compression,
		SharedKey:   []byte(c.Overlay.SharedKey),
		Logger:      logger,
	}
}

// ParseLevel parses a log level name.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", name)
	}
}

// ReadSharedKeyFile reads an overlay shared key from path. Surrounding
// whitespace, including a trailing newline, is not part of the key.
func ReadSharedKeyFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading shared key: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if err := overlay.ValidateSharedKey([]byte(key)); err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return key, nil
}
