// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file for [Load].
const EnvironmentVariable = "UT_CONFIG"

// Config is the master configuration.
type Config struct {
	// Conductor configures the collector side of the handshake and the
	// capture.
	Conductor ConductorConfig `yaml:"conductor"`

	// Output configures where and how captures are written.
	Output OutputConfig `yaml:"output"`

	// Log configures the structured logger.
	Log LogConfig `yaml:"log"`
}

// ConductorConfig configures the conductor.
type ConductorConfig struct {
	// SocketName is the abstract socket name, without the leading NUL.
	// Default: ut-conductor
	SocketName string `yaml:"socket_name"`

	// PauseTimeout bounds how long one thread may take to stop.
	// Default: 2s
	PauseTimeout string `yaml:"pause_timeout"`

	// HandshakeTimeout bounds how long a new connection may take to
	// send its ring.
	// Default: 5s
	HandshakeTimeout string `yaml:"handshake_timeout"`

	// SettleDelay is how long to keep accepting descriptors after the
	// threads stop, so blocks announced just before the pause arrive.
	// Default: 20ms
	SettleDelay string `yaml:"settle_delay"`

	// Resume detaches and resumes threads after the capture instead of
	// leaving that to the conductor's exit.
	// Default: false
	Resume bool `yaml:"resume"`
}

// OutputConfig configures capture output.
type OutputConfig struct {
	// Path is the capture file; "-" writes to standard output.
	// Default: -
	Path string `yaml:"path"`

	// Format is json or cbor.
	// Default: json
	Format string `yaml:"format"`

	// Compression is none, zstd, lz4, or auto (from the path's
	// extension).
	// Default: auto
	Compression string `yaml:"compression"`

	// Indent pretty-prints JSON output.
	Indent bool `yaml:"indent"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	// Default: info
	Level string `yaml:"level"`

	// Format is auto, text, or json. Auto picks text on a terminal.
	// Default: auto
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given, and
// the base every file is merged over.
func Default() *Config {
	return &Config{
		Conductor: ConductorConfig{
			SocketName:       "ut-conductor",
			PauseTimeout:     "2s",
			HandshakeTimeout: "5s",
			SettleDelay:      "20ms",
		},
		Output: OutputConfig{
			Path:        "-",
			Format:      "json",
			Compression: "auto",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the file named by UT_CONFIG. It fails
// when the variable is unset.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of a ut.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over [Default].
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// output path.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME":           os.Getenv("HOME"),
		"UT_CAPTURE_DIR": os.Getenv("UT_CAPTURE_DIR"),
	}
	c.Output.Path = expandVars(c.Output.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Timeouts are the conductor's parsed durations.
type Timeouts struct {
	Pause     time.Duration
	Handshake time.Duration
	Settle    time.Duration
}

// Timeouts parses the conductor's duration fields.
func (c *ConductorConfig) Timeouts() (Timeouts, error) {
	var timeouts Timeouts
	var errs []error
	for _, field := range []struct {
		name  string
		value string
		into  *time.Duration
	}{
		{"conductor.pause_timeout", c.PauseTimeout, &timeouts.Pause},
		{"conductor.handshake_timeout", c.HandshakeTimeout, &timeouts.Handshake},
		{"conductor.settle_delay", c.SettleDelay, &timeouts.Settle},
	} {
		duration, err := time.ParseDuration(field.value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", field.name, err))
			continue
		}
		if duration < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", field.name, field.value))
			continue
		}
		*field.into = duration
	}
	return timeouts, errors.Join(errs...)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Conductor.SocketName == "" {
		errs = append(errs, fmt.Errorf("conductor.socket_name is required"))
	}
	if _, err := c.Conductor.Timeouts(); err != nil {
		errs = append(errs, err)
	}

	if c.Output.Path == "" {
		errs = append(errs, fmt.Errorf("output.path is required"))
	}
	formats := []string{"json", "cbor"}
	if !slices.Contains(formats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format must be one of: %v", formats))
	}
	compressions := []string{"auto", "none", "zstd", "lz4"}
	if !slices.Contains(compressions, c.Output.Compression) {
		errs = append(errs, fmt.Errorf("output.compression must be one of: %v", compressions))
	}

	levels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(levels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", levels))
	}
	logFormats := []string{"auto", "text", "json"}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
