// Package config loads settings for the console and the server: built-in
// defaults, then an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/liamcoop/tablerules/internal/logger"
)

type Config struct {
	Console Console `yaml:"console"`
	Server  Server  `yaml:"server"`
	Log     Log     `yaml:"log"`
}

type Console struct {
	CSV    string `yaml:"csv"`
	Rules  string `yaml:"rules"`
	Format string `yaml:"format"`
	Comma  string `yaml:"comma"`
}

type Server struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	HistoryPath string `yaml:"history_path"`
}

type Log struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	OTEL        bool   `yaml:"otel"`
	ServiceName string `yaml:"service_name"`
	SampleRate  int    `yaml:"sample_rate"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Console: Console{
			CSV:    "examples/example.csv",
			Rules:  "examples/taxes-rules.csv",
			Format: "text",
			Comma:  ";",
		},
		Server: Server{
			Port: "8080",
		},
		Log: Log{
			Level:       "INFO",
			Format:      "json",
			ServiceName: "tablerules",
			SampleRate:  1,
		},
	}
}

// Load applies the YAML file at path (skipped when path is empty) and the
// environment on top of the defaults.
func Load(fs afero.Fs, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	str("PORT", &c.Server.Port)
	str("DATABASE_URL", &c.Server.DatabaseURL)
	str("HISTORY_PATH", &c.Server.HistoryPath)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("OTEL_SERVICE_NAME", &c.Log.ServiceName)

	if v, ok := lookup("OTEL_ENABLED"); ok && v != "" {
		c.Log.OTEL = strings.EqualFold(v, "true")
	}
	if v, ok := lookup("ERROR_SAMPLE_RATE"); ok && v != "" {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ERROR_SAMPLE_RATE: %w", err)
		}
		c.Log.SampleRate = rate
	}
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Server.Port)
	}
	if _, err := c.Console.CommaRune(); err != nil {
		return err
	}
	if c.Log.SampleRate < 1 {
		return errors.New("log sample rate must be at least 1")
	}
	return nil
}

// CommaRune returns the single-character input separator.
func (c Console) CommaRune() (rune, error) {
	if c.Comma == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(c.Comma)
	if c.Comma == "" || size != len(c.Comma) || r == '"' || r == '\n' || r == '\r' {
		return 0, fmt.Errorf("separator must be a single character other than a quote or newline, got %q", c.Comma)
	}
	return r, nil
}

// LoggerOptions maps the log section onto logger.Setup.
func (c *Config) LoggerOptions() logger.Options {
	return logger.Options{
		Level:       c.Log.Level,
		Format:      c.Log.Format,
		OTEL:        c.Log.OTEL,
		ServiceName: c.Log.ServiceName,
		SampleRate:  c.Log.SampleRate,
	}
}

// Addr is the server listen address.
func (s Server) Addr() string {
	return ":" + s.Port
}
