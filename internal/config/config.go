package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	mmhttp "github.com/ligustah/mapmaker/internal/http"
	"github.com/ligustah/mapmaker/internal/tool"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "MAPMAKER_"

// Config defines configuration for the mapmaker CLI.
type Config struct {
	WorkRoot    string       `yaml:"work_root"`
	Destination string       `yaml:"destination"`
	Workers     int          `yaml:"workers"`
	Progress    bool         `yaml:"progress"`
	Tools       tool.Set     `yaml:"tools"`
	HTTP        HTTPConfig   `yaml:"http"`
	Upload      UploadConfig `yaml:"upload"`
}

// HTTPConfig configures the source download.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
	Retry   RetryConfig   `yaml:"retry"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// UploadConfig configures the optional deployment upload.
// Uploading is disabled while Bucket is empty.
type UploadConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		WorkRoot:    ".",
		Destination: defaultDestination(),
		Tools:       tool.DefaultSet(),
		HTTP: HTTPConfig{
			Timeout: 30 * time.Minute,
			Retry: RetryConfig{
				Attempts:   5,
				Backoff:    time.Second,
				MaxBackoff: 30 * time.Second,
			},
		},
	}
}

func defaultDestination() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Desktop")
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	WorkRoot    string       `yaml:"work_root"`
	Destination string       `yaml:"destination"`
	Workers     int          `yaml:"workers"`
	Progress    bool         `yaml:"progress"`
	Tools       tool.Set     `yaml:"tools"`
	HTTP        yamlHTTP     `yaml:"http"`
	Upload      UploadConfig `yaml:"upload"`
}

type yamlHTTP struct {
	Timeout string    `yaml:"timeout"`
	Retry   yamlRetry `yaml:"retry"`
}

type yamlRetry struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file on top of Default.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	override := Config{
		WorkRoot:    yc.WorkRoot,
		Destination: yc.Destination,
		Workers:     yc.Workers,
		Progress:    yc.Progress,
		Tools:       yc.Tools,
		Upload:      yc.Upload,
	}
	override.HTTP.Retry.Attempts = yc.HTTP.Retry.Attempts

	durations := []struct {
		key string
		val string
		dst *time.Duration
	}{
		{"http.timeout", yc.HTTP.Timeout, &override.HTTP.Timeout},
		{"http.retry.backoff", yc.HTTP.Retry.Backoff, &override.HTTP.Retry.Backoff},
		{"http.retry.max_backoff", yc.HTTP.Retry.MaxBackoff, &override.HTTP.Retry.MaxBackoff},
	}
	for _, d := range durations {
		if d.val == "" {
			continue
		}
		v, err := time.ParseDuration(d.val)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	return Default().Merge(override), nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the MAPMAKER_ prefix.
func (c *Config) LoadFromEnv() error {
	strs := map[string]*string{
		"WORK_ROOT":       &c.WorkRoot,
		"DESTINATION":     &c.Destination,
		"TOOL_CLIP":       &c.Tools.Clip,
		"TOOL_CONVERT":    &c.Tools.Convert,
		"TOOL_TILE":       &c.Tools.Tile,
		"TOOL_UNPACK":     &c.Tools.Unpack,
		"TOOL_DECOMPRESS": &c.Tools.Decompress,
		"UPLOAD_BUCKET":   &c.Upload.Bucket,
		"UPLOAD_PREFIX":   &c.Upload.Prefix,
	}
	for key, dst := range strs {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"WORKERS":        &c.Workers,
		"RETRY_ATTEMPTS": &c.HTTP.Retry.Attempts,
	}
	for key, dst := range ints {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}

	durations := map[string]*time.Duration{
		"HTTP_TIMEOUT":      &c.HTTP.Timeout,
		"RETRY_BACKOFF":     &c.HTTP.Retry.Backoff,
		"RETRY_MAX_BACKOFF": &c.HTTP.Retry.MaxBackoff,
	}
	for key, dst := range durations {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s%s: %w", EnvPrefix, key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv(EnvPrefix + "PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.WorkRoot == "" {
		return errors.New("config: work_root is required")
	}
	if c.Destination == "" {
		return errors.New("config: destination is required")
	}
	if c.Workers < 0 {
		return errors.New("config: workers must not be negative")
	}
	for _, name := range c.Tools.Names() {
		if name == "" {
			return errors.New("config: every tool must be named")
		}
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("config: http.timeout must not be negative")
	}
	if c.HTTP.Retry.Attempts < 1 {
		return errors.New("config: http.retry.attempts must be at least 1")
	}
	if c.HTTP.Retry.MaxBackoff < c.HTTP.Retry.Backoff {
		return errors.New("config: http.retry.max_backoff must not be below backoff")
	}
	if c.Upload.Prefix != "" && c.Upload.Bucket == "" {
		return errors.New("config: upload.prefix requires upload.bucket")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.WorkRoot != "" {
		c.WorkRoot = override.WorkRoot
	}
	if override.Destination != "" {
		c.Destination = override.Destination
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	c.Tools = mergeTools(c.Tools, override.Tools)
	if override.HTTP.Timeout != 0 {
		c.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.Retry.Attempts != 0 {
		c.HTTP.Retry.Attempts = override.HTTP.Retry.Attempts
	}
	if override.HTTP.Retry.Backoff != 0 {
		c.HTTP.Retry.Backoff = override.HTTP.Retry.Backoff
	}
	if override.HTTP.Retry.MaxBackoff != 0 {
		c.HTTP.Retry.MaxBackoff = override.HTTP.Retry.MaxBackoff
	}
	if override.Upload.Bucket != "" {
		c.Upload.Bucket = override.Upload.Bucket
	}
	if override.Upload.Prefix != "" {
		c.Upload.Prefix = override.Upload.Prefix
	}
	return c
}

func mergeTools(base, override tool.Set) tool.Set {
	if override.Clip != "" {
		base.Clip = override.Clip
	}
	if override.Convert != "" {
		base.Convert = override.Convert
	}
	if override.Tile != "" {
		base.Tile = override.Tile
	}
	if override.Unpack != "" {
		base.Unpack = override.Unpack
	}
	if override.Decompress != "" {
		base.Decompress = override.Decompress
	}
	return base
}

// HTTPOptions returns the client options for the source download.
func (c Config) HTTPOptions() mmhttp.Options {
	return mmhttp.Options{
		Timeout:         c.HTTP.Timeout,
		RetryAttempts:   c.HTTP.Retry.Attempts,
		RetryBackoff:    c.HTTP.Retry.Backoff,
		RetryMaxBackoff: c.HTTP.Retry.MaxBackoff,
	}
}
