package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ligustah/mapmaker/internal/tool"
)

func TestDefaultConfig(t *testing.T) {
	t.Setenv("HOME", "/home/cartographer")
	cfg := Default()

	if cfg.Destination != "/home/cartographer/Desktop" {
		t.Errorf("expected destination on the desktop, got %s", cfg.Destination)
	}
	if cfg.WorkRoot != "." {
		t.Errorf("expected default work root '.', got %s", cfg.WorkRoot)
	}
	if cfg.Workers != 0 {
		t.Errorf("expected unbounded workers by default, got %d", cfg.Workers)
	}
	if cfg.Tools != tool.DefaultSet() {
		t.Errorf("expected default tools, got %+v", cfg.Tools)
	}
	if cfg.HTTP.Retry.Attempts != 5 {
		t.Errorf("expected default retry attempts 5, got %d", cfg.HTTP.Retry.Attempts)
	}
	if cfg.HTTP.Retry.Backoff != time.Second {
		t.Errorf("expected default retry backoff 1s, got %v", cfg.HTTP.Retry.Backoff)
	}
	if cfg.HTTP.Retry.MaxBackoff != 30*time.Second {
		t.Errorf("expected default retry max backoff 30s, got %v", cfg.HTTP.Retry.MaxBackoff)
	}
	if cfg.Upload.Bucket != "" {
		t.Errorf("expected uploads disabled by default, got %s", cfg.Upload.Bucket)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
work_root: /var/tmp/mapmaker
destination: /srv/maps
workers: 4
progress: true
tools:
  tile: /opt/tippecanoe/bin/tippecanoe
http:
  timeout: 10m
  retry:
    attempts: 10
    backoff: 2s
    max_backoff: 60s
upload:
  bucket: s3://maps
  prefix: tiles/
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.WorkRoot != "/var/tmp/mapmaker" {
		t.Errorf("expected work root /var/tmp/mapmaker, got %s", cfg.WorkRoot)
	}
	if cfg.Destination != "/srv/maps" {
		t.Errorf("expected destination /srv/maps, got %s", cfg.Destination)
	}
	if cfg.Workers != 4 {
		t.Errorf("expected workers 4, got %d", cfg.Workers)
	}
	if !cfg.Progress {
		t.Error("expected progress true")
	}
	if cfg.Tools.Tile != "/opt/tippecanoe/bin/tippecanoe" {
		t.Errorf("expected tile tool override, got %s", cfg.Tools.Tile)
	}
	if cfg.Tools.Convert != "ogr2ogr" {
		t.Errorf("expected unset tools to keep defaults, got %s", cfg.Tools.Convert)
	}
	if cfg.HTTP.Timeout != 10*time.Minute {
		t.Errorf("expected timeout 10m, got %v", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.Retry.Attempts != 10 {
		t.Errorf("expected retry attempts 10, got %d", cfg.HTTP.Retry.Attempts)
	}
	if cfg.HTTP.Retry.Backoff != 2*time.Second {
		t.Errorf("expected retry backoff 2s, got %v", cfg.HTTP.Retry.Backoff)
	}
	if cfg.HTTP.Retry.MaxBackoff != 60*time.Second {
		t.Errorf("expected retry max backoff 60s, got %v", cfg.HTTP.Retry.MaxBackoff)
	}
	if cfg.Upload.Bucket != "s3://maps" || cfg.Upload.Prefix != "tiles/" {
		t.Errorf("unexpected upload config %+v", cfg.Upload)
	}
}

func TestLoadYAMLBadDuration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("http:\n  timeout: soon\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MAPMAKER_WORK_ROOT", "/scratch")
	t.Setenv("MAPMAKER_DESTINATION", "/exports")
	t.Setenv("MAPMAKER_WORKERS", "8")
	t.Setenv("MAPMAKER_PROGRESS", "true")
	t.Setenv("MAPMAKER_TOOL_CLIP", "/usr/local/bin/mapcutter")
	t.Setenv("MAPMAKER_HTTP_TIMEOUT", "5m")
	t.Setenv("MAPMAKER_RETRY_ATTEMPTS", "3")
	t.Setenv("MAPMAKER_RETRY_BACKOFF", "500ms")
	t.Setenv("MAPMAKER_RETRY_MAX_BACKOFF", "10s")
	t.Setenv("MAPMAKER_UPLOAD_BUCKET", "gs://maps")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.WorkRoot != "/scratch" || cfg.Destination != "/exports" {
		t.Errorf("unexpected paths %s %s", cfg.WorkRoot, cfg.Destination)
	}
	if cfg.Workers != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Workers)
	}
	if !cfg.Progress {
		t.Error("expected progress true")
	}
	if cfg.Tools.Clip != "/usr/local/bin/mapcutter" {
		t.Errorf("expected clip tool override, got %s", cfg.Tools.Clip)
	}
	if cfg.HTTP.Timeout != 5*time.Minute {
		t.Errorf("expected timeout 5m, got %v", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.Retry.Attempts != 3 {
		t.Errorf("expected retry attempts 3, got %d", cfg.HTTP.Retry.Attempts)
	}
	if cfg.HTTP.Retry.Backoff != 500*time.Millisecond {
		t.Errorf("expected retry backoff 500ms, got %v", cfg.HTTP.Retry.Backoff)
	}
	if cfg.HTTP.Retry.MaxBackoff != 10*time.Second {
		t.Errorf("expected retry max backoff 10s, got %v", cfg.HTTP.Retry.MaxBackoff)
	}
	if cfg.Upload.Bucket != "gs://maps" {
		t.Errorf("expected upload bucket gs://maps, got %s", cfg.Upload.Bucket)
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	tests := []struct {
		key string
		val string
	}{
		{"MAPMAKER_WORKERS", "many"},
		{"MAPMAKER_RETRY_ATTEMPTS", "x"},
		{"MAPMAKER_RETRY_BACKOFF", "1 second"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			cfg := Default()
			if err := cfg.LoadFromEnv(); err == nil {
				t.Errorf("expected error for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			WorkRoot:    "/tmp",
			Destination: "/srv/maps",
			Tools:       tool.DefaultSet(),
			HTTP: HTTPConfig{
				Retry: RetryConfig{
					Attempts:   5,
					Backoff:    time.Second,
					MaxBackoff: 30 * time.Second,
				},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"bounded workers", func(c *Config) { c.Workers = 4 }, false},
		{"with upload", func(c *Config) { c.Upload = UploadConfig{Bucket: "mem://", Prefix: "x/"} }, false},
		{"missing work root", func(c *Config) { c.WorkRoot = "" }, true},
		{"missing destination", func(c *Config) { c.Destination = "" }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"unnamed tool", func(c *Config) { c.Tools.Unpack = "" }, true},
		{"negative timeout", func(c *Config) { c.HTTP.Timeout = -time.Second }, true},
		{"no attempts", func(c *Config) { c.HTTP.Retry.Attempts = 0 }, true},
		{"max below backoff", func(c *Config) { c.HTTP.Retry.MaxBackoff = time.Millisecond }, true},
		{"prefix without bucket", func(c *Config) { c.Upload.Prefix = "tiles/" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.Destination = "/srv/maps"
	base.Upload.Bucket = "s3://maps"

	override := Config{
		Workers: 2,
		Tools:   tool.Set{Decompress: "pigz"},
	}

	merged := base.Merge(override)

	if merged.Destination != "/srv/maps" {
		t.Errorf("expected Destination preserved, got %s", merged.Destination)
	}
	if merged.Upload.Bucket != "s3://maps" {
		t.Errorf("expected Bucket preserved, got %s", merged.Upload.Bucket)
	}
	if merged.Tools.Tile != "tippecanoe" {
		t.Errorf("expected Tile tool preserved, got %s", merged.Tools.Tile)
	}
	if merged.HTTP.Retry.Attempts != 5 {
		t.Errorf("expected retry attempts preserved, got %d", merged.HTTP.Retry.Attempts)
	}

	if merged.Workers != 2 {
		t.Errorf("expected Workers overridden to 2, got %d", merged.Workers)
	}
	if merged.Tools.Decompress != "pigz" {
		t.Errorf("expected Decompress overridden to pigz, got %s", merged.Tools.Decompress)
	}
}

func TestHTTPOptions(t *testing.T) {
	cfg := Default()
	opts := cfg.HTTPOptions()

	if opts.Timeout != cfg.HTTP.Timeout || opts.RetryAttempts != 5 {
		t.Errorf("unexpected options %+v", opts)
	}
	if opts.RetryBackoff != time.Second || opts.RetryMaxBackoff != 30*time.Second {
		t.Errorf("unexpected backoff %+v", opts)
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}
