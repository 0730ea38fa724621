package checkfiledups

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
)

func TestConfigDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "checkfiledups.ini")

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	// A missing file means defaults, and nothing is written
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		t.Error("LoadConfig should not create the config file")
	}

	all := config.GetAllConfig()
	if all.Performance.HashWorkers != 1 {
		t.Errorf("Expected 1 hash worker, got %d", all.Performance.HashWorkers)
	}
	if !all.Cache.Enabled || all.Cache.File != DefaultCacheFile {
		t.Errorf("Unexpected cache defaults: %+v", all.Cache)
	}
	if all.Output.Format != "human" {
		t.Errorf("Expected human format, got %s", all.Output.Format)
	}
	if len(all.Paths.SkipDirs) != 1 || all.Paths.SkipDirs[0] != ".git" {
		t.Errorf("Expected skip_dirs [.git], got %v", all.Paths.SkipDirs)
	}
	if all.Progress.Interval != DefaultProgressInterval {
		t.Errorf("Expected interval %s, got %s", DefaultProgressInterval, all.Progress.Interval)
	}
	if config.Path() != configPath {
		t.Errorf("Path() = %s", config.Path())
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "checkfiledups.ini")

	if err := WriteDefaultConfig(configPath); err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
	for _, want := range []string{"[paths]", "[cache]", "hash_workers", "compression_level", "min_size"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Default config missing %q", want)
		}
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if config.GetPerformanceConfig().HashWorkers != 1 {
		t.Error("Reloaded config lost the default hash workers")
	}
}

func TestConfigFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "checkfiledups.ini")
	content := `[paths]
base_path = /srv
skip_dirs = .git, node_modules , build/tmp

[cache]
enabled = false
compression_level = best

[performance]
hash_workers = 8

[output]
format = json

[progress]
interval = 2s

[scan]
min_size = 4K
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	opts, err := config.Options("/data")
	if err != nil {
		t.Fatalf("Options() error = %v", err)
	}
	if opts.BasePath != "/srv" || opts.RootPath != "/data" {
		t.Errorf("Unexpected paths: base %s root %s", opts.BasePath, opts.RootPath)
	}
	if len(opts.SkipRules) != 3 || opts.SkipRules[1] != "node_modules" {
		t.Errorf("Unexpected skip rules: %v", opts.SkipRules)
	}
	if opts.CacheEnabled {
		t.Error("Expected cache disabled")
	}
	if opts.Codec.Level != zstd.SpeedBestCompression {
		t.Errorf("Expected best compression, got %s", opts.Codec.Level)
	}
	if opts.Workers != 8 || opts.OutputFormat != "json" || opts.MinSize != 4096 {
		t.Errorf("Unexpected options: workers %d format %s min %d", opts.Workers, opts.OutputFormat, opts.MinSize)
	}
	if opts.ProgressInterval != 2*time.Second {
		t.Errorf("Expected 2s interval, got %s", opts.ProgressInterval)
	}
	// Missing [verbose] section falls back to the defaults
	if config.GetVerboseConfig().LogFile != DefaultLogFile {
		t.Errorf("Expected default log file")
	}
}

func TestConfigMalformedFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "checkfiledups.ini")
	if err := os.WriteFile(configPath, []byte("[paths\nbase_path = x\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(configPath); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestApplyOverrides(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "none.ini"))
	if err != nil {
		t.Fatal(err)
	}

	err = config.ApplyOverrides([]string{
		"hash_workers:4",
		"format:fdupes",
		"debug:scan,hash",
		"cache:false",
		"cache_file: /tmp/x.zst",
		"min_size:1M",
		"log_file:",
	})
	if err != nil {
		t.Fatalf("ApplyOverrides() error = %v", err)
	}

	all := config.GetAllConfig()
	if all.Performance.HashWorkers != 4 {
		t.Errorf("hash_workers override not applied: %d", all.Performance.HashWorkers)
	}
	if all.Output.Format != "fdupes" {
		t.Errorf("format override not applied: %s", all.Output.Format)
	}
	if all.Verbose.Debug != "scan,hash" {
		t.Errorf("debug override not applied: %s", all.Verbose.Debug)
	}
	if all.Cache.Enabled || all.Cache.File != "/tmp/x.zst" {
		t.Errorf("cache overrides not applied: %+v", all.Cache)
	}
	if all.Scan.MinSize != "1M" {
		t.Errorf("min_size override not applied: %s", all.Scan.MinSize)
	}
	if all.Verbose.LogFile != "" {
		t.Errorf("empty log_file override should disable the log file, got %q", all.Verbose.LogFile)
	}
}

func TestApplyOverridesInvalid(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "none.ini"))
	if err != nil {
		t.Fatal(err)
	}

	for _, override := range []string{"hash_workers", "nonsense:1"} {
		if err := config.ApplyOverrides([]string{override}); err == nil {
			t.Errorf("Expected error for override %q", override)
		}
	}
}

func TestOptionsRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name     string
		override string
	}{
		{"zero workers", "hash_workers:0"},
		{"too many workers", "hash_workers:65"},
		{"bad format", "format:xml"},
		{"bad level", "level:9"},
		{"unknown debug flag", "debug:scan,bogus"},
		{"bad compression", "compression_level:extreme"},
		{"bad min size", "min_size:lots"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfig(filepath.Join(t.TempDir(), "none.ini"))
			if err != nil {
				t.Fatal(err)
			}
			if err := config.ApplyOverrides([]string{tt.override}); err != nil {
				t.Fatalf("ApplyOverrides() error = %v", err)
			}
			if _, err := config.Options("."); err == nil {
				t.Errorf("Expected Options() to reject %s", tt.override)
			}
		})
	}
}

func TestValidateDebugFlags(t *testing.T) {
	for _, ok := range []string{"", "scan", "scan,hash,cache,shutdown", "cache:false", "SCAN"} {
		if err := ValidateDebugFlags(ok); err != nil {
			t.Errorf("ValidateDebugFlags(%q) = %v", ok, err)
		}
	}
	if err := ValidateDebugFlags("index"); err == nil {
		t.Error("Expected error for unknown flag")
	}
}

func TestParseCompressionLevel(t *testing.T) {
	tests := map[string]zstd.EncoderLevel{
		"":        zstd.SpeedDefault,
		"fastest": zstd.SpeedFastest,
		"default": zstd.SpeedDefault,
		"better":  zstd.SpeedBetterCompression,
		"best":    zstd.SpeedBestCompression,
	}
	for name, expected := range tests {
		level, err := ParseCompressionLevel(name)
		if err != nil || level != expected {
			t.Errorf("ParseCompressionLevel(%q) = %v, %v", name, level, err)
		}
	}
}

func TestOptionsNormalise(t *testing.T) {
	opts := DefaultOptions("")
	opts.Exclude = []string{"log.txt"}
	if err := opts.Normalise(); err != nil {
		t.Fatalf("Normalise() error = %v", err)
	}

	for _, p := range []string{opts.RootPath, opts.BasePath, opts.CacheFile, opts.Exclude[0]} {
		if !filepath.IsAbs(p) {
			t.Errorf("Expected absolute path, got %s", p)
		}
	}

	opts = DefaultOptions(".")
	opts.CacheFile = ""
	if err := opts.Normalise(); err == nil {
		t.Error("Expected error for cache enabled with no file")
	}

	opts = DefaultOptions(".")
	opts.OutputFormat = ""
	if err := opts.Normalise(); err != nil || opts.OutputFormat != "human" {
		t.Errorf("Empty format should default to human, got %q, %v", opts.OutputFormat, err)
	}
}
