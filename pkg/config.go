package checkfiledups

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/afero"
)

// Config is the checkfiledups.ini file
type Config struct {
	configPath string
	ini        *ini.File
}

// PathsConfig holds the [paths] section
type PathsConfig struct {
	BasePath string   // Cache keys are relative to this directory
	SkipDirs []string // Skip rules, see SkipRules
	SkipFile string   // Optional file of additional skip rules, one per line
}

// CacheConfig holds the [cache] section
type CacheConfig struct {
	Enabled          bool
	File             string
	CompressionLevel string // zstd level name: fastest, default, better, best
}

// PerformanceConfig holds the [performance] section
type PerformanceConfig struct {
	HashWorkers        int // Number of concurrent hash workers (default: 1)
	EncoderConcurrency int // zstd encoder goroutines, 0 for GOMAXPROCS
}

// OutputConfig holds the [output] section
type OutputConfig struct {
	Format string // human, json or fdupes
}

// VerboseConfig holds the [verbose] section
type VerboseConfig struct {
	Level   int    // 0=quiet, 1=basic, 2=detailed, 3=trace
	Debug   string // Comma-separated debug flags
	LogFile string // Also log here; empty disables the log file
}

// ProgressConfig holds the [progress] section
type ProgressConfig struct {
	Interval time.Duration
}

// ScanConfig holds the [scan] section
type ScanConfig struct {
	MinSize string // Human size such as 1M; files below it are ignored
}

// AllConfig is every section of the file
type AllConfig struct {
	Paths       *PathsConfig
	Cache       *CacheConfig
	Performance *PerformanceConfig
	Output      *OutputConfig
	Verbose     *VerboseConfig
	Progress    *ProgressConfig
	Scan        *ScanConfig
}

// LoadConfig reads configPath. A missing file yields the defaults without
// creating it; a file that fails to parse is an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{configPath: configPath}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		VerboseLog(2, "No config file at %s, using defaults", configPath)
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.ini = iniFile
	VerboseLog(2, "Loaded config from %s", configPath)
	return cfg, nil
}

// Path returns the file the config was loaded from (or would be saved to)
func (c *Config) Path() string {
	return c.configPath
}

type defaultKey struct {
	section, key, value string
}

var configDefaults = []defaultKey{
	{"paths", "base_path", "."},
	{"paths", "skip_dirs", ".git"},
	{"paths", "skip_file", ""},
	{"cache", "enabled", "true"},
	{"cache", "file", DefaultCacheFile},
	{"cache", "compression_level", "default"},
	{"performance", "hash_workers", "1"},
	{"performance", "encoder_concurrency", "0"},
	{"output", "format", "human"},
	{"verbose", "level", "0"},
	{"verbose", "debug", ""},
	{"verbose", "log_file", DefaultLogFile},
	{"progress", "interval", DefaultProgressInterval.String()},
	{"scan", "min_size", "0"},
}

// setDefaults fills an empty file with every known key
func (c *Config) setDefaults() error {
	for _, d := range configDefaults {
		section, err := c.ini.NewSection(d.section)
		if err != nil {
			return fmt.Errorf("failed to create %s section: %w", d.section, err)
		}
		if _, err := section.NewKey(d.key, d.value); err != nil {
			return fmt.Errorf("failed to set default %s.%s: %w", d.section, d.key, err)
		}
	}
	return nil
}

// WriteDefaultConfig writes a config file holding the defaults to configPath
func WriteDefaultConfig(configPath string) error {
	cfg := &Config{configPath: configPath, ini: ini.Empty()}
	if err := cfg.setDefaults(); err != nil {
		return fmt.Errorf("failed to set default config: %w", err)
	}
	return cfg.Save()
}

// GetPathsConfig returns the [paths] section
func (c *Config) GetPathsConfig() *PathsConfig {
	pathsConfig := &PathsConfig{
		BasePath: ".", // fallback default
	}

	if c.ini.HasSection("paths") {
		section := c.ini.Section("paths")
		if section.HasKey("base_path") {
			if base := section.Key("base_path").String(); base != "" {
				pathsConfig.BasePath = base
			}
		}
		if section.HasKey("skip_dirs") {
			pathsConfig.SkipDirs = splitList(section.Key("skip_dirs").String())
		}
		if section.HasKey("skip_file") {
			pathsConfig.SkipFile = section.Key("skip_file").String()
		}
	}

	return pathsConfig
}

// GetCacheConfig returns the [cache] section
func (c *Config) GetCacheConfig() *CacheConfig {
	cacheConfig := &CacheConfig{
		Enabled:          true,
		File:             DefaultCacheFile,
		CompressionLevel: "default",
	}

	if c.ini.HasSection("cache") {
		section := c.ini.Section("cache")
		if section.HasKey("enabled") {
			if enabled, err := section.Key("enabled").Bool(); err == nil {
				cacheConfig.Enabled = enabled
			}
		}
		if section.HasKey("file") {
			if file := section.Key("file").String(); file != "" {
				cacheConfig.File = file
			}
		}
		if section.HasKey("compression_level") {
			if level := section.Key("compression_level").String(); level != "" {
				cacheConfig.CompressionLevel = level
			}
		}
	}

	return cacheConfig
}

// GetPerformanceConfig returns the [performance] section
func (c *Config) GetPerformanceConfig() *PerformanceConfig {
	performanceConfig := &PerformanceConfig{
		HashWorkers: DefaultHashWorkers,
	}

	if c.ini.HasSection("performance") {
		section := c.ini.Section("performance")
		if section.HasKey("hash_workers") {
			if workers, err := section.Key("hash_workers").Int(); err == nil {
				performanceConfig.HashWorkers = workers
			}
		}
		if section.HasKey("encoder_concurrency") {
			if n, err := section.Key("encoder_concurrency").Int(); err == nil {
				performanceConfig.EncoderConcurrency = n
			}
		}
	}

	return performanceConfig
}

// GetOutputConfig returns the [output] section
func (c *Config) GetOutputConfig() *OutputConfig {
	outputConfig := &OutputConfig{
		Format: "human",
	}

	if c.ini.HasSection("output") {
		section := c.ini.Section("output")
		if section.HasKey("format") {
			outputConfig.Format = section.Key("format").String()
		}
	}

	return outputConfig
}

// GetVerboseConfig returns the [verbose] section
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{
		LogFile: DefaultLogFile,
	}

	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				verboseConfig.Level = level
			}
		}
		if section.HasKey("debug") {
			verboseConfig.Debug = section.Key("debug").String()
		}
		if section.HasKey("log_file") {
			verboseConfig.LogFile = section.Key("log_file").String()
		}
	}

	return verboseConfig
}

// GetProgressConfig returns the [progress] section
func (c *Config) GetProgressConfig() *ProgressConfig {
	progressConfig := &ProgressConfig{
		Interval: DefaultProgressInterval,
	}

	if c.ini.HasSection("progress") {
		section := c.ini.Section("progress")
		if section.HasKey("interval") {
			if d, err := section.Key("interval").Duration(); err == nil && d > 0 {
				progressConfig.Interval = d
			}
		}
	}

	return progressConfig
}

// GetScanConfig returns the [scan] section
func (c *Config) GetScanConfig() *ScanConfig {
	scanConfig := &ScanConfig{
		MinSize: "0",
	}

	if c.ini.HasSection("scan") {
		section := c.ini.Section("scan")
		if section.HasKey("min_size") {
			if s := section.Key("min_size").String(); s != "" {
				scanConfig.MinSize = s
			}
		}
	}

	return scanConfig
}

// GetAllConfig returns all sections
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Paths:       c.GetPathsConfig(),
		Cache:       c.GetCacheConfig(),
		Performance: c.GetPerformanceConfig(),
		Output:      c.GetOutputConfig(),
		Verbose:     c.GetVerboseConfig(),
		Progress:    c.GetProgressConfig(),
		Scan:        c.GetScanConfig(),
	}
}

// Save writes the configuration to its path
func (c *Config) Save() error {
	return c.ini.SaveTo(c.configPath)
}

// overrideKeys maps override names to their section.key
var overrideKeys = map[string][2]string{
	"base_path":           {"paths", "base_path"},
	"skip_dirs":           {"paths", "skip_dirs"},
	"skip_file":           {"paths", "skip_file"},
	"cache":               {"cache", "enabled"},
	"cache_file":          {"cache", "file"},
	"compression_level":   {"cache", "compression_level"},
	"hash_workers":        {"performance", "hash_workers"},
	"encoder_concurrency": {"performance", "encoder_concurrency"},
	"format":              {"output", "format"},
	"level":               {"verbose", "level"},
	"debug":               {"verbose", "debug"},
	"log_file":            {"verbose", "log_file"},
	"interval":            {"progress", "interval"},
	"min_size":            {"scan", "min_size"},
}

// ApplyOverrides applies command-line overrides to the configuration.
// Accepts strings like "format:json", "hash_workers:8", "debug:scan,hash"
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		target, ok := overrideKeys[key]
		if !ok {
			return fmt.Errorf("unsupported override key '%s'", key)
		}
		c.ini.Section(target[0]).Key(target[1]).SetValue(value)
	}

	return nil
}

// Options builds scan options for root from the configuration
func (c *Config) Options(root string) (Options, error) {
	all := c.GetAllConfig()

	if err := ValidateHashWorkers(all.Performance.HashWorkers); err != nil {
		return Options{}, err
	}
	if err := ValidateOutputFormat(all.Output.Format); err != nil {
		return Options{}, err
	}
	if err := ValidateVerboseLevel(all.Verbose.Level); err != nil {
		return Options{}, err
	}
	if err := ValidateDebugFlags(all.Verbose.Debug); err != nil {
		return Options{}, err
	}
	level, err := ParseCompressionLevel(all.Cache.CompressionLevel)
	if err != nil {
		return Options{}, err
	}
	minSize, err := ParseHumanSize(all.Scan.MinSize)
	if err != nil {
		return Options{}, fmt.Errorf("invalid min_size: %w", err)
	}

	opts := DefaultOptions(root)
	opts.BasePath = all.Paths.BasePath
	opts.SkipRules = all.Paths.SkipDirs
	opts.SkipFile = all.Paths.SkipFile
	opts.CacheEnabled = all.Cache.Enabled
	opts.CacheFile = all.Cache.File
	opts.Codec = CacheCodec{Level: level, Concurrency: all.Performance.EncoderConcurrency}
	opts.Workers = all.Performance.HashWorkers
	opts.OutputFormat = strings.ToLower(all.Output.Format)
	opts.ProgressInterval = all.Progress.Interval
	opts.MinSize = minSize
	return opts, nil
}

// Options is everything a scan needs
type Options struct {
	RootPath     string
	BasePath     string
	Workers      int
	CacheEnabled bool
	CacheFile    string
	SkipRules    []string
	SkipFile     string
	MinSize      uint64
	Codec        CacheCodec
	OutputFormat string

	ShowProgress     bool
	ProgressInterval time.Duration

	// Exclude hides specific files from the scan, such as the log file
	Exclude []string

	// FS is the filesystem walked and hashed; nil means the OS filesystem.
	// The cache file itself is always read and written on the OS filesystem.
	FS afero.Fs
}

// DefaultOptions returns options for scanning root with a single worker and the cache enabled
func DefaultOptions(root string) Options {
	if root == "" {
		root = "."
	}
	return Options{
		RootPath:         root,
		BasePath:         ".",
		Workers:          DefaultHashWorkers,
		CacheEnabled:     true,
		CacheFile:        DefaultCacheFile,
		SkipRules:        nil,
		Codec:            DefaultCacheCodec(),
		OutputFormat:     "human",
		ProgressInterval: DefaultProgressInterval,
	}
}

// Normalise makes the root, base and cache paths absolute and validates the rest
func (o *Options) Normalise() error {
	if err := ValidateHashWorkers(o.Workers); err != nil {
		return err
	}
	if o.OutputFormat == "" {
		o.OutputFormat = "human"
	}
	if err := ValidateOutputFormat(o.OutputFormat); err != nil {
		return err
	}

	paths := []*string{&o.RootPath, &o.BasePath, &o.CacheFile}
	for i := range o.Exclude {
		paths = append(paths, &o.Exclude[i])
	}
	for _, p := range paths {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("failed to resolve path %s: %w", *p, err)
		}
		*p = abs
	}
	if o.CacheEnabled && o.CacheFile == "" {
		return fmt.Errorf("cache enabled but no cache file configured")
	}
	return nil
}

// ValidateOutputFormat validates that an output format is supported
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case "human", "json", "fdupes":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, fdupes)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}

// KnownDebugFlags lists the flags IsDebugEnabled is consulted with
var KnownDebugFlags = []string{"scan", "hash", "cache", "shutdown"}

// ValidateDebugFlags rejects flags nothing checks for
func ValidateDebugFlags(debug string) error {
	for _, flag := range splitList(debug) {
		flag, _, _ = strings.Cut(strings.ToLower(flag), ":")
		known := false
		for _, k := range KnownDebugFlags {
			if flag == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("unknown debug flag: %s (supported: %s)", flag, strings.Join(KnownDebugFlags, ", "))
		}
	}
	return nil
}

// ValidateHashWorkers validates that the hash worker count is reasonable
func ValidateHashWorkers(workers int) error {
	if workers < 1 {
		return fmt.Errorf("hash workers must be at least 1, got: %d", workers)
	}
	if workers > MaxHashWorkers {
		return fmt.Errorf("hash workers should not exceed %d, got: %d", MaxHashWorkers, workers)
	}
	return nil
}

// ParseCompressionLevel maps a zstd level name to its encoder level
func ParseCompressionLevel(name string) (zstd.EncoderLevel, error) {
	if name == "" {
		return zstd.SpeedDefault, nil
	}
	ok, level := zstd.EncoderLevelFromString(name)
	if !ok {
		return 0, fmt.Errorf("unsupported compression level: %s (supported: fastest, default, better, best)", name)
	}
	return level, nil
}

// splitList splits a comma-separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
