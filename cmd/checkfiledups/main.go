package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	checkfiledups "github.com/mattkeenan/checkfiledups/pkg"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func defineOptions() *ParsedOptions {
	options := NewParsedOptions()

	options.DefineOption("threads", "t", OptionTypeInt, "", "Number of hash worker threads")
	options.DefineOption("no-cache", "n", OptionTypeBool, "false", "Hash every file and neither read nor write the cache")
	options.DefineOption("prune-cache", "p", OptionTypeBool, "false", "Remove cache entries for files that no longer exist, then exit")
	options.DefineOption("format", "f", OptionTypeString, "", "Report format (human|json|fdupes)")
	options.DefineOption("config", "c", OptionTypeString, checkfiledups.DefaultConfigFile, "Configuration file")
	options.DefineOption("init-config", "", OptionTypeBool, "false", "Write a default configuration file and exit")
	options.DefineOption("cache-file", "", OptionTypeString, "", "Hash cache file")
	options.DefineOption("base-path", "", OptionTypeString, "", "Directory cache keys are relative to")
	options.DefineOption("skip", "s", OptionTypeString, "", "Comma-separated names or path fragments to skip")
	options.DefineOption("min-size", "", OptionTypeString, "", "Ignore files smaller than this (e.g. 4K, 1M)")
	options.DefineOption("log-file", "", OptionTypeString, "", "Also append log output to this file")
	options.DefineOption("verbose", "v", OptionTypeInt, "0", "Enable verbose output (can be repeated for more verbosity)")
	options.DefineOption("debug", "", OptionTypeString, "", "Comma-separated debug flags (scan,hash,cache,shutdown)")
	options.DefineOption("quiet", "q", OptionTypeBool, "false", "Suppress progress and informational output")
	options.DefineOption("help", "h", OptionTypeBool, "false", "Show help message")
	options.DefineOption("version", "", OptionTypeBool, "false", "Show version information")

	return options
}

func showHelp(w io.Writer, options *ParsedOptions) {
	fmt.Fprintf(w, "checkfiledups - find duplicate files by content hash\n\n")
	fmt.Fprintf(w, "Usage: checkfiledups [OPTIONS] [PATH]\n\n")
	fmt.Fprintf(w, "PATH defaults to the current directory.\n\n")
	fmt.Fprintf(w, "Options:\n")
	options.WriteUsage(w)
	fmt.Fprintf(w, "\nExit status:\n")
	fmt.Fprintf(w, "  %-4d success\n", checkfiledups.ExitOK)
	fmt.Fprintf(w, "  %-4d invalid arguments or scan root\n", checkfiledups.ExitFatal)
	fmt.Fprintf(w, "  %-4d report produced but the cache could not be saved\n", checkfiledups.ExitCacheSaveFailed)
	fmt.Fprintf(w, "  %-4d interrupted\n", checkfiledups.ExitInterrupted)
	fmt.Fprintf(w, "A report that cannot be written (for example a closed pipe) is logged as a\n")
	fmt.Fprintf(w, "warning; the cache is still saved and the status above is unchanged.\n")
}

// configOverrides translates explicitly set flags into config "key:value" overrides
func configOverrides(options *ParsedOptions) []string {
	var overrides []string
	if options.IsSet("threads") {
		overrides = append(overrides, "hash_workers:"+strconv.Itoa(options.GetInt("threads")))
	}
	flagKeys := []struct{ flag, key string }{
		{"format", "format"},
		{"cache-file", "cache_file"},
		{"base-path", "base_path"},
		{"min-size", "min_size"},
		{"debug", "debug"},
		{"log-file", "log_file"},
	}
	for _, fk := range flagKeys {
		if options.IsSet(fk.flag) {
			overrides = append(overrides, fk.key+":"+options.GetString(fk.flag))
		}
	}
	if options.IsSet("verbose") {
		overrides = append(overrides, "level:"+strconv.Itoa(options.GetInt("verbose")))
	}
	return overrides
}

// splitFlagList splits a comma-separated flag value, dropping blanks
func splitFlagList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(args []string, stdout, stderr io.Writer) int {
	options := defineOptions()
	if err := options.Parse(args); err != nil {
		fmt.Fprintf(stderr, "checkfiledups: %v\n", err)
		fmt.Fprintf(stderr, "Try 'checkfiledups --help' for more information.\n")
		return checkfiledups.ExitFatal
	}

	if options.GetBool("version") {
		fmt.Fprintf(stdout, "checkfiledups %s\n", getVersionString())
		return checkfiledups.ExitOK
	}
	if options.GetBool("help") {
		showHelp(stdout, options)
		return checkfiledups.ExitOK
	}

	positional := options.GetArgs()
	if len(positional) > 1 {
		fmt.Fprintf(stderr, "checkfiledups: expected at most one path, got %d\n", len(positional))
		return checkfiledups.ExitFatal
	}
	root := "."
	if len(positional) == 1 {
		root = positional[0]
	}

	configPath := options.GetString("config")
	if options.GetBool("init-config") {
		if err := checkfiledups.WriteDefaultConfig(configPath); err != nil {
			fmt.Fprintf(stderr, "checkfiledups: %v\n", err)
			return checkfiledups.ExitFatal
		}
		fmt.Fprintf(stdout, "Wrote default configuration to %s\n", configPath)
		return checkfiledups.ExitOK
	}

	cfg, err := checkfiledups.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "checkfiledups: %v\n", err)
		return checkfiledups.ExitFatal
	}
	if err := cfg.ApplyOverrides(configOverrides(options)); err != nil {
		fmt.Fprintf(stderr, "checkfiledups: %v\n", err)
		return checkfiledups.ExitFatal
	}

	opts, err := cfg.Options(root)
	if err != nil {
		fmt.Fprintf(stderr, "checkfiledups: %v\n", err)
		return checkfiledups.ExitFatal
	}
	if options.IsSet("skip") {
		opts.SkipRules = append(opts.SkipRules, splitFlagList(options.GetString("skip"))...)
	}
	if options.GetBool("no-cache") {
		opts.CacheEnabled = false
	}

	verbose := cfg.GetVerboseConfig()
	checkfiledups.SetLogOutput(stderr)
	checkfiledups.SetVerboseLevel(verbose.Level)
	checkfiledups.InitDebugFlags(verbose.Debug)

	quiet := options.GetBool("quiet")
	opts.ShowProgress = !quiet
	if quiet {
		checkfiledups.Logger().SetLevel(logrus.WarnLevel)
	}

	if verbose.LogFile != "" {
		logFile, err := checkfiledups.OpenLogFile(verbose.LogFile)
		if err != nil {
			fmt.Fprintf(stderr, "checkfiledups: %v\n", err)
			return checkfiledups.ExitFatal
		}
		defer logFile.Close()
		opts.Exclude = append(opts.Exclude, verbose.LogFile)
		checkfiledups.VerboseLog(1, "Logging to %s", verbose.LogFile)
	}

	mode := checkfiledups.ModeScan
	switch {
	case options.GetBool("prune-cache"):
		mode = checkfiledups.ModePruneOnly
	case !opts.CacheEnabled:
		mode = checkfiledups.ModeNoCache
	}

	checkfiledups.Logger().WithFields(logrus.Fields{
		"path":    root,
		"threads": opts.Workers,
		"mode":    mode.String(),
	}).Info("Starting checkfiledups")

	scanner, err := checkfiledups.NewScanner(opts, checkfiledups.NewLogSink())
	if err != nil {
		fmt.Fprintf(stderr, "checkfiledups: %v\n", err)
		return checkfiledups.ExitFatal
	}

	coord := checkfiledups.NewShutdownCoordinator()
	stopSignals := setupSignalHandler(coord)
	defer stopSignals()

	return scanner.Execute(mode, coord, stdout)
}
