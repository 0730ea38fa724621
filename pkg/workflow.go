package checkfiledups

import (
	"errors"
	"io"
)

// Mode selects what a run does
type Mode int

const (
	ModeScan      Mode = iota // Scan with the cache loaded and saved
	ModeNoCache               // Scan, hashing every file, without reading or writing the cache
	ModePruneOnly             // Load, prune and save the cache without scanning
)

func (m Mode) String() string {
	switch m {
	case ModeScan:
		return "scan"
	case ModeNoCache:
		return "no-cache"
	case ModePruneOnly:
		return "prune-only"
	default:
		return "unknown"
	}
}

// Execute runs mode to completion and returns the process exit code. The
// coordinator's flush is bound to SaveCache, so the cache is persisted exactly
// once whether the run completes or is interrupted. The report is written to
// out before the cache is saved.
func (s *Scanner) Execute(mode Mode, coord *ShutdownCoordinator, out io.Writer) int {
	defer VerboseEnter()()

	switch mode {
	case ModeNoCache:
		s.opts.CacheEnabled = false
		VerboseLog(1, "Hash cache disabled, computing all hashes fresh")
	case ModePruneOnly:
		if !s.opts.CacheEnabled {
			logger.Warn("Cache pruning requested with the cache disabled, nothing to do")
			return coord.Finish()
		}
	}

	if mode != ModePruneOnly {
		if err := ValidateRoot(s.fs, s.opts.RootPath); err != nil {
			logger.WithError(err).Error("Cannot scan")
			return ExitFatal
		}
	}

	s.LoadCache()
	coord.SetFlushFunc(s.SaveCache)

	if mode == ModePruneOnly {
		s.PruneCache()
		return coord.Finish()
	}

	result, err := s.Scan(coord.Done())
	switch {
	case errors.Is(err, ErrInterrupted):
		logger.Warn("Interrupted, saving hash cache before exit")
		return coord.Finish()
	case err != nil:
		logger.WithError(err).Error("Scan failed")
		coord.Finish()
		return ExitFatal
	}

	// A reader that went away (head, less) must not cost the hashing work, so
	// the cache is still saved and the exit status is left to Finish
	if err := RenderReport(out, result.Report, result.Root, s.opts.OutputFormat); err != nil {
		logger.WithError(err).WithField("format", s.opts.OutputFormat).Warn("Failed to write report")
	}
	logSummary(result)

	return coord.Finish()
}
