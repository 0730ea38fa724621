package checkfiledups

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// NormalisePath returns the cache key for path: relative to basePath when path lies
// beneath it, otherwise the cleaned path itself, always with forward slashes
func NormalisePath(basePath, path string) string {
	cleanPath := filepath.Clean(path)
	if basePath != "" {
		if rel, err := filepath.Rel(filepath.Clean(basePath), cleanPath); err == nil &&
			rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(cleanPath)
}

// ResolveCacheKey turns a cache key back into a filesystem path
func ResolveCacheKey(basePath, key string) string {
	p := filepath.FromSlash(key)
	if filepath.IsAbs(p) || basePath == "" {
		return p
	}
	return filepath.Join(basePath, p)
}

// ParseHumanSize parses human-readable size strings (e.g., "2M", "512k", "1G")
func ParseHumanSize(sizeStr string) (uint64, error) {
	sizeStr = strings.ToUpper(strings.TrimSpace(sizeStr))
	if sizeStr == "" {
		return 0, fmt.Errorf("empty size string")
	}

	numEnd := len(sizeStr)
	for i, char := range sizeStr {
		if !(char >= '0' && char <= '9' || char == '.') {
			numEnd = i
			break
		}
	}
	numPart, suffix := sizeStr[:numEnd], strings.TrimSpace(sizeStr[numEnd:])
	if numPart == "" {
		return 0, fmt.Errorf("no numeric part in size string: %s", sizeStr)
	}

	num, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric part in size string %s: %w", sizeStr, err)
	}

	var multiplier float64
	switch suffix {
	case "", "B":
		multiplier = 1
	case "K", "KB":
		multiplier = 1 << 10
	case "M", "MB":
		multiplier = 1 << 20
	case "G", "GB":
		multiplier = 1 << 30
	case "T", "TB":
		multiplier = 1 << 40
	default:
		return 0, fmt.Errorf("unknown size suffix: %s", suffix)
	}

	return uint64(num * multiplier), nil
}

// FormatElapsed renders a duration as "s.mmm seconds", "m:ss.mmm (m:ss.mmm)" or "h:mm:ss.mmm (h:mm:ss.mmm)"
func FormatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	millis := int64(d%time.Second) / int64(time.Millisecond)
	switch {
	case secs >= 3600:
		return fmt.Sprintf("%d:%02d:%02d.%03d (h:mm:ss.mmm)", secs/3600, (secs%3600)/60, secs%60, millis)
	case secs >= 60:
		return fmt.Sprintf("%d:%02d.%03d (m:ss.mmm)", secs/60, secs%60, millis)
	default:
		return fmt.Sprintf("%d.%03d seconds", secs, millis)
	}
}

// generateTempFileName returns a sibling of target named "<base>-<pid>-<nanos>.tmp"
func generateTempFileName(target string) string {
	return filepath.Join(filepath.Dir(target),
		fmt.Sprintf("%s-%d-%d.tmp", filepath.Base(target), os.Getpid(), time.Now().UnixNano()))
}

// extractPidFromTempFileName extracts the PID from names produced by generateTempFileName
func extractPidFromTempFileName(target, name string) int {
	prefix := filepath.Base(target) + "-"
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".tmp") {
		return 0
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".tmp"), "-")
	if len(parts) != 2 {
		return 0
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0
	}
	return pid
}

// isProcessRunning checks if a process with the given PID is currently running
func isProcessRunning(pid int) bool {
	// kill(pid, 0) probes for existence without delivering a signal
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}

	if errno, ok := err.(syscall.Errno); ok {
		if errno == syscall.ESRCH {
			return false
		}
		// EPERM: exists, but owned by someone else
		if errno == syscall.EPERM {
			return true
		}
	}

	return false
}
