package checkfiledups

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	globalVerboseLevel int
	debugFlags         map[string]bool
	debugMutex         sync.RWMutex
)

var logger = newLogger(os.Stderr)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	return l
}

// Logger returns the package logger
func Logger() *logrus.Logger {
	return logger
}

// SetLogOutput redirects log output, used by the CLI for quiet mode and by tests
func SetLogOutput(w io.Writer) {
	logger.SetOutput(w)
}

// OpenLogFile keeps the current log output and also appends it to logFile.
// The returned file must be closed by the caller.
func OpenLogFile(logFile string) (*os.File, error) {
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFile, err)
	}
	logger.SetOutput(io.MultiWriter(logger.Out, f))
	return f, nil
}

// SetVerboseLevel sets the global verbose level (0=quiet, 1=basic, 2=detailed, 3=trace)
func SetVerboseLevel(level int) {
	globalVerboseLevel = level
	switch {
	case level >= 3:
		logger.SetLevel(logrus.TraceLevel)
	case level == 2:
		logger.SetLevel(logrus.DebugLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
}

// GetVerboseLevel returns the current verbose level
func GetVerboseLevel() int {
	return globalVerboseLevel
}

// VerboseEnter logs function entry at level 3+ and returns a defer function for exit logging
func VerboseEnter() func() {
	if globalVerboseLevel < 3 {
		return func() {}
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return func() {}
	}

	funcName := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(funcName, "."); idx != -1 {
		funcName = funcName[idx+1:]
	}

	logger.WithField("func", funcName).Trace("enter")
	return func() {
		logger.WithField("func", funcName).Trace("exit")
	}
}

// VerboseLog logs a message at the specified verbose level
func VerboseLog(level int, format string, args ...interface{}) {
	if globalVerboseLevel < level {
		return
	}
	format = strings.TrimSuffix(format, "\n")
	switch {
	case level >= 3:
		logger.Tracef(format, args...)
	case level == 2:
		logger.Debugf(format, args...)
	default:
		logger.Infof(format, args...)
	}
}

// SetDebugFlags sets the debug flags from a comma-separated string
// Supports both simple flags ("scan,cache") and key:value format ("scan:true,cache:false")
func SetDebugFlags(flagsStr string) {
	flags := make(map[string]bool)
	for _, flag := range strings.Split(flagsStr, ",") {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}

		parts := strings.SplitN(flag, ":", 2)
		flagName := strings.ToLower(parts[0])
		flagValue := true

		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "false", "0", "no", "off":
				flagValue = false
			}
		}

		flags[flagName] = flagValue
	}

	debugMutex.Lock()
	debugFlags = flags
	debugMutex.Unlock()
}

// IsDebugEnabled returns true if the specified debug flag is enabled
func IsDebugEnabled(flag string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugFlags[strings.ToLower(flag)]
}
