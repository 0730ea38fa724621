package checkfiledups

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// EventKind identifies an advisory event
type EventKind int

const (
	EventSkippedPath     EventKind = iota // Path matched a skip rule
	EventFileError                        // File or directory could not be stat'ed, listed or read
	EventCacheLoadFailed                  // Cache file unreadable or corrupt, starting empty
	EventCacheSaved                       // Cache persisted, Bytes holds the file size
	EventCacheSaveFailed                  // Cache could not be persisted
	EventPruneResult                      // Prune finished, Removed of Total entries dropped
	EventOrphanedTemp                     // Temporary cache file left by a dead process was removed
)

func (k EventKind) String() string {
	switch k {
	case EventSkippedPath:
		return "skipped-path"
	case EventFileError:
		return "file-error"
	case EventCacheLoadFailed:
		return "cache-load-failed"
	case EventCacheSaved:
		return "cache-saved"
	case EventCacheSaveFailed:
		return "cache-save-failed"
	case EventPruneResult:
		return "prune-result"
	case EventOrphanedTemp:
		return "orphaned-temp"
	default:
		return "unknown"
	}
}

// Event is a non-fatal notification; emitting one never alters control flow
type Event struct {
	Kind    EventKind
	Path    string
	Err     error
	Bytes   int64
	Removed int
	Total   int
}

// EventSink receives advisory events. Implementations must be safe for concurrent use.
type EventSink interface {
	Emit(Event)
}

// LogSink renders events through the package logger
type LogSink struct {
	log *logrus.Logger
}

// NewLogSink returns a sink writing to the package logger
func NewLogSink() *LogSink {
	return &LogSink{log: logger}
}

// Emit implements EventSink
func (s *LogSink) Emit(ev Event) {
	entry := s.log.WithField("event", ev.Kind.String())
	if ev.Path != "" {
		entry = entry.WithField("path", ev.Path)
	}
	if ev.Err != nil {
		entry = entry.WithError(ev.Err)
	}

	switch ev.Kind {
	case EventSkippedPath:
		entry.Debug("Skipping path")
	case EventFileError:
		entry.Error("Failed to process file")
	case EventCacheLoadFailed:
		entry.Warn("Failed to load hash cache, starting fresh")
	case EventCacheSaved:
		entry.WithField("bytes", ev.Bytes).Infof("Saved hash cache (%s)", humanize.IBytes(uint64(ev.Bytes)))
	case EventCacheSaveFailed:
		entry.Error("Failed to save hash cache")
	case EventPruneResult:
		entry.WithFields(logrus.Fields{"removed": ev.Removed, "total": ev.Total}).
			Infof("Pruned %s of %s cache entries", humanize.Comma(int64(ev.Removed)), humanize.Comma(int64(ev.Total)))
	case EventOrphanedTemp:
		entry.Warn("Removed orphaned temporary cache file")
	default:
		entry.Info("Event")
	}
}

// CollectingSink records events in memory
type CollectingSink struct {
	mu     sync.Mutex
	events []Event
}

// Emit implements EventSink
func (s *CollectingSink) Emit(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

// Events returns a copy of the recorded events
func (s *CollectingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns how many events of kind were recorded
func (s *CollectingSink) Count(kind EventKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ev := range s.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// multiSink fans an event out to several sinks
type multiSink []EventSink

func (m multiSink) Emit(ev Event) {
	for _, s := range m {
		s.Emit(ev)
	}
}

// MultiSink returns a sink delivering every event to each of sinks
func MultiSink(sinks ...EventSink) EventSink {
	return multiSink(sinks)
}

type discardSink struct{}

func (discardSink) Emit(Event) {}
