package checkfiledups

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Progress holds the lock-free counters shared by the hash workers and the pass-1
// totals they are measured against. All methods are safe for concurrent use.
type Progress struct {
	files atomic.Uint64
	bytes atomic.Uint64

	totalFiles atomic.Uint64
	totalBytes atomic.Uint64
	totalDirs  atomic.Uint64
}

// ProgressSnapshot is a point-in-time read of a Progress
type ProgressSnapshot struct {
	Files      uint64
	Bytes      uint64
	TotalFiles uint64
	TotalBytes uint64
	TotalDirs  uint64
}

// AddFile records one completed file of the given size
func (p *Progress) AddFile(size uint64) {
	p.files.Add(1)
	p.bytes.Add(size)
}

// SetTotals records the enumerator's pass-1 totals
func (p *Progress) SetTotals(t EnumerationTotals) {
	p.totalFiles.Store(t.Files)
	p.totalBytes.Store(t.Bytes)
	p.totalDirs.Store(t.Dirs)
}

// Files returns the number of completed files
func (p *Progress) Files() uint64 { return p.files.Load() }

// Bytes returns the number of bytes covered by completed files
func (p *Progress) Bytes() uint64 { return p.bytes.Load() }

// Snapshot reads all counters
func (p *Progress) Snapshot() ProgressSnapshot {
	return ProgressSnapshot{
		Files:      p.files.Load(),
		Bytes:      p.bytes.Load(),
		TotalFiles: p.totalFiles.Load(),
		TotalBytes: p.totalBytes.Load(),
		TotalDirs:  p.totalDirs.Load(),
	}
}

// Percent returns byte progress in [0,100]; with no bytes expected it falls back to file counts
func (s ProgressSnapshot) Percent() float64 {
	if s.TotalBytes > 0 {
		return min(100, float64(s.Bytes)*100/float64(s.TotalBytes))
	}
	if s.TotalFiles > 0 {
		return min(100, float64(s.Files)*100/float64(s.TotalFiles))
	}
	return 100
}

// ProgressReporter periodically logs a Progress until stopped
type ProgressReporter struct {
	progress *Progress
	interval time.Duration

	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	started atomic.Bool
}

// NewProgressReporter returns a stopped reporter; call Start to begin logging
func NewProgressReporter(progress *Progress, interval time.Duration) *ProgressReporter {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	return &ProgressReporter{
		progress: progress,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the reporting goroutine
func (pr *ProgressReporter) Start() {
	if pr.started.CompareAndSwap(false, true) {
		go pr.run()
	}
}

func (pr *ProgressReporter) run() {
	defer close(pr.done)

	ticker := time.NewTicker(pr.interval)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ticker.C:
			snap := pr.progress.Snapshot()
			if snap.Files == last {
				continue
			}
			last = snap.Files
			logger.Infof("Scanned %s/%s files (%s of %s, %.1f%%)",
				humanize.Comma(int64(snap.Files)), humanize.Comma(int64(snap.TotalFiles)),
				humanize.Bytes(snap.Bytes), humanize.Bytes(snap.TotalBytes), snap.Percent())
		case <-pr.stop:
			return
		}
	}
}

// Stop halts reporting and waits for the goroutine to exit. Safe to call more than once.
func (pr *ProgressReporter) Stop() {
	pr.once.Do(func() { close(pr.stop) })
	if pr.started.Load() {
		<-pr.done
	}
}
