package checkfiledups

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
)

// EnumerationTotals is the result of the counting pass
type EnumerationTotals struct {
	Files uint64
	Dirs  uint64
	Bytes uint64
}

// Enumerator walks a directory tree, following symlinks, and yields the regular
// files that survive the skip rules. Both passes visit the same set of paths.
type Enumerator struct {
	fs       afero.Fs
	root     string
	rules    *SkipRules
	sink     EventSink
	shutdown <-chan struct{}

	// MinSize excludes files smaller than this many bytes
	MinSize uint64

	excluded map[string]struct{}
}

// NewEnumerator returns an enumerator rooted at root. A nil shutdown channel never fires.
func NewEnumerator(fs afero.Fs, root string, rules *SkipRules, sink EventSink, shutdown <-chan struct{}) *Enumerator {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if sink == nil {
		sink = discardSink{}
	}
	return &Enumerator{
		fs:       fs,
		root:     filepath.Clean(root),
		rules:    rules,
		sink:     sink,
		shutdown: shutdown,
		excluded: make(map[string]struct{}),
	}
}

// Exclude hides a specific file, such as the cache or log file, from both passes
func (e *Enumerator) Exclude(path string) {
	if path == "" {
		return
	}
	e.excluded[filepath.Clean(path)] = struct{}{}
}

// Root returns the cleaned root path
func (e *Enumerator) Root() string {
	return e.root
}

// Count is pass 1: it totals files, directories and bytes without building descriptors
func (e *Enumerator) Count() (EnumerationTotals, error) {
	defer VerboseEnter()()

	var totals EnumerationTotals
	dirs, err := e.walk(false, func(desc FileDescriptor) {
		totals.Files++
		totals.Bytes += desc.Size
	})
	totals.Dirs = dirs

	if IsDebugEnabled("scan") {
		VerboseLog(3, "Count: %d files, %d dirs, %d bytes under %s", totals.Files, totals.Dirs, totals.Bytes, e.root)
	}
	return totals, err
}

// Collect is pass 2: it returns a descriptor per regular file and emits advisory events
func (e *Enumerator) Collect() ([]FileDescriptor, error) {
	defer VerboseEnter()()

	var descs []FileDescriptor
	_, err := e.walk(true, func(desc FileDescriptor) {
		descs = append(descs, desc)
	})
	return descs, err
}

type devIno struct {
	dev uint64
	ino uint64
}

// identity returns the device/inode pair of info when the filesystem exposes one
func identity(info os.FileInfo) (devIno, bool) {
	if st, ok := info.Sys().(*syscall.Stat_t); ok && st != nil {
		return devIno{dev: uint64(st.Dev), ino: uint64(st.Ino)}, true
	}
	return devIno{}, false
}

// walk visits every regular file depth first in name order. Events are only
// emitted when emit is set so the counting pass stays silent.
func (e *Enumerator) walk(emit bool, visit func(FileDescriptor)) (uint64, error) {
	report := func(ev Event) {
		if emit {
			e.sink.Emit(ev)
		}
	}

	rootInfo, err := e.fs.Stat(e.root)
	if err != nil {
		return 0, fmt.Errorf("failed to stat root %s: %w", e.root, err)
	}

	// Directories seen so far; a symlink back to an ancestor would otherwise loop
	visited := make(map[devIno]struct{})
	if id, ok := identity(rootInfo); ok {
		visited[id] = struct{}{}
	}

	var dirs uint64
	stack := []string{e.root}

	for len(stack) > 0 {
		select {
		case <-e.shutdown:
			if IsDebugEnabled("shutdown") {
				VerboseLog(3, "walk: interrupted with %d directories pending", len(stack))
			}
			return dirs, ErrInterrupted
		default:
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		dirs++

		entries, err := afero.ReadDir(e.fs, dir)
		if err != nil {
			report(Event{Kind: EventFileError, Path: dir, Err: fmt.Errorf("failed to read directory: %w", err)})
			continue
		}

		// afero.ReadDir sorts by name; push subdirectories in reverse so they pop in order
		var subdirs []string
		for _, entry := range entries {
			full := filepath.Join(dir, entry.Name())

			if e.skipped(full) {
				report(Event{Kind: EventSkippedPath, Path: full})
				continue
			}

			info := entry
			if entry.Mode()&os.ModeSymlink != 0 {
				info, err = e.fs.Stat(full)
				if err != nil {
					report(Event{Kind: EventFileError, Path: full, Err: fmt.Errorf("failed to follow symlink: %w", err)})
					continue
				}
			}

			switch {
			case info.IsDir():
				if id, ok := identity(info); ok {
					if _, seen := visited[id]; seen {
						if IsDebugEnabled("scan") {
							VerboseLog(3, "walk: already visited %s, not descending", full)
						}
						continue
					}
					visited[id] = struct{}{}
				}
				subdirs = append(subdirs, full)

			case info.Mode().IsRegular():
				if _, ok := e.excluded[full]; ok {
					continue
				}
				size := uint64(max(info.Size(), 0))
				if size < e.MinSize {
					continue
				}
				visit(FileDescriptor{
					Path:    full,
					Size:    size,
					ModTime: uint64(max(info.ModTime().Unix(), 0)),
				})
			}
		}

		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return dirs, nil
}

// skipped applies the rules to the path relative to the root
func (e *Enumerator) skipped(full string) bool {
	if e.rules.Empty() {
		return false
	}
	rel, err := filepath.Rel(e.root, full)
	if err != nil {
		return false
	}
	return e.rules.ShouldSkip(rel)
}

// ValidateRoot checks that root exists and is a directory
func ValidateRoot(fs afero.Fs, root string) error {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	info, err := fs.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return fmt.Errorf("failed to stat root %s: %w", root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotDirectory, root)
	}
	return nil
}
