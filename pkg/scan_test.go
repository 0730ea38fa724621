package checkfiledups

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memTree writes files (path -> content) into a fresh MemMapFs
func memTree(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for path, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0644))
	}
	return fs
}

func scanFixture(t *testing.T) afero.Fs {
	return memTree(t, map[string]string{
		"/scan/a.txt":         "hello",
		"/scan/b.txt":         "hello",
		"/scan/sub/c.txt":     "world",
		"/scan/sub/empty.txt": "",
		"/scan/.git/HEAD":     "ref: refs/heads/main",
	})
}

func descPaths(descs []FileDescriptor) []string {
	paths := make([]string, len(descs))
	for i, d := range descs {
		paths[i] = d.Path
	}
	return paths
}

func TestEnumeratorCountAndCollect(t *testing.T) {
	fs := scanFixture(t)
	rules, err := NewSkipRules([]string{".git"})
	require.NoError(t, err)
	sink := &CollectingSink{}

	enum := NewEnumerator(fs, "/scan", rules, sink, nil)

	totals, err := enum.Count()
	require.NoError(t, err)
	assert.Equal(t, EnumerationTotals{Files: 4, Dirs: 2, Bytes: 15}, totals)
	assert.Empty(t, sink.Events(), "counting pass must not emit events")

	descs, err := enum.Collect()
	require.NoError(t, err)
	assert.Equal(t, []string{"/scan/a.txt", "/scan/b.txt", "/scan/sub/c.txt", "/scan/sub/empty.txt"}, descPaths(descs))
	assert.Equal(t, uint64(5), descs[0].Size)
	assert.NotZero(t, descs[0].ModTime)

	require.Equal(t, 1, sink.Count(EventSkippedPath))
	assert.Equal(t, "/scan/.git", sink.Events()[0].Path)
}

func TestEnumeratorPassesAgree(t *testing.T) {
	fs := scanFixture(t)
	enum := NewEnumerator(fs, "/scan", nil, nil, nil)

	totals, err := enum.Count()
	require.NoError(t, err)
	descs, err := enum.Collect()
	require.NoError(t, err)

	var bytes uint64
	for _, d := range descs {
		bytes += d.Size
	}
	assert.Equal(t, totals.Files, uint64(len(descs)))
	assert.Equal(t, totals.Bytes, bytes)
	assert.Equal(t, uint64(3), totals.Dirs)
}

func TestEnumeratorMinSizeAndExclude(t *testing.T) {
	fs := scanFixture(t)
	rules, err := NewSkipRules([]string{".git"})
	require.NoError(t, err)

	enum := NewEnumerator(fs, "/scan", rules, nil, nil)
	enum.MinSize = 1
	enum.Exclude("/scan/b.txt")
	enum.Exclude("")

	descs, err := enum.Collect()
	require.NoError(t, err)
	assert.Equal(t, []string{"/scan/a.txt", "/scan/sub/c.txt"}, descPaths(descs))

	totals, err := enum.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), totals.Files)
	assert.Equal(t, uint64(10), totals.Bytes)
}

func TestEnumeratorInterrupted(t *testing.T) {
	fs := scanFixture(t)
	shutdown := make(chan struct{})
	close(shutdown)

	enum := NewEnumerator(fs, "/scan", nil, nil, shutdown)
	_, err := enum.Count()
	assert.ErrorIs(t, err, ErrInterrupted)

	descs, err := enum.Collect()
	assert.ErrorIs(t, err, ErrInterrupted)
	assert.Empty(t, descs)
}

func TestEnumeratorMissingRoot(t *testing.T) {
	enum := NewEnumerator(afero.NewMemMapFs(), "/nowhere", nil, nil, nil)
	_, err := enum.Count()
	assert.Error(t, err)
}

func TestEnumeratorSymlinks(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "file.txt"), []byte("same"), 0644))
	require.NoError(t, os.Symlink(filepath.Join(root, "file.txt"), filepath.Join(root, "link.txt")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "d"), 0755))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "d", "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "dangling")))

	sink := &CollectingSink{}
	enum := NewEnumerator(afero.NewOsFs(), root, nil, sink, nil)

	totals, err := enum.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), totals.Files)
	assert.Equal(t, uint64(2), totals.Dirs, "the loop back to the root must not be walked again")

	descs, err := enum.Collect()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "file.txt"), filepath.Join(root, "link.txt")}, descPaths(descs))
	assert.Equal(t, 1, sink.Count(EventFileError), "dangling symlink is reported")

	report, err := FindDuplicates(root, 2)
	require.NoError(t, err)
	require.Len(t, report.Groups, 1, "a symlink and its target hash the same")
}

func TestValidateRoot(t *testing.T) {
	fs := scanFixture(t)

	assert.NoError(t, ValidateRoot(fs, "/scan"))
	assert.ErrorIs(t, ValidateRoot(fs, "/missing"), ErrRootNotFound)
	assert.ErrorIs(t, ValidateRoot(fs, "/scan/a.txt"), ErrRootNotDirectory)
}
