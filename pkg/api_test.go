package checkfiledups

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindDuplicates(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"a.txt":            "same content",
		"nested/b.txt":     "same content",
		"nested/c.txt":     "different",
		"ignored/copy.txt": "same content",
	}
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	report, err := FindDuplicates(root, 4, "ignored")
	if err != nil {
		t.Fatalf("FindDuplicates() error = %v", err)
	}
	if len(report.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(report.Groups))
	}
	group := report.Groups[0]
	if len(group.Files) != 2 {
		t.Fatalf("expected 2 files, got %v", group.Files)
	}
	if group.Files[0] != filepath.Join(root, "a.txt") || group.Files[1] != filepath.Join(root, "nested", "b.txt") {
		t.Errorf("unexpected files %v", group.Files)
	}
	if report.TotalWastedBytes != uint64(len("same content")) {
		t.Errorf("wasted = %d", report.TotalWastedBytes)
	}

	// Nothing is cached, so the working directory stays clean
	if _, err := os.Stat(DefaultCacheFile); err == nil {
		t.Error("FindDuplicates should not write a cache file")
	}
}

func TestFindDuplicatesErrors(t *testing.T) {
	if _, err := FindDuplicates(filepath.Join(t.TempDir(), "missing"), 1); err == nil {
		t.Error("expected error for missing root")
	}
	if _, err := FindDuplicates(".", 0); err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestInitDebugFlags(t *testing.T) {
	defer SetDebugFlags("")

	InitDebugFlags("")
	if IsDebugEnabled("scan") {
		t.Error("empty string should not enable flags")
	}
	InitDebugFlags("scan,cache:false")
	if !IsDebugEnabled("scan") || IsDebugEnabled("cache") {
		t.Error("flags not applied")
	}
}
