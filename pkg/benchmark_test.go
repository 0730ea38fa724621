package checkfiledups

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// BenchmarkConfig describes a generated dataset
type BenchmarkConfig struct {
	TotalFiles  int   // Total number of files to generate
	FileSize    int64 // Size of every file in bytes
	FilesPerDir int   // Files per directory
	DupeEvery   int   // Every Nth file repeats the content of the file before it
}

var (
	// SmallBenchConfig is quick enough for CI
	SmallBenchConfig = BenchmarkConfig{
		TotalFiles:  1000,
		FileSize:    16 * 1024,
		FilesPerDir: 50,
		DupeEvery:   4,
	}

	// MediumBenchConfig is for local profiling
	MediumBenchConfig = BenchmarkConfig{
		TotalFiles:  20000,
		FileSize:    64 * 1024,
		FilesPerDir: 200,
		DupeEvery:   4,
	}
)

// generateDeterministicData creates deterministic file content based on seed
func generateDeterministicData(size int64, seed int64) []byte {
	data := make([]byte, size)
	for i := int64(0); i < size; i++ {
		seed = (seed*1103515245 + 12345) & 0x7fffffff
		data[i] = byte(seed >> 16)
	}
	return data
}

// createBenchmarkDataset writes config.TotalFiles files under rootDir and
// returns the number of duplicate files it contains
func createBenchmarkDataset(rootDir string, config BenchmarkConfig) (int, error) {
	dupes := 0
	var previous []byte
	for i := 0; i < config.TotalFiles; i++ {
		dir := filepath.Join(rootDir, fmt.Sprintf("dir_%04d", i/config.FilesPerDir))
		if i%config.FilesPerDir == 0 {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return 0, fmt.Errorf("failed to create dir %s: %w", dir, err)
			}
		}

		data := previous
		if i == 0 || i%config.DupeEvery != 0 {
			data = generateDeterministicData(config.FileSize, int64(i*12345+67890))
		} else {
			dupes++
		}
		previous = data

		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("file_%06d.dat", i)), data, 0644); err != nil {
			return 0, fmt.Errorf("failed to write file: %w", err)
		}
	}
	return dupes, nil
}

func setupBenchmark(b *testing.B, config BenchmarkConfig) (string, int) {
	b.Helper()
	root := filepath.Join(b.TempDir(), "dataset")
	dupes, err := createBenchmarkDataset(root, config)
	if err != nil {
		b.Fatalf("Failed to create benchmark dataset: %v", err)
	}
	return root, dupes
}

func BenchmarkScanNoCacheSmall(b *testing.B) {
	benchmarkScan(b, SmallBenchConfig, 1, false)
}

func BenchmarkScanNoCacheParallelSmall(b *testing.B) {
	benchmarkScan(b, SmallBenchConfig, 8, false)
}

func BenchmarkScanWarmCacheSmall(b *testing.B) {
	benchmarkScan(b, SmallBenchConfig, 4, true)
}

func BenchmarkScanNoCacheMedium(b *testing.B) {
	if testing.Short() {
		b.Skip("Skipping medium benchmark in short mode")
	}
	benchmarkScan(b, MediumBenchConfig, 8, false)
}

// benchmarkScan times a full scan. With warm set the cache is filled before
// the timer starts, so only enumeration and cache lookups are measured.
func benchmarkScan(b *testing.B, config BenchmarkConfig, workers int, warm bool) {
	root, dupes := setupBenchmark(b, config)

	opts := DefaultOptions(root)
	opts.BasePath = root
	opts.Workers = workers
	opts.CacheEnabled = warm
	opts.CacheFile = filepath.Join(b.TempDir(), "cache.zst")

	scanner, err := NewScanner(opts, nil)
	if err != nil {
		b.Fatal(err)
	}
	scanner.LoadCache()
	if warm {
		if _, err := scanner.Scan(nil); err != nil {
			b.Fatal(err)
		}
	}

	b.SetBytes(int64(config.TotalFiles) * config.FileSize)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result, err := scanner.Scan(nil)
		if err != nil {
			b.Fatalf("Scan failed: %v", err)
		}
		if result.Report.TotalDuplicateCount != uint64(dupes) {
			b.Fatalf("Expected %d duplicates, got %d", dupes, result.Report.TotalDuplicateCount)
		}
		if warm && result.Stats.Misses != 0 {
			b.Fatalf("Warm cache missed %d files", result.Stats.Misses)
		}
	}
}

func BenchmarkHashFile(b *testing.B) {
	path := filepath.Join(b.TempDir(), "data")
	data := generateDeterministicData(4*1024*1024, 1)
	if err := os.WriteFile(path, data, 0644); err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := HashFile(nil, path); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCacheSaveLoad(b *testing.B) {
	store := NewCacheStore("/base", nil)
	for i := 0; i < 100000; i++ {
		store.Set(fmt.Sprintf("dir%03d/file%06d", i%500, i), uint64(1700000000+i), uint64(i), HashBytes([]byte{byte(i), byte(i >> 8)}))
	}
	cacheFile := filepath.Join(b.TempDir(), "cache.zst")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		size, err := SaveCacheFile(store, cacheFile, DefaultCacheCodec())
		if err != nil {
			b.Fatal(err)
		}
		if loaded := LoadCacheFile(cacheFile, "/base", nil, nil); loaded.Len() != store.Len() {
			b.Fatalf("Loaded %d entries, expected %d", loaded.Len(), store.Len())
		}
		b.ReportMetric(float64(size)/float64(store.Len()), "bytes/entry")
	}
}
