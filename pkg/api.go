package checkfiledups

// This file holds convenience entry points for library callers

// InitDebugFlags sets debug flags when flagsStr is non-empty
func InitDebugFlags(flagsStr string) {
	if flagsStr != "" {
		SetDebugFlags(flagsStr)
	}
}

// FindDuplicates scans root with the given number of workers and no persisted
// cache, and returns the duplicate report. It cannot be interrupted.
func FindDuplicates(root string, workers int, skipRules ...string) (DuplicateReport, error) {
	opts := DefaultOptions(root)
	opts.Workers = workers
	opts.CacheEnabled = false
	opts.SkipRules = skipRules

	sc, err := NewScanner(opts, nil)
	if err != nil {
		return DuplicateReport{}, err
	}
	result, err := sc.Scan(nil)
	if err != nil {
		return DuplicateReport{}, err
	}
	return result.Report, nil
}
