package checkfiledups

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
)

// jsonGroup and jsonReport are the json output schema
type jsonGroup struct {
	Digest string   `json:"digest"`
	Size   uint64   `json:"size"`
	Wasted uint64   `json:"wasted_bytes"`
	Files  []string `json:"files"`
}

type jsonReport struct {
	Root            string      `json:"root"`
	Groups          []jsonGroup `json:"groups"`
	TotalDuplicates uint64      `json:"total_duplicates"`
	TotalWasted     uint64      `json:"total_wasted_bytes"`
}

// RenderReport writes report in format (human, json or fdupes). Human and json
// output show paths relative to root; fdupes output keeps the walked paths.
func RenderReport(w io.Writer, report DuplicateReport, root, format string) error {
	bw := bufio.NewWriter(w)

	var err error
	switch strings.ToLower(format) {
	case "", "human":
		err = renderHuman(bw, report, root)
	case "json":
		err = renderJSON(bw, report, root)
	case "fdupes":
		err = renderFdupes(bw, report)
	default:
		return ValidateOutputFormat(format)
	}
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// displayPath strips root from path when path lies beneath it
func displayPath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}

func renderHuman(w io.Writer, report DuplicateReport, root string) error {
	if len(report.Groups) == 0 {
		_, err := fmt.Fprintln(w, "No duplicate files found!")
		return err
	}

	if _, err := fmt.Fprintf(w, "Found %s duplicate files wasting %s of space\n",
		humanize.Comma(int64(report.TotalDuplicateCount)), humanize.Bytes(report.TotalWastedBytes)); err != nil {
		return err
	}

	for _, group := range report.Groups {
		if _, err := fmt.Fprintf(w, "\nDuplicate group (%s, %d files):\n", humanize.Bytes(group.Size), len(group.Files)); err != nil {
			return err
		}
		for _, file := range group.Files {
			if _, err := fmt.Fprintf(w, "  %s\n", displayPath(root, file)); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderJSON(w io.Writer, report DuplicateReport, root string) error {
	out := jsonReport{
		Root:            root,
		Groups:          make([]jsonGroup, 0, len(report.Groups)),
		TotalDuplicates: report.TotalDuplicateCount,
		TotalWasted:     report.TotalWastedBytes,
	}
	for _, group := range report.Groups {
		files := make([]string, len(group.Files))
		for i, f := range group.Files {
			files[i] = filepath.ToSlash(displayPath(root, f))
		}
		out.Groups = append(out.Groups, jsonGroup{
			Digest: group.Digest.String(),
			Size:   group.Size,
			Wasted: group.WastedSpace(),
			Files:  files,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// renderFdupes prints one path per line with a blank line after each group
func renderFdupes(w io.Writer, report DuplicateReport) error {
	for _, group := range report.Groups {
		for _, file := range group.Files {
			if _, err := fmt.Fprintln(w, file); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}

// logSummary logs the timing and cache figures of a finished scan
func logSummary(result *ScanResult) {
	logger.Infof("Scanned %s files in %s directories (%s) in %s",
		humanize.Comma(int64(result.Totals.Files)), humanize.Comma(int64(result.Totals.Dirs)),
		humanize.Bytes(result.Totals.Bytes), FormatElapsed(result.Elapsed))
	VerboseLog(1, "Hash cache: %d hits, %d misses, %d failures", result.Stats.Hits, result.Stats.Misses, result.Stats.Failures)
}
