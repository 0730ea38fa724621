package checkfiledups

import (
	"bytes"
	"sort"
)

// DuplicateGroup is a set of two or more files with the same digest
type DuplicateGroup struct {
	Digest Digest
	Size   uint64   // size of the first file in the group
	Files  []string // ascending path order
}

// WastedSpace is the space reclaimable by keeping one copy
func (g DuplicateGroup) WastedSpace() uint64 {
	if len(g.Files) < 2 {
		return 0
	}
	return g.Size * uint64(len(g.Files)-1)
}

// DuplicateReport is the grouping result for a whole scan
type DuplicateReport struct {
	Groups              []DuplicateGroup
	TotalDuplicateCount uint64 // sum over groups of (files - 1)
	TotalWastedBytes    uint64
}

// GroupDuplicates groups records by digest, drops singletons, and orders
// groups by wasted space descending with ties broken by ascending digest.
// The result depends only on the set of records, never on their order.
func GroupDuplicates(records []FileRecord) DuplicateReport {
	defer VerboseEnter()()

	index := newRecordIndex(16)
	for _, rec := range records {
		context := contextHashed
		if rec.FromCache {
			context = contextCached
		}
		index.Insert(rec, context)
	}
	return groupIndex(index)
}

// groupIndex walks the digest runs of an index
func groupIndex(index *recordIndex) DuplicateReport {
	var report DuplicateReport

	index.Runs(func(digest Digest, run []*FileRecord) {
		if len(run) < 2 {
			return
		}
		group := DuplicateGroup{
			Digest: digest,
			Size:   run[0].Size,
			Files:  make([]string, len(run)),
		}
		for i, rec := range run {
			group.Files[i] = rec.Path
		}
		report.Groups = append(report.Groups, group)
		report.TotalDuplicateCount += uint64(len(run) - 1)
		report.TotalWastedBytes += group.WastedSpace()
	})

	sort.SliceStable(report.Groups, func(i, j int) bool {
		wi, wj := report.Groups[i].WastedSpace(), report.Groups[j].WastedSpace()
		if wi != wj {
			return wi > wj
		}
		return bytes.Compare(report.Groups[i].Digest[:], report.Groups[j].Digest[:]) < 0
	})

	if GetVerboseLevel() >= 2 {
		VerboseLog(2, "Grouped %d records (%d from cache) into %d duplicate groups",
			index.Length(), index.CountContext(contextCached), len(report.Groups))
	}
	return report
}
