package checkfiledups

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// Contexts carried by index items
const (
	contextHashed = "hashed"
	contextCached = "cached"
)

// recordIndex orders hashed files by (digest, path) so files with equal
// content sit next to each other in path order
type recordIndex struct {
	skiplist *zcsl.ZeroCopySkiplist[FileRecord, string, string]
}

// recordKey sorts by digest first; NUL cannot appear in a path
func recordKey(r *FileRecord) string {
	return r.Digest.String() + "\x00" + r.Path
}

func newRecordIndex(maxLevels int) *recordIndex {
	if maxLevels < 8 {
		maxLevels = 16
	}

	getSize := func(r *FileRecord) int {
		return int(r.Size)
	}

	return &recordIndex{
		skiplist: zcsl.MakeZeroCopySkiplist[FileRecord, string, string](
			maxLevels,
			recordKey,
			getSize,
			strings.Compare,
		),
	}
}

// Insert adds a record, tagging whether its digest came from the cache.
// A second record for the same path and digest is ignored.
func (ri *recordIndex) Insert(rec FileRecord, context string) bool {
	return ri.skiplist.Insert(&rec, context)
}

// Length returns the number of records
func (ri *recordIndex) Length() int {
	return ri.skiplist.Length()
}

// ForEach visits records in (digest, path) order until fn returns false
func (ri *recordIndex) ForEach(fn func(*FileRecord, string) bool) {
	for node := ri.skiplist.First(); node != nil; node = node.Next() {
		if !fn(node.Item(), node.Context()) {
			return
		}
	}
}

// Runs calls fn once per maximal run of records sharing a digest
func (ri *recordIndex) Runs(fn func(digest Digest, run []*FileRecord)) {
	var run []*FileRecord
	ri.ForEach(func(rec *FileRecord, _ string) bool {
		if len(run) > 0 && run[0].Digest != rec.Digest {
			fn(run[0].Digest, run)
			run = nil
		}
		run = append(run, rec)
		return true
	})
	if len(run) > 0 {
		fn(run[0].Digest, run)
	}
}

// CountContext returns how many records carry the given context
func (ri *recordIndex) CountContext(context string) int {
	n := 0
	ri.ForEach(func(_ *FileRecord, c string) bool {
		if c == context {
			n++
		}
		return true
	})
	return n
}
