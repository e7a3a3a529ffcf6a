package scan

import (
	"sort"
	"time"
)

// Snapshot maps module ids to their modification time as seen by one scan.
type Snapshot map[string]time.Time

// SnapshotOf captures the id → timestamp view of records.
func SnapshotOf(records []Record) Snapshot {
	snap := make(Snapshot, len(records))
	for _, r := range records {
		snap[r.ID] = r.ModTime
	}
	return snap
}

// Changed reports whether next holds an id absent from s or a timestamp that
// differs from s's value for a shared id. Ids only present in s (deletions)
// do not count.
func (s Snapshot) Changed(next Snapshot) bool {
	for id, ts := range next {
		prev, ok := s[id]
		if !ok || !prev.Equal(ts) {
			return true
		}
	}
	return false
}

// Diff lists the ids of next that are new or modified relative to s, sorted.
func (s Snapshot) Diff(next Snapshot) (added, modified []string) {
	for id, ts := range next {
		prev, ok := s[id]
		switch {
		case !ok:
			added = append(added, id)
		case !prev.Equal(ts):
			modified = append(modified, id)
		}
	}
	sort.Strings(added)
	sort.Strings(modified)
	return added, modified
}
