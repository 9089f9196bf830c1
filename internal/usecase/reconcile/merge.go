// Package reconcile merges a freshly polled feed snapshot into the stored
// item sequence without duplicating the entries both have in common.
package reconcile

import "feed-relay/internal/domain/entity"

// Comparator reports whether two items describe the same feed entry.
type Comparator func(a, b *entity.Item) bool

// SameGUID identifies items by guid only. It is the comparator used for
// reconciliation; items carry no general equality.
func SameGUID(a, b *entity.Item) bool {
	return a.GUID == b.GUID
}

// noOverlap is returned by Overlap when the snapshot shares no anchor with the store.
const noOverlap = -1

// Overlap locates snapshot[0] in old and returns the number of stored items
// after the match, or -1 when there is no match. Every position is checked
// and the last match wins, so a guid that occurs more than once in old
// resolves to its newest occurrence.
func Overlap(old, snapshot []*entity.Item, same Comparator) int {
	if len(snapshot) == 0 {
		return noOverlap
	}
	offset := noOverlap
	for i, it := range old {
		if same(it, snapshot[0]) {
			offset = len(old) - 1 - i
		}
	}
	return offset
}

// Delta returns the part of snapshot that old does not already hold,
// assuming snapshot is ordered oldest to newest. With no overlap the whole
// snapshot is new.
func Delta(old, snapshot []*entity.Item, same Comparator) []*entity.Item {
	if len(snapshot) == 0 {
		return nil
	}
	offset := Overlap(old, snapshot, same)
	if offset == noOverlap {
		return snapshot
	}
	if offset+1 >= len(snapshot) {
		return nil
	}
	return snapshot[offset+1:]
}

// Merge returns old followed by the new part of snapshot. Neither input is
// modified; the result shares item pointers with both.
func Merge(old, snapshot []*entity.Item, same Comparator) []*entity.Item {
	delta := Delta(old, snapshot, same)
	merged := make([]*entity.Item, 0, len(old)+len(delta))
	merged = append(merged, old...)
	merged = append(merged, delta...)
	return merged
}
