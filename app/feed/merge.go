package feed

// MergePosition selects where freshly ingested items are spliced into the
// existing list.
type MergePosition int

const (
	MergeHead MergePosition = iota
	MergeTail
)

// Merge combines incoming items into existing without introducing duplicate
// ids: incoming items whose id is already present are dropped, the rest are
// spliced in their given order at the requested position. Every ingestion
// path (initial load, pagination, push, poll) goes through this one
// operation; nothing else may splice the item list.
//
// Neither input slice is modified; the result is a fresh slice.
func Merge(existing, incoming []Item, position MergePosition) []Item {
	seen := make(map[string]bool, len(existing))
	for _, item := range existing {
		seen[item.ID] = true
	}

	fresh := make([]Item, 0, len(incoming))
	for _, item := range incoming {
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		fresh = append(fresh, item)
	}

	merged := make([]Item, 0, len(existing)+len(fresh))
	if position == MergeHead {
		merged = append(merged, fresh...)
		merged = append(merged, existing...)
	} else {
		merged = append(merged, existing...)
		merged = append(merged, fresh...)
	}

	return merged
}
