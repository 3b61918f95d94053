// internal/store/filter.go
package store

import (
	"time"

	"chronicle/internal/entry"
)

// filterDisplayable reduces the full entry list to what should be rendered:
// real conversation turns on the active branch (or injected beside it), minus
// meta records, the compact summary itself, and anything before the
// compaction cutoff.
func filterDisplayable(entries []*entry.Entry, active, injected map[string]struct{}, cutoff string) []*entry.Entry {
	var out []*entry.Entry
	for _, e := range entries {
		if !displayable(e, active, injected, cutoff) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func displayable(e *entry.Entry, active, injected map[string]struct{}, cutoff string) bool {
	switch e.Type {
	case entry.TypeUser:
		if e.Message == nil || e.IsMeta {
			return false
		}
	case entry.TypeAssistant:
		if e.Message == nil {
			return false
		}
	default:
		return false
	}
	if e.IsCompactSummary {
		return false
	}
	_, onBranch := active[e.UUID]
	_, isInjected := injected[e.UUID]
	if !onBranch && !isInjected {
		return false
	}
	if cutoff != "" && timestampBefore(e.Timestamp, cutoff) {
		return false
	}
	return true
}

// timestampBefore compares two ISO-8601 timestamps, falling back to a string
// comparison when either fails to parse.
func timestampBefore(a, b string) bool {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA != nil || errB != nil {
		return a < b
	}
	return ta.Before(tb)
}

// paginate slices a tail-anchored window out of the displayable sequence.
// offset counts messages already consumed from the newest end.
func paginate(display []*entry.Entry, offset, limit int) ([]*entry.Entry, bool, int) {
	if offset < 0 {
		offset = 0
	}
	total := len(display)
	end := total - offset
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	window := display[start:end]
	hasMore := start > 0
	nextOffset := offset + len(window)
	return window, hasMore, nextOffset
}
