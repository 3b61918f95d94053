// internal/store/compact.go
package store

import (
	"bufio"
	"os"
	"time"

	"chronicle/internal/entry"
)

// CompactInfo describes the compaction boundary governing the active branch.
// It is assembled from a boundary record plus a later summary record; neither
// half alone is persisted in this shape.
type CompactInfo struct {
	Trigger   string `json:"trigger"`
	PreTokens int64  `json:"preTokens"`
	Summary   string `json:"summary,omitempty"`
	Timestamp string `json:"timestamp"`
}

// resolveCompaction decides whether the most recent compaction boundary
// applies to the active branch, and if so locates its summary. A boundary on
// an abandoned branch must not hide unrelated history.
func resolveCompaction(entries []*entry.Entry, agg *aggregation, active map[string]struct{}) *CompactInfo {
	boundary := agg.lastCompact
	if boundary == nil {
		return nil
	}
	if _, ok := active[boundary.UUID]; !ok {
		return nil
	}

	info := &CompactInfo{Timestamp: boundary.Timestamp}
	if boundary.CompactMetadata != nil {
		info.Trigger = boundary.CompactMetadata.Trigger
		info.PreTokens = boundary.CompactMetadata.PreTokens
	}
	if info.Timestamp == "" {
		info.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	// The summary write lands after the boundary; its absence means the
	// follow-up has not happened yet, not an error.
	for i := agg.lastCompactIndex + 1; i < len(entries); i++ {
		e := entries[i]
		if e.IsCompactSummary && e.Message.TextContent() != "" {
			info.Summary = e.Message.TextContent()
			break
		}
	}

	return info
}

// ReadLatestCompactSummary scans the tail of a session file for the newest
// compact summary, retrying a bounded number of times to ride out the race
// where the boundary record is visible before the summary write lands. Only
// the most recent summaryScanDepth lines are examined. Returns "" when no
// summary is found after all attempts; never an error for a missing summary.
func (s *Store) ReadLatestCompactSummary(workspace, sessionID string) (string, error) {
	path, err := s.sessionFilePath(workspace, sessionID)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < s.summaryRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(s.summaryDelay)
		}
		if summary := latestSummaryInTail(path, s.summaryScanDepth); summary != "" {
			return summary, nil
		}
	}
	return "", nil
}

// latestSummaryInTail reads the file's last depth lines and returns the
// newest compact summary among them.
func latestSummaryInTail(path string, depth int) string {
	file, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer file.Close()

	tail := make([]string, 0, depth)
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if len(tail) == depth {
			tail = tail[1:]
		}
		tail = append(tail, line)
	}

	for i := len(tail) - 1; i >= 0; i-- {
		e, err := entry.Decode([]byte(tail[i]))
		if err != nil {
			continue
		}
		if e.IsCompactSummary {
			if text := e.Message.TextContent(); text != "" {
				return text
			}
		}
	}
	return ""
}
