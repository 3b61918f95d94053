// internal/store/store.go
package store

import (
	"bufio"
	"os"
	"sync"
	"time"

	"chronicle/internal/entry"
	"chronicle/internal/paths"
)

// Defaults for the read path. Overridable via SetOptions.
const (
	DefaultPageLimit        = 50
	DefaultSummaryRetries   = 3
	DefaultSummaryDelay     = 200 * time.Millisecond
	DefaultSummaryScanDepth = 50
)

// Store reads and writes session transcript files under the claude
// directory's projects tree. Reconstruction always re-reads the file; there is
// no shared mutable cache to race over.
type Store struct {
	claudeDir string

	pageLimit        int
	summaryRetries   int
	summaryDelay     time.Duration
	summaryScanDepth int

	listCache ListCache

	branchMu sync.Mutex
	branches map[string]string
}

// Options tunes the read path.
type Options struct {
	PageLimit        int
	SummaryRetries   int
	SummaryDelay     time.Duration
	SummaryScanDepth int
}

// ListCache is an optional metadata cache consulted by ListSessions. A miss
// falls back to scanning the file; the cache is never authoritative.
type ListCache interface {
	Get(path string, mtime time.Time) (*StoredSession, bool)
	Put(path string, mtime time.Time, sess *StoredSession)
}

// New creates a Store rooted at a claude directory, conventionally
// <home>/.claude.
func New(claudeDir string) *Store {
	return &Store{
		claudeDir:        claudeDir,
		pageLimit:        DefaultPageLimit,
		summaryRetries:   DefaultSummaryRetries,
		summaryDelay:     DefaultSummaryDelay,
		summaryScanDepth: DefaultSummaryScanDepth,
		branches:         make(map[string]string),
	}
}

// SetOptions applies non-zero option fields.
func (s *Store) SetOptions(opts Options) {
	if opts.PageLimit > 0 {
		s.pageLimit = opts.PageLimit
	}
	if opts.SummaryRetries > 0 {
		s.summaryRetries = opts.SummaryRetries
	}
	if opts.SummaryDelay > 0 {
		s.summaryDelay = opts.SummaryDelay
	}
	if opts.SummaryScanDepth > 0 {
		s.summaryScanDepth = opts.SummaryScanDepth
	}
}

// SetListCache installs a listing metadata cache.
func (s *Store) SetListCache(c ListCache) {
	s.listCache = c
}

// sessionFilePath resolves the on-disk path for a session, validating input.
func (s *Store) sessionFilePath(workspace, sessionID string) (string, error) {
	dir, err := paths.ProjectDir(s.claudeDir, workspace)
	if err != nil {
		return "", err
	}
	return paths.SessionFilePath(dir, sessionID)
}

// readEntries decodes every well-formed line of a JSONL file. Malformed lines
// are skipped; a missing file yields a nil slice and no error.
func readEntries(path string) ([]*entry.Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var entries []*entry.Entry
	scanner := bufio.NewScanner(file)

	// Tool results can produce very large lines
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		e, err := entry.Decode(line)
		if err != nil {
			// Skip malformed lines but continue processing
			continue
		}
		entries = append(entries, e)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
