// internal/store/list.go
package store

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"chronicle/internal/entry"
	"chronicle/internal/paths"
)

const previewMaxLen = 100

// StoredSession is the lightweight listing metadata for one session file,
// derived from its content plus stat; it is not itself persisted.
type StoredSession struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Preview      string    `json:"preview"`
	Slug         string    `json:"slug,omitempty"`
	CustomTitle  string    `json:"customTitle,omitempty"`
	MessageCount int       `json:"messageCount"`
}

// ListSessions enumerates the session files of a workspace, newest first.
// Each file is scanned in its own goroutine; results are joined and then
// sorted so ordering is deterministic despite unordered completion. Sessions
// without a single assistant turn are treated as not yet started and left
// out. A missing directory yields an empty list.
func (s *Store) ListSessions(workspace string) ([]StoredSession, error) {
	dir, err := paths.ProjectDir(s.claudeDir, workspace)
	if err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []StoredSession{}, nil
		}
		return nil, err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []StoredSession
	)

	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, ".jsonl") || strings.HasPrefix(name, "agent-") {
			continue
		}
		info, err := de.Info()
		if err != nil || info.Size() == 0 {
			continue
		}

		path := filepath.Join(dir, name)
		id := strings.TrimSuffix(name, ".jsonl")
		mtime := info.ModTime()

		if s.listCache != nil {
			if cached, ok := s.listCache.Get(path, mtime); ok {
				if cached.MessageCount > 0 {
					mu.Lock()
					sessions = append(sessions, *cached)
					mu.Unlock()
				}
				continue
			}
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			meta := scanSessionMeta(path, id, mtime)
			if s.listCache != nil {
				s.listCache.Put(path, mtime, &meta)
			}
			if meta.MessageCount == 0 {
				return
			}
			mu.Lock()
			sessions = append(sessions, meta)
			mu.Unlock()
		}()
	}

	wg.Wait()

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].Timestamp.Equal(sessions[j].Timestamp) {
			return sessions[i].Timestamp.After(sessions[j].Timestamp)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

// scanSessionMeta extracts preview metadata in one lightweight pass, without
// branch or compaction logic.
func scanSessionMeta(path, id string, mtime time.Time) StoredSession {
	meta := StoredSession{ID: id, Timestamp: mtime}

	file, err := os.Open(path)
	if err != nil {
		return meta
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)

	hasAssistant := false
	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		e, err := entry.Decode(line)
		if err != nil {
			continue
		}
		switch e.Type {
		case entry.TypeUser:
			if e.Message != nil {
				count++
				if meta.Preview == "" && !e.IsMeta {
					meta.Preview = previewText(e.Message.TextContent())
				}
			}
		case entry.TypeAssistant:
			if e.Message != nil {
				count++
				hasAssistant = true
			}
		case entry.TypeCustomTitle:
			// Latest title wins
			meta.CustomTitle = e.Title
		}
		if meta.Slug == "" && e.Slug != "" {
			meta.Slug = e.Slug
		}
	}

	// A session with only user turns never got a model response; treat it as
	// not yet started.
	if hasAssistant {
		meta.MessageCount = count
	}
	return meta
}

var commandNamePattern = regexp.MustCompile(`<command-name>([^<]*)</command-name>`)
var commandArgsPattern = regexp.MustCompile(`<command-args>([^<]*)</command-args>`)

// previewText flattens a user message into a single preview line. Slash
// command invocations are logged as XML envelopes; show them as the command
// the user typed.
func previewText(text string) string {
	if m := commandNamePattern.FindStringSubmatch(text); m != nil {
		cmd := strings.TrimSpace(m[1])
		if a := commandArgsPattern.FindStringSubmatch(text); a != nil && strings.TrimSpace(a[1]) != "" {
			cmd += " " + strings.TrimSpace(a[1])
		}
		text = cmd
	}
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > previewMaxLen {
		return string(runes[:previewMaxLen])
	}
	return text
}

// ExtractCommandHistory collects the user's typed prompts across every
// session of a workspace, newest session first, deduplicated verbatim.
func (s *Store) ExtractCommandHistory(workspace string, limit int) ([]string, error) {
	sessions, err := s.ListSessions(workspace)
	if err != nil {
		return nil, err
	}
	dir, err := paths.ProjectDir(s.claudeDir, workspace)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var history []string
	for _, sess := range sessions {
		path := filepath.Join(dir, sess.ID+".jsonl")
		entries, err := readEntries(path)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.Type != entry.TypeUser || e.Message == nil || e.IsMeta || e.IsSidechain {
				continue
			}
			// Tool result envelopes are not typed prompts
			if e.FirstToolResultID() != "" {
				continue
			}
			text := strings.TrimSpace(e.Message.TextContent())
			if text == "" {
				continue
			}
			if _, dup := seen[text]; dup {
				continue
			}
			seen[text] = struct{}{}
			history = append(history, text)
			if limit > 0 && len(history) >= limit {
				return history, nil
			}
		}
	}
	return history, nil
}
