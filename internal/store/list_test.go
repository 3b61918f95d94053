// internal/store/list_test.go
package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const secondSessionID = "22222222-2222-2222-2222-222222222222"

func writeProjectFile(t *testing.T, claudeDir, name, content string) string {
	t.Helper()
	dir := filepath.Join(claudeDir, "projects", "-work-demo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("Failed to create project dir: %v", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestListSessions(t *testing.T) {
	claudeDir := t.TempDir()

	older := writeProjectFile(t, claudeDir, testSessionID+".jsonl",
		userLine("1", "", "2024-01-01T00:00:00Z", "fix the login bug")+"\n"+
			assistantLine("2", "1", "2024-01-01T00:00:01Z", "on it")+"\n")
	newer := writeProjectFile(t, claudeDir, secondSessionID+".jsonl",
		userLine("1", "", "2024-02-01T00:00:00Z", "add dark mode")+"\n"+
			assistantLine("2", "1", "2024-02-01T00:00:01Z", "sure")+"\n"+
			`{"type":"custom-title","title":"Old Title","timestamp":"2024-02-01T00:00:02Z"}`+"\n"+
			`{"type":"custom-title","title":"Dark Mode Work","timestamp":"2024-02-01T00:00:03Z"}`+"\n")

	// Excluded: agent logs, empty files, sessions with no assistant turn
	writeProjectFile(t, claudeDir, "agent-abc.jsonl",
		userLine("1", "", "2024-03-01T00:00:00Z", "sidechain")+"\n")
	writeProjectFile(t, claudeDir, "33333333-3333-3333-3333-333333333333.jsonl", "")
	writeProjectFile(t, claudeDir, "44444444-4444-4444-4444-444444444444.jsonl",
		userLine("1", "", "2024-03-01T00:00:00Z", "never answered")+"\n")

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := os.Chtimes(older, base, base); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}
	if err := os.Chtimes(newer, base.Add(time.Hour), base.Add(time.Hour)); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	sessions, err := New(claudeDir).ListSessions(testWorkspace)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != secondSessionID {
		t.Errorf("Expected newest session first, got %s", sessions[0].ID)
	}
	if sessions[0].CustomTitle != "Dark Mode Work" {
		t.Errorf("Expected latest custom title, got %q", sessions[0].CustomTitle)
	}
	if sessions[0].Preview != "add dark mode" {
		t.Errorf("Expected preview 'add dark mode', got %q", sessions[0].Preview)
	}
	if sessions[1].ID != testSessionID || sessions[1].MessageCount != 2 {
		t.Errorf("Unexpected second session: %+v", sessions[1])
	}
}

func TestListSessionsMissingDir(t *testing.T) {
	claudeDir := t.TempDir()

	sessions, err := New(claudeDir).ListSessions(testWorkspace)
	if err != nil {
		t.Fatalf("Expected empty list for missing dir, got error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("Expected no sessions, got %d", len(sessions))
	}
}

func TestPreviewSlashCommand(t *testing.T) {
	got := previewText("<command-name>/compact</command-name><command-args>keep the last hour</command-args>")
	if got != "/compact keep the last hour" {
		t.Errorf("Expected slash command preview, got %q", got)
	}
}

func TestPreviewTruncation(t *testing.T) {
	long := strings.Repeat("word ", 40)
	got := previewText(long)
	if len([]rune(got)) != previewMaxLen {
		t.Errorf("Expected %d-rune preview, got %d", previewMaxLen, len([]rune(got)))
	}
}

func TestPreviewCollapsesWhitespace(t *testing.T) {
	got := previewText("line one\n\n  line two\t end")
	if got != "line one line two end" {
		t.Errorf("Expected collapsed whitespace, got %q", got)
	}
}

func TestSlugExtracted(t *testing.T) {
	claudeDir := t.TempDir()
	writeProjectFile(t, claudeDir, testSessionID+".jsonl",
		`{"type":"user","uuid":"1","slug":"login-bug","timestamp":"2024-01-01T00:00:00Z","message":{"role":"user","content":"fix it"}}`+"\n"+
			assistantLine("2", "1", "2024-01-01T00:00:01Z", "done")+"\n")

	sessions, err := New(claudeDir).ListSessions(testWorkspace)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Slug != "login-bug" {
		t.Errorf("Expected slug login-bug, got %+v", sessions)
	}
}

func TestExtractCommandHistoryDedupes(t *testing.T) {
	claudeDir := t.TempDir()
	writeProjectFile(t, claudeDir, testSessionID+".jsonl",
		userLine("1", "", "2024-01-01T00:00:00Z", "fix bug")+"\n"+
			assistantLine("2", "1", "2024-01-01T00:00:01Z", "ok")+"\n"+
			userLine("3", "2", "2024-01-01T00:00:02Z", "add tests")+"\n")
	writeProjectFile(t, claudeDir, secondSessionID+".jsonl",
		userLine("1", "", "2024-02-01T00:00:00Z", "fix bug")+"\n"+
			assistantLine("2", "1", "2024-02-01T00:00:01Z", "ok")+"\n")

	history, err := New(claudeDir).ExtractCommandHistory(testWorkspace, 0)
	if err != nil {
		t.Fatalf("ExtractCommandHistory failed: %v", err)
	}

	count := 0
	for _, prompt := range history {
		if prompt == "fix bug" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected 'fix bug' exactly once, got %d occurrences in %v", count, history)
	}
	found := false
	for _, prompt := range history {
		if prompt == "add tests" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected 'add tests' in history, got %v", history)
	}
}

func TestExtractCommandHistorySkipsToolResults(t *testing.T) {
	claudeDir := t.TempDir()
	writeProjectFile(t, claudeDir, testSessionID+".jsonl",
		userLine("1", "", "2024-01-01T00:00:00Z", "real prompt")+"\n"+
			assistantLine("2", "1", "2024-01-01T00:00:01Z", "ok")+"\n"+
			`{"type":"user","uuid":"3","parentUuid":"2","timestamp":"2024-01-01T00:00:02Z","message":{"role":"user","content":[{"type":"tool_result","tool_use_id":"tu1","content":"tool output"}]}}`+"\n")

	history, err := New(claudeDir).ExtractCommandHistory(testWorkspace, 0)
	if err != nil {
		t.Fatalf("ExtractCommandHistory failed: %v", err)
	}
	if len(history) != 1 || history[0] != "real prompt" {
		t.Errorf("Expected only the typed prompt, got %v", history)
	}
}

type fakeCache struct {
	gets int
	hits int
	puts int
	data map[string]*StoredSession
}

func (c *fakeCache) Get(path string, mtime time.Time) (*StoredSession, bool) {
	c.gets++
	if sess, ok := c.data[path]; ok {
		c.hits++
		return sess, true
	}
	return nil, false
}

func (c *fakeCache) Put(path string, mtime time.Time, sess *StoredSession) {
	c.puts++
	if c.data == nil {
		c.data = make(map[string]*StoredSession)
	}
	copied := *sess
	c.data[path] = &copied
}

func TestListSessionsUsesCache(t *testing.T) {
	claudeDir := t.TempDir()
	writeProjectFile(t, claudeDir, testSessionID+".jsonl",
		userLine("1", "", "2024-01-01T00:00:00Z", "hello")+"\n"+
			assistantLine("2", "1", "2024-01-01T00:00:01Z", "hi")+"\n")

	s := New(claudeDir)
	cache := &fakeCache{}
	s.SetListCache(cache)

	first, err := s.ListSessions(testWorkspace)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if cache.puts != 1 || cache.hits != 0 {
		t.Errorf("Expected one put and no hits on cold cache, got %d puts %d hits", cache.puts, cache.hits)
	}

	second, err := s.ListSessions(testWorkspace)
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if cache.hits != 1 {
		t.Errorf("Expected cache hit on second listing, got %d", cache.hits)
	}
	if len(first) != 1 || len(second) != 1 || first[0].Preview != second[0].Preview {
		t.Errorf("Cached listing differs: %+v vs %+v", first, second)
	}
}
