// internal/store/writer_test.go
package store

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"chronicle/internal/entry"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	buf := make([]byte, 1024*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	return lines
}

func sessionPath(claudeDir string) string {
	return filepath.Join(claudeDir, "projects", "-work-demo", testSessionID+".jsonl")
}

func TestInitializeSession(t *testing.T) {
	claudeDir := t.TempDir()
	s := New(claudeDir)

	if err := s.InitializeSession(testWorkspace, testSessionID); err != nil {
		t.Fatalf("InitializeSession failed: %v", err)
	}

	lines := readLines(t, sessionPath(claudeDir))
	if len(lines) != 1 {
		t.Fatalf("Expected a single record, got %d", len(lines))
	}
	e, err := entry.Decode([]byte(lines[0]))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if e.Type != entry.TypeQueueOperation || e.Operation != entry.QueueOperationDequeue {
		t.Errorf("Expected dequeue marker, got %+v", e)
	}
	if e.SessionID != testSessionID {
		t.Errorf("Expected sessionId stamped, got %q", e.SessionID)
	}

	// Initializing again must not truncate or duplicate
	if err := s.InitializeSession(testWorkspace, testSessionID); err != nil {
		t.Fatalf("Second InitializeSession failed: %v", err)
	}
	if got := readLines(t, sessionPath(claudeDir)); len(got) != 1 {
		t.Errorf("Expected file untouched on re-init, got %d records", len(got))
	}
}

func TestAppendUserMessageChain(t *testing.T) {
	claudeDir := t.TempDir()
	s := New(claudeDir)

	first, err := s.AppendUserMessage(testWorkspace, testSessionID, "", entry.MessageContent{Text: "hello", IsText: true})
	if err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}
	if first == "" {
		t.Fatal("Expected generated uuid")
	}
	second, err := s.AppendUserMessage(testWorkspace, testSessionID, first, entry.MessageContent{Text: "again", IsText: true})
	if err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}

	result, err := s.LoadSession(testWorkspace, testSessionID, LoadOptions{})
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	got := entryUUIDs(result)
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Errorf("Expected chained records [%s %s], got %v", first, second, got)
	}
}

func TestAppendAssistantPartial(t *testing.T) {
	claudeDir := t.TempDir()
	s := New(claudeDir)

	parent, err := s.AppendUserMessage(testWorkspace, testSessionID, "", entry.MessageContent{Text: "go", IsText: true})
	if err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}

	// Nothing produced: no record, parent unchanged
	got, err := s.AppendAssistantPartial(testWorkspace, testSessionID, parent, "", "", "claude-sonnet-4-20250514")
	if err != nil {
		t.Fatalf("AppendAssistantPartial failed: %v", err)
	}
	if got != parent {
		t.Errorf("Expected unchanged parent id for empty partial, got %s", got)
	}
	if lines := readLines(t, sessionPath(claudeDir)); len(lines) != 1 {
		t.Errorf("Expected no record for empty partial, got %d lines", len(lines))
	}

	// Partial with thinking and text
	partial, err := s.AppendAssistantPartial(testWorkspace, testSessionID, parent, "working...", "half an answer", "claude-sonnet-4-20250514")
	if err != nil {
		t.Fatalf("AppendAssistantPartial failed: %v", err)
	}
	if partial == parent {
		t.Error("Expected new record uuid for non-empty partial")
	}

	lines := readLines(t, sessionPath(claudeDir))
	e, err := entry.Decode([]byte(lines[len(lines)-1]))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(e.Message.Content.Blocks) != 2 {
		t.Fatalf("Expected thinking+text blocks, got %+v", e.Message.Content.Blocks)
	}
	if e.Message.Content.Blocks[0].Thinking != "working..." || e.Message.Content.Blocks[1].Text != "half an answer" {
		t.Errorf("Unexpected partial content: %+v", e.Message.Content.Blocks)
	}
}

func TestAppendInterrupt(t *testing.T) {
	claudeDir := t.TempDir()
	s := New(claudeDir)

	parent, _ := s.AppendUserMessage(testWorkspace, testSessionID, "", entry.MessageContent{Text: "go", IsText: true})
	id, err := s.AppendInterrupt(testWorkspace, testSessionID, parent)
	if err != nil {
		t.Fatalf("AppendInterrupt failed: %v", err)
	}

	lines := readLines(t, sessionPath(claudeDir))
	e, _ := entry.Decode([]byte(lines[len(lines)-1]))
	if !e.IsInterrupt || e.UUID != id {
		t.Errorf("Expected interrupt marker with uuid %s, got %+v", id, e)
	}
	if e.ParentUUID == nil || *e.ParentUUID != parent {
		t.Errorf("Expected parent %s, got %v", parent, e.ParentUUID)
	}
}

func TestAppendInjectedRequiresParent(t *testing.T) {
	claudeDir := t.TempDir()
	s := New(claudeDir)

	if _, err := s.AppendInjected(testWorkspace, testSessionID, "", entry.MessageContent{Text: "x", IsText: true}); err == nil {
		t.Fatal("Expected error for injected message without parent")
	}

	parent, _ := s.AppendUserMessage(testWorkspace, testSessionID, "", entry.MessageContent{Text: "go", IsText: true})
	id, err := s.AppendInjected(testWorkspace, testSessionID, parent, entry.MessageContent{Text: "aside", IsText: true})
	if err != nil {
		t.Fatalf("AppendInjected failed: %v", err)
	}

	lines := readLines(t, sessionPath(claudeDir))
	e, _ := entry.Decode([]byte(lines[len(lines)-1]))
	if !e.IsInjected || e.UUID != id {
		t.Errorf("Expected injected record, got %+v", e)
	}
}

func TestAppendQueueOperationValidation(t *testing.T) {
	claudeDir := t.TempDir()
	s := New(claudeDir)

	if err := s.AppendQueueOperation(testWorkspace, testSessionID, "requeue", ""); err == nil {
		t.Fatal("Expected error for unknown queue operation")
	}
	if err := s.AppendQueueOperation(testWorkspace, testSessionID, entry.QueueOperationEnqueue, "queued prompt"); err != nil {
		t.Fatalf("AppendQueueOperation failed: %v", err)
	}

	lines := readLines(t, sessionPath(claudeDir))
	e, _ := entry.Decode([]byte(lines[len(lines)-1]))
	if e.Operation != entry.QueueOperationEnqueue || e.Content != "queued prompt" {
		t.Errorf("Unexpected queue record: %+v", e)
	}
}

func TestAppendSubagentCorrelation(t *testing.T) {
	claudeDir := t.TempDir()
	s := New(claudeDir)

	if err := s.AppendSubagentCorrelation(testWorkspace, testSessionID, "", "a1"); err == nil {
		t.Fatal("Expected error for missing tool use id")
	}
	if err := s.AppendSubagentCorrelation(testWorkspace, testSessionID, "tu_1", "a1"); err != nil {
		t.Fatalf("AppendSubagentCorrelation failed: %v", err)
	}

	result, err := s.LoadSession(testWorkspace, testSessionID, LoadOptions{})
	if err != nil {
		t.Fatalf("LoadSession failed: %v", err)
	}
	if result.SubagentCorrelations["tu_1"] != "a1" {
		t.Errorf("Expected correlation recorded, got %v", result.SubagentCorrelations)
	}
}

func TestRenameReplacesCustomTitle(t *testing.T) {
	claudeDir := t.TempDir()
	writeSessionFile(t, claudeDir,
		userLine("1", "", "2024-01-01T00:00:00Z", "hello"),
		`{"type":"custom-title","title":"Old Name","timestamp":"2024-01-01T00:00:01Z"}`,
		assistantLine("2", "1", "2024-01-01T00:00:02Z", "hi"),
		`{malformed but kept`,
	)
	s := New(claudeDir)

	if err := s.Rename(testWorkspace, testSessionID, "New Name"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	lines := readLines(t, sessionPath(claudeDir))
	titles := 0
	var titleValue string
	malformedKept := false
	for _, line := range lines {
		if strings.Contains(line, `"custom-title"`) {
			titles++
			e, err := entry.Decode([]byte(line))
			if err == nil {
				titleValue = e.Title
			}
		}
		if line == `{malformed but kept` {
			malformedKept = true
		}
	}
	if titles != 1 {
		t.Errorf("Expected exactly one custom-title record, got %d", titles)
	}
	if titleValue != "New Name" {
		t.Errorf("Expected title 'New Name', got %q", titleValue)
	}
	if !malformedKept {
		t.Error("Expected malformed line kept verbatim through rename")
	}

	// Non-title records are unaltered
	if lines[0] != userLine("1", "", "2024-01-01T00:00:00Z", "hello") {
		t.Errorf("First record altered by rename: %s", lines[0])
	}
}

func TestRenameEmptyTitle(t *testing.T) {
	claudeDir := t.TempDir()
	s := New(claudeDir)

	err := s.Rename(testWorkspace, testSessionID, "")
	if !errors.Is(err, ErrEmptyTitle) {
		t.Fatalf("Expected ErrEmptyTitle, got %v", err)
	}
}

func TestRenameLeavesNoTempFiles(t *testing.T) {
	claudeDir := t.TempDir()
	writeSessionFile(t, claudeDir, userLine("1", "", "2024-01-01T00:00:00Z", "hello"))
	s := New(claudeDir)

	if err := s.Rename(testWorkspace, testSessionID, "Titled"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}

	dir := filepath.Dir(sessionPath(claudeDir))
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, de := range entries {
		if strings.HasSuffix(de.Name(), ".tmp") {
			t.Errorf("Temp file left behind: %s", de.Name())
		}
	}
}

func TestDeleteSession(t *testing.T) {
	claudeDir := t.TempDir()
	writeSessionFile(t, claudeDir,
		userLine("1", "", "2024-01-01T00:00:00Z", "hello"),
		`{"type":"subagent-correlation","toolUseId":"tu_1","agentId":"a1","timestamp":"2024-01-01T00:00:01Z"}`,
	)
	dir := filepath.Dir(sessionPath(claudeDir))

	flat := filepath.Join(dir, "agent-a1.jsonl")
	if err := os.WriteFile(flat, []byte(userLine("1", "", "2024-01-01T00:00:00Z", "sub")+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write flat agent log: %v", err)
	}
	nestedDir := filepath.Join(dir, testSessionID, "subagents")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatalf("Failed to create nested dir: %v", err)
	}
	nested := filepath.Join(nestedDir, "agent-a2.jsonl")
	if err := os.WriteFile(nested, []byte(userLine("1", "", "2024-01-01T00:00:00Z", "sub2")+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write nested agent log: %v", err)
	}

	if err := New(claudeDir).Delete(testWorkspace, testSessionID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	for _, path := range []string{sessionPath(claudeDir), flat, nested} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("Expected %s removed", path)
		}
	}
}

func TestDeleteMissingSession(t *testing.T) {
	claudeDir := t.TempDir()

	if err := New(claudeDir).Delete(testWorkspace, testSessionID); err != nil {
		t.Fatalf("Expected missing session delete to succeed, got %v", err)
	}
}
