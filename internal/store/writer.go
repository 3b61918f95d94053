// internal/store/writer.go
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"chronicle/internal/entry"
	"chronicle/internal/gitinfo"
	"chronicle/internal/paths"
)

// ErrEmptyTitle is returned when Rename is called with an empty target.
var ErrEmptyTitle = errors.New("session title must not be empty")

const logVersion = "1.0.0"

// branch resolves the workspace's git branch once and caches it for the
// Store's lifetime.
func (s *Store) branch(workspace string) string {
	s.branchMu.Lock()
	defer s.branchMu.Unlock()
	if b, ok := s.branches[workspace]; ok {
		return b
	}
	b, err := gitinfo.CurrentBranch(workspace)
	if err != nil {
		b = ""
	}
	s.branches[workspace] = b
	return b
}

// newRecord stamps the fields common to every written record.
func (s *Store) newRecord(recordType, workspace, sessionID string) entry.Entry {
	return entry.Entry{
		Type:      recordType,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		SessionID: sessionID,
		Cwd:       workspace,
		Version:   logVersion,
		GitBranch: s.branch(workspace),
	}
}

// appendRecords writes one or more complete, newline-terminated JSON lines in
// a single write syscall, so a concurrent reader only ever observes a shorter
// prefix of the file, never a torn record.
func appendRecords(path string, records ...*entry.Entry) error {
	var buf []byte
	for _, r := range records {
		line, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(buf); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// ensureSessionPath validates input and creates the project directory.
func (s *Store) ensureSessionPath(workspace, sessionID string) (string, error) {
	path, err := s.sessionFilePath(workspace, sessionID)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	return path, nil
}

// InitializeSession creates a session file containing a single dequeue
// marker. An already existing file is left untouched.
func (s *Store) InitializeSession(workspace, sessionID string) error {
	path, err := s.ensureSessionPath(workspace, sessionID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	rec := s.newRecord(entry.TypeQueueOperation, workspace, sessionID)
	rec.Operation = entry.QueueOperationDequeue
	return appendRecords(path, &rec)
}

// AppendUserMessage appends a user turn and returns its generated uuid.
// parentUUID may be empty for the root of the file.
func (s *Store) AppendUserMessage(workspace, sessionID, parentUUID string, content entry.MessageContent) (string, error) {
	path, err := s.ensureSessionPath(workspace, sessionID)
	if err != nil {
		return "", err
	}
	rec := s.newRecord(entry.TypeUser, workspace, sessionID)
	rec.UUID = uuid.New().String()
	if parentUUID != "" {
		rec.ParentUUID = &parentUUID
	}
	rec.Message = &entry.Message{Role: "user", Content: content}
	if err := appendRecords(path, &rec); err != nil {
		return "", err
	}
	return rec.UUID, nil
}

// AppendAssistantPartial persists what an interrupted assistant turn managed
// to produce. When both thinking and text are empty there is nothing worth a
// record; the unchanged parent id is returned so the caller keeps chaining
// from the same point.
func (s *Store) AppendAssistantPartial(workspace, sessionID, parentUUID, thinking, text, model string) (string, error) {
	if thinking == "" && text == "" {
		return parentUUID, nil
	}
	path, err := s.ensureSessionPath(workspace, sessionID)
	if err != nil {
		return "", err
	}

	var blocks []entry.ContentBlock
	if thinking != "" {
		blocks = append(blocks, entry.ContentBlock{Type: "thinking", Thinking: thinking})
	}
	if text != "" {
		blocks = append(blocks, entry.ContentBlock{Type: "text", Text: text})
	}

	rec := s.newRecord(entry.TypeAssistant, workspace, sessionID)
	rec.UUID = uuid.New().String()
	if parentUUID != "" {
		rec.ParentUUID = &parentUUID
	}
	rec.Message = &entry.Message{
		Role:    "assistant",
		Model:   model,
		Content: entry.MessageContent{Blocks: blocks},
	}
	if err := appendRecords(path, &rec); err != nil {
		return "", err
	}
	return rec.UUID, nil
}

// AppendInterrupt appends the marker recording that the user interrupted the
// assistant mid-turn.
func (s *Store) AppendInterrupt(workspace, sessionID, parentUUID string) (string, error) {
	path, err := s.ensureSessionPath(workspace, sessionID)
	if err != nil {
		return "", err
	}
	rec := s.newRecord(entry.TypeUser, workspace, sessionID)
	rec.UUID = uuid.New().String()
	if parentUUID != "" {
		rec.ParentUUID = &parentUUID
	}
	rec.IsInterrupt = true
	rec.Message = &entry.Message{
		Role:    "user",
		Content: entry.MessageContent{Text: "[Request interrupted by user]", IsText: true},
	}
	if err := appendRecords(path, &rec); err != nil {
		return "", err
	}
	return rec.UUID, nil
}

// AppendInjected appends a user message inserted beside the linear chain: it
// is parented onto an active record but does not become the leaf.
func (s *Store) AppendInjected(workspace, sessionID, parentUUID string, content entry.MessageContent) (string, error) {
	if parentUUID == "" {
		return "", fmt.Errorf("injected message requires a parent uuid")
	}
	path, err := s.ensureSessionPath(workspace, sessionID)
	if err != nil {
		return "", err
	}
	rec := s.newRecord(entry.TypeUser, workspace, sessionID)
	rec.UUID = uuid.New().String()
	rec.ParentUUID = &parentUUID
	rec.IsInjected = true
	rec.Message = &entry.Message{Role: "user", Content: content}
	if err := appendRecords(path, &rec); err != nil {
		return "", err
	}
	return rec.UUID, nil
}

// AppendQueueOperation records an enqueue or dequeue of queued user input.
func (s *Store) AppendQueueOperation(workspace, sessionID, operation, content string) error {
	if operation != entry.QueueOperationEnqueue && operation != entry.QueueOperationDequeue {
		return fmt.Errorf("unknown queue operation %q", operation)
	}
	path, err := s.ensureSessionPath(workspace, sessionID)
	if err != nil {
		return err
	}
	rec := s.newRecord(entry.TypeQueueOperation, workspace, sessionID)
	rec.Operation = operation
	rec.Content = content
	return appendRecords(path, &rec)
}

// AppendSubagentCorrelation records the mapping from a Task tool invocation
// to the subagent's own log id.
func (s *Store) AppendSubagentCorrelation(workspace, sessionID, toolUseID, agentID string) error {
	if toolUseID == "" || agentID == "" {
		return fmt.Errorf("subagent correlation requires tool use id and agent id")
	}
	path, err := s.ensureSessionPath(workspace, sessionID)
	if err != nil {
		return err
	}
	rec := s.newRecord(entry.TypeSubagentCorrelation, workspace, sessionID)
	rec.ToolUseID = toolUseID
	rec.AgentID = agentID
	return appendRecords(path, &rec)
}

// Rename sets the session's custom title. This is the one non-append
// mutation on a live file: prior custom-title records are dropped, every
// other line is carried over verbatim (malformed lines included), and the
// rewritten file is swapped in atomically via a temp file.
func (s *Store) Rename(workspace, sessionID, title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	path, err := s.sessionFilePath(workspace, sessionID)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}

	var kept []string
	scanner := bufio.NewScanner(file)
	const maxCapacity = 1024 * 1024
	buf := make([]byte, maxCapacity)
	scanner.Buffer(buf, maxCapacity)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		e, err := entry.Decode([]byte(line))
		if err == nil && e.Type == entry.TypeCustomTitle {
			continue
		}
		kept = append(kept, line)
	}
	scanErr := scanner.Err()
	file.Close()
	if scanErr != nil {
		return fmt.Errorf("read session file: %w", scanErr)
	}

	titleRec := s.newRecord(entry.TypeCustomTitle, workspace, sessionID)
	titleRec.Title = title
	titleLine, err := json.Marshal(&titleRec)
	if err != nil {
		return fmt.Errorf("marshal title record: %w", err)
	}
	kept = append(kept, string(titleLine))

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+sessionID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	writeAll := func() error {
		w := bufio.NewWriter(tmp)
		for _, line := range kept {
			if _, err := w.WriteString(line + "\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
		return tmp.Close()
	}
	if err := writeAll(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("swap session file: %w", err)
	}
	return nil
}

// Delete removes a session file and its agent sub-logs, both flat and nested
// layouts. A missing session file is success. Agent-log failures are logged
// and skipped rather than aborting the delete.
func (s *Store) Delete(workspace, sessionID string) error {
	dir, err := paths.ProjectDir(s.claudeDir, workspace)
	if err != nil {
		return err
	}
	path, err := paths.SessionFilePath(dir, sessionID)
	if err != nil {
		return err
	}

	// Correlations name the flat agent logs belonging to this session.
	var agentIDs []string
	if entries, err := readEntries(path); err == nil {
		seen := make(map[string]struct{})
		agg := aggregate(entries)
		for _, agentID := range agg.correlations {
			if _, dup := seen[agentID]; dup {
				continue
			}
			seen[agentID] = struct{}{}
			agentIDs = append(agentIDs, agentID)
		}
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session file: %w", err)
	}

	for _, agentPath := range paths.AgentLogCandidates(dir, sessionID, agentIDs) {
		if err := os.Remove(agentPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[Store] Failed to delete agent log %s: %v", agentPath, err)
		}
	}

	// Clean up the nested layout directories if they are now empty
	os.Remove(filepath.Join(dir, sessionID, "subagents"))
	os.Remove(filepath.Join(dir, sessionID))

	return nil
}
