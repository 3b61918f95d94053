// internal/paths/paths.go
package paths

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrPathTraversal is returned when a workspace path contains "..".
	ErrPathTraversal = errors.New("workspace path must not contain '..'")

	// ErrInvalidSessionID is returned when a session id is not a UUID.
	ErrInvalidSessionID = errors.New("invalid session id")
)

var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

var driveLetterPattern = regexp.MustCompile(`^[a-z]:`)

// ValidSessionID reports whether id matches the standard UUID pattern,
// case-insensitive.
func ValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(strings.ToLower(id))
}

// EncodeProjectPath maps a workspace path to the directory name used under
// <home>/.claude/projects. Separators, colons and spaces all collapse to '-';
// a Windows drive letter is upper-cased first so the encoding is stable
// across callers that differ in drive-letter case.
func EncodeProjectPath(workspace string) (string, error) {
	if strings.Contains(workspace, "..") {
		return "", ErrPathTraversal
	}
	p := strings.ReplaceAll(workspace, "\\", "/")
	if driveLetterPattern.MatchString(p) {
		p = strings.ToUpper(p[:1]) + p[1:]
	}
	p = strings.ReplaceAll(p, ":", "-")
	p = strings.ReplaceAll(p, "/", "-")
	p = strings.ReplaceAll(p, " ", "-")
	return p, nil
}

// ProjectsRoot returns the projects directory under a claude dir,
// conventionally <home>/.claude/projects.
func ProjectsRoot(claudeDir string) string {
	return filepath.Join(claudeDir, "projects")
}

// ProjectDir resolves the session directory for a workspace. If the primary
// encoded directory is unreadable, the legacy variant with underscores
// swapped for hyphens is tried before giving up.
func ProjectDir(claudeDir, workspace string) (string, error) {
	encoded, err := EncodeProjectPath(workspace)
	if err != nil {
		return "", err
	}
	primary := filepath.Join(ProjectsRoot(claudeDir), encoded)
	if _, err := os.Stat(primary); err == nil {
		return primary, nil
	}
	legacy := filepath.Join(ProjectsRoot(claudeDir), strings.ReplaceAll(encoded, "_", "-"))
	if legacy != primary {
		if _, err := os.Stat(legacy); err == nil {
			return legacy, nil
		}
	}
	// Neither exists yet; the primary encoding is where new files go.
	return primary, nil
}

// SessionFilePath returns the JSONL path for a session, validating the id.
func SessionFilePath(sessionDir, sessionID string) (string, error) {
	if !ValidSessionID(sessionID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}
	return filepath.Join(sessionDir, sessionID+".jsonl"), nil
}

// AgentLogPath locates a subagent's log. The flat layout
// agent-<id>.jsonl is preferred; the nested
// <sessionID>/subagents/agent-<id>.jsonl layout is tried when the flat file
// is absent. The flat path is returned even when neither exists, since that
// is where a new agent log is created.
func AgentLogPath(sessionDir, sessionID, agentID string) string {
	flat := filepath.Join(sessionDir, "agent-"+agentID+".jsonl")
	if _, err := os.Stat(flat); err == nil {
		return flat
	}
	nested := filepath.Join(sessionDir, sessionID, "subagents", "agent-"+agentID+".jsonl")
	if _, err := os.Stat(nested); err == nil {
		return nested
	}
	return flat
}

// AgentLogCandidates returns the on-disk agent logs belonging to a session:
// flat logs for the given agent ids plus everything under the nested
// <sessionID>/subagents directory. Used by delete.
func AgentLogCandidates(sessionDir, sessionID string, agentIDs []string) []string {
	var out []string
	for _, id := range agentIDs {
		flat := filepath.Join(sessionDir, "agent-"+id+".jsonl")
		if _, err := os.Stat(flat); err == nil {
			out = append(out, flat)
		}
	}
	nestedDir := filepath.Join(sessionDir, sessionID, "subagents")
	nested, err := os.ReadDir(nestedDir)
	if err == nil {
		for _, e := range nested {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".jsonl") {
				out = append(out, filepath.Join(nestedDir, e.Name()))
			}
		}
	}
	return out
}
