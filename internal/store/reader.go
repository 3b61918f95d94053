// internal/store/reader.go
package store

import (
	"fmt"
	"sort"

	"chronicle/internal/entry"
	"chronicle/internal/paths"
	"chronicle/internal/usage"
)

// PaginatedResult is one page of a session's displayable entries plus the
// side channels computed once per request.
type PaginatedResult struct {
	Entries    []*entry.Entry `json:"entries"`
	TotalCount int            `json:"totalCount"`
	HasMore    bool           `json:"hasMore"`
	NextOffset int            `json:"nextOffset"`

	CompactInfo          *CompactInfo        `json:"compactInfo,omitempty"`
	InjectedUUIDs        []string            `json:"injectedUuids"`
	SubagentCorrelations map[string]string   `json:"subagentCorrelations"`
	Stats                *usage.SessionStats `json:"stats,omitempty"`
}

// LoadOptions selects the page and optionally overrides the leaf used for
// active-branch reconstruction.
type LoadOptions struct {
	Offset int
	Limit  int
	Leaf   string
}

// LoadSession reconstructs the active conversation branch of a session and
// returns the requested page, counting backward from the newest entry. A
// missing session file yields an empty result, not an error.
func (s *Store) LoadSession(workspace, sessionID string, opts LoadOptions) (*PaginatedResult, error) {
	path, err := s.sessionFilePath(workspace, sessionID)
	if err != nil {
		return nil, err
	}

	entries, err := readEntries(path)
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.pageLimit
	}

	agg := aggregate(entries)
	active := activeBranch(agg, opts.Leaf)
	injected := resolveInjected(agg, active)
	compact := resolveCompaction(entries, agg, active)

	cutoff := ""
	if compact != nil {
		cutoff = compact.Timestamp
	}
	display := filterDisplayable(entries, active, injected, cutoff)
	window, hasMore, nextOffset := paginate(display, opts.Offset, limit)

	injectedUUIDs := make([]string, 0, len(injected))
	for id := range injected {
		injectedUUIDs = append(injectedUUIDs, id)
	}
	sort.Strings(injectedUUIDs)

	samples := make(map[string]usage.Sample, len(agg.usageByMessageID))
	for id, u := range agg.usageByMessageID {
		samples[id] = usage.Sample{Model: u.Model, Usage: u.Usage}
	}

	return &PaginatedResult{
		Entries:              window,
		TotalCount:           len(display),
		HasMore:              hasMore,
		NextOffset:           nextOffset,
		CompactInfo:          compact,
		InjectedUUIDs:        injectedUUIDs,
		SubagentCorrelations: agg.correlations,
		Stats:                usage.Collect(samples),
	}, nil
}

// AgentData is a subagent's decoded log.
type AgentData struct {
	AgentID string         `json:"agentId"`
	Entries []*entry.Entry `json:"entries"`
}

// LoadAgentLog reads a subagent's sub-log, trying the flat layout first and
// the nested <sessionId>/subagents layout second. A missing log yields an
// empty AgentData.
func (s *Store) LoadAgentLog(workspace, sessionID, agentID string) (*AgentData, error) {
	dir, err := paths.ProjectDir(s.claudeDir, workspace)
	if err != nil {
		return nil, err
	}
	if !paths.ValidSessionID(sessionID) {
		return nil, fmt.Errorf("%w: %q", paths.ErrInvalidSessionID, sessionID)
	}

	path := paths.AgentLogPath(dir, sessionID, agentID)
	entries, err := readEntries(path)
	if err != nil {
		return nil, fmt.Errorf("read agent log %s: %w", agentID, err)
	}
	return &AgentData{AgentID: agentID, Entries: entries}, nil
}
