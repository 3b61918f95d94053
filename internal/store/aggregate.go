// internal/store/aggregate.go
package store

import (
	"chronicle/internal/entry"
)

// usageSample pairs an assistant message's model with its last-seen usage.
type usageSample struct {
	Model string
	Usage entry.Usage
}

// aggregation is everything a single forward pass over a session's entries
// can compute. It is an explicit result object, not ambient state, so
// reconstruction stays pure.
type aggregation struct {
	index              map[string]*entry.Entry
	leafUUID           string
	correlations       map[string]string
	usageByMessageID   map[string]usageSample
	lastCompact        *entry.Entry
	lastCompactIndex   int
	injectedCandidates []*entry.Entry
}

// aggregate walks the decoded entries exactly once, O(n).
func aggregate(entries []*entry.Entry) *aggregation {
	agg := &aggregation{
		index:            make(map[string]*entry.Entry),
		correlations:     make(map[string]string),
		usageByMessageID: make(map[string]usageSample),
		lastCompactIndex: -1,
	}

	for i, e := range entries {
		// Duplicates are not expected; last occurrence wins deterministically.
		if e.UUID != "" {
			agg.index[e.UUID] = e
		}

		switch e.Type {
		case entry.TypeUser, entry.TypeAssistant:
			if e.UUID != "" {
				// File order, not timestamp: replayed content can carry
				// skewed timestamps.
				agg.leafUUID = e.UUID
			}
		}

		if e.Type == entry.TypeSubagentCorrelation && e.ToolUseID != "" && e.AgentID != "" {
			agg.correlations[e.ToolUseID] = e.AgentID
		}
		if e.Type == entry.TypeUser && e.ToolUseResult != nil && e.ToolUseResult.AgentID != "" {
			if toolUseID := e.FirstToolResultID(); toolUseID != "" {
				agg.correlations[toolUseID] = e.ToolUseResult.AgentID
			}
		}

		if e.Type == entry.TypeAssistant && !e.IsSidechain && e.Message != nil &&
			e.Message.ID != "" && e.Message.Usage != nil {
			// Later usage for the same message id is more complete
			agg.usageByMessageID[e.Message.ID] = usageSample{
				Model: e.Message.Model,
				Usage: *e.Message.Usage,
			}
		}

		if e.IsCompactBoundary() {
			agg.lastCompact = e
			agg.lastCompactIndex = i
		}

		if e.Type == entry.TypeUser && e.IsInjected && e.ParentUUID != nil {
			agg.injectedCandidates = append(agg.injectedCandidates, e)
		}
	}

	return agg
}
