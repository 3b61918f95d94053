// internal/usage/stats.go
package usage

import (
	"sort"
	"strings"

	"chronicle/internal/entry"
)

// Claude 4 pricing constants (per million tokens)
const (
	// Opus 4
	Opus4InputPrice      = 15.0
	Opus4OutputPrice     = 75.0
	Opus4CacheWritePrice = 18.75
	Opus4CacheReadPrice  = 1.50

	// Sonnet 4
	Sonnet4InputPrice      = 3.0
	Sonnet4OutputPrice     = 15.0
	Sonnet4CacheWritePrice = 3.75
	Sonnet4CacheReadPrice  = 0.30

	// Haiku 4
	Haiku4InputPrice      = 0.80
	Haiku4OutputPrice     = 4.0
	Haiku4CacheWritePrice = 1.0
	Haiku4CacheReadPrice  = 0.08
)

// calculateCost calculates cost based on model and token usage
func calculateCost(model string, inputTokens, outputTokens, cacheCreation, cacheRead int64) float64 {
	var inputPrice, outputPrice, cacheWritePrice, cacheReadPrice float64

	switch {
	case strings.Contains(model, "opus"):
		inputPrice = Opus4InputPrice
		outputPrice = Opus4OutputPrice
		cacheWritePrice = Opus4CacheWritePrice
		cacheReadPrice = Opus4CacheReadPrice
	case strings.Contains(model, "sonnet"):
		inputPrice = Sonnet4InputPrice
		outputPrice = Sonnet4OutputPrice
		cacheWritePrice = Sonnet4CacheWritePrice
		cacheReadPrice = Sonnet4CacheReadPrice
	case strings.Contains(model, "haiku"):
		inputPrice = Haiku4InputPrice
		outputPrice = Haiku4OutputPrice
		cacheWritePrice = Haiku4CacheWritePrice
		cacheReadPrice = Haiku4CacheReadPrice
	default:
		// Return 0 for unknown models
		return 0.0
	}

	cost := (float64(inputTokens) * inputPrice / 1_000_000.0) +
		(float64(outputTokens) * outputPrice / 1_000_000.0) +
		(float64(cacheCreation) * cacheWritePrice / 1_000_000.0) +
		(float64(cacheRead) * cacheReadPrice / 1_000_000.0)

	return cost
}

// Sample is the last observed usage for one assistant message id.
type Sample struct {
	Model string
	Usage entry.Usage
}

// ModelStats aggregates token usage for a single model within a session.
type ModelStats struct {
	Model              string  `json:"model"`
	MessageCount       int     `json:"message_count"`
	TotalInputTokens   int64   `json:"total_input_tokens"`
	TotalOutputTokens  int64   `json:"total_output_tokens"`
	TotalCacheCreation int64   `json:"total_cache_creation_tokens"`
	TotalCacheRead     int64   `json:"total_cache_read_tokens"`
	CostUSD            float64 `json:"cost_usd"`
}

// SessionStats is the per-request usage side channel for one session.
type SessionStats struct {
	TotalInputTokens   int64         `json:"total_input_tokens"`
	TotalOutputTokens  int64         `json:"total_output_tokens"`
	TotalCacheCreation int64         `json:"total_cache_creation_tokens"`
	TotalCacheRead     int64         `json:"total_cache_read_tokens"`
	TotalCostUSD       float64       `json:"total_cost_usd"`
	ByModel            []*ModelStats `json:"by_model"`
}

// Collect folds the per-message usage samples into session totals, grouped
// by model and sorted by descending cost.
func Collect(samples map[string]Sample) *SessionStats {
	stats := &SessionStats{}
	byModel := make(map[string]*ModelStats)

	for _, s := range samples {
		m, ok := byModel[s.Model]
		if !ok {
			m = &ModelStats{Model: s.Model}
			byModel[s.Model] = m
		}
		m.MessageCount++
		m.TotalInputTokens += s.Usage.InputTokens
		m.TotalOutputTokens += s.Usage.OutputTokens
		m.TotalCacheCreation += s.Usage.CacheCreationInputTokens
		m.TotalCacheRead += s.Usage.CacheReadInputTokens
	}

	for _, m := range byModel {
		m.CostUSD = calculateCost(m.Model, m.TotalInputTokens, m.TotalOutputTokens, m.TotalCacheCreation, m.TotalCacheRead)
		stats.TotalInputTokens += m.TotalInputTokens
		stats.TotalOutputTokens += m.TotalOutputTokens
		stats.TotalCacheCreation += m.TotalCacheCreation
		stats.TotalCacheRead += m.TotalCacheRead
		stats.TotalCostUSD += m.CostUSD
		stats.ByModel = append(stats.ByModel, m)
	}

	sort.Slice(stats.ByModel, func(i, j int) bool {
		if stats.ByModel[i].CostUSD != stats.ByModel[j].CostUSD {
			return stats.ByModel[i].CostUSD > stats.ByModel[j].CostUSD
		}
		return stats.ByModel[i].Model < stats.ByModel[j].Model
	})

	return stats
}
