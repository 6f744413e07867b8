// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

// Package optimizer ranks LLM provider/model pairs against cost, latency
// and capability constraints, and analyzes per-user usage patterns to
// surface spend trends and savings opportunities.
package optimizer

import (
	"time"
)

// Priority selects the ranking objective for a recommendation.
type Priority string

const (
	// PriorityCost ranks eligible models by ascending estimated cost.
	PriorityCost Priority = "cost"

	// PrioritySpeed ranks by ascending average latency and drops slow models.
	PrioritySpeed Priority = "speed"

	// PriorityQuality ranks by a heuristic quality score and requires at
	// least one advanced capability flag.
	PriorityQuality Priority = "quality"

	// PriorityBalanced blends normalized cost, speed and quality scores.
	PriorityBalanced Priority = "balanced"
)

// IsValidPriority reports whether p is a recognized priority value.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityCost, PrioritySpeed, PriorityQuality, PriorityBalanced:
		return true
	}
	return false
}

// Model is one row of the model catalog. Costs are USD per 1K tokens.
type Model struct {
	ID               string    `json:"id"`
	Provider         string    `json:"provider"`
	ModelID          string    `json:"model_id"`
	DisplayName      string    `json:"display_name,omitempty"`
	InputCostPer1K   float64   `json:"input_cost_per_1k"`
	OutputCostPer1K  float64   `json:"output_cost_per_1k"`
	AverageLatencyMs int       `json:"average_latency_ms"`
	ContextWindow    int       `json:"context_window"`
	Reasoning        bool      `json:"reasoning"`
	Thinking         bool      `json:"thinking"`
	Artifacts        bool      `json:"artifacts"`
	AllowedRoles     []string  `json:"allowed_roles,omitempty"`
	Active           bool      `json:"active"`
	ChatEnabled      bool      `json:"chat_enabled"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
}

// Restricted reports whether access to the model is limited to specific
// roles. Restricted models are never recommended.
func (m *Model) Restricted() bool {
	return len(m.AllowedRoles) > 0
}

// HasAdvancedCapability reports whether the model carries at least one of
// the reasoning, thinking or artifacts flags.
func (m *Model) HasAdvancedCapability() bool {
	return m.Reasoning || m.Thinking || m.Artifacts
}

// Request describes one optimization query.
type Request struct {
	UserID string `json:"user_id,omitempty"`

	// EstimatedTokens is the expected total token volume of the chat
	// request. Values <= 0 default to DefaultEstimatedTokens.
	EstimatedTokens int `json:"estimated_tokens,omitempty"`

	// BudgetUSD caps the estimated per-request cost. <= 0 means no cap.
	BudgetUSD float64 `json:"budget_usd,omitempty"`

	// Priority selects the ranking objective. Empty defaults to balanced.
	Priority Priority `json:"priority,omitempty"`
}

// Candidate is a catalog model annotated with request-specific scores.
type Candidate struct {
	Model            Model   `json:"model"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	QualityScore     float64 `json:"quality_score"`
	BlendedScore     float64 `json:"blended_score,omitempty"`
}

// Alternative is a runner-up recommendation with a tradeoff summary
// relative to the primary recommendation.
type Alternative struct {
	Provider         string  `json:"provider"`
	Model            string  `json:"model"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	AverageLatencyMs int     `json:"average_latency_ms"`
	QualityScore     float64 `json:"quality_score"`
	Tradeoff         string  `json:"tradeoff"`
}

// Recommendation is the result of Optimize.
type Recommendation struct {
	Provider         string        `json:"provider"`
	Model            string        `json:"model"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	AverageLatencyMs int           `json:"average_latency_ms"`
	QualityScore     float64       `json:"quality_score"`
	Priority         Priority      `json:"priority"`
	Reasoning        string        `json:"reasoning"`
	Alternatives     []Alternative `json:"alternatives,omitempty"`
	EligibleCount    int           `json:"eligible_count"`
}

// ProviderMetric is one recorded LLM call, the raw material for usage
// pattern analysis.
type ProviderMetric struct {
	ID         int64     `json:"id,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	UserID     string    `json:"user_id"`
	Provider   string    `json:"provider"`
	ModelID    string    `json:"model_id"`
	TokensIn   int       `json:"tokens_in"`
	TokensOut  int       `json:"tokens_out"`
	CostUSD    float64   `json:"cost_usd"`
	LatencyMs  int64     `json:"latency_ms"`
	RecordedAt time.Time `json:"recorded_at,omitempty"`
}

// TotalTokens returns the combined token count of the call.
func (m *ProviderMetric) TotalTokens() int {
	return m.TokensIn + m.TokensOut
}

// ModelUsage aggregates spend for one provider/model pair.
type ModelUsage struct {
	Provider       string  `json:"provider"`
	ModelID        string  `json:"model_id"`
	TotalCostUSD   float64 `json:"total_cost_usd"`
	TotalTokensIn  int     `json:"total_tokens_in"`
	TotalTokensOut int     `json:"total_tokens_out"`
	RequestCount   int     `json:"request_count"`
}

// DailyCost is one day of aggregated spend.
type DailyCost struct {
	Day     time.Time `json:"day"`
	CostUSD float64   `json:"cost_usd"`
}

// CostTrend classifies the direction of recent spend.
type CostTrend string

const (
	TrendIncreasing CostTrend = "increasing"
	TrendDecreasing CostTrend = "decreasing"
	TrendStable     CostTrend = "stable"
)

// UsageAnalysis is the result of AnalyzeUsagePatterns.
type UsageAnalysis struct {
	UserID              string       `json:"user_id"`
	WindowDays          int          `json:"window_days"`
	TotalCostUSD        float64      `json:"total_cost_usd"`
	ByModel             []ModelUsage `json:"by_model"`
	DailyCosts          []DailyCost  `json:"daily_costs"`
	Trend               CostTrend    `json:"trend"`
	TrendChangePct      float64      `json:"trend_change_pct"`
	EstimatedSavingsUSD float64      `json:"estimated_savings_usd"`
	GeneratedAt         time.Time    `json:"generated_at"`
}

// ListModelsOptions filters catalog queries.
type ListModelsOptions struct {
	Provider    string `json:"provider,omitempty"`
	ActiveOnly  bool   `json:"active_only,omitempty"`
	ChatEnabled *bool  `json:"chat_enabled,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// Validate checks a catalog row before it is written.
func (m *Model) Validate() error {
	if m.ID == "" {
		return ErrInvalidModelID
	}
	if m.Provider == "" || m.ModelID == "" {
		return ErrInvalidModelRef
	}
	if m.InputCostPer1K < 0 || m.OutputCostPer1K < 0 {
		return ErrInvalidModelCost
	}
	if m.AverageLatencyMs < 0 {
		return ErrInvalidModelLatency
	}
	return nil
}
