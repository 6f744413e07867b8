// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"nexus/platform/shared/logger"
)

const (
	// DefaultEstimatedTokens is assumed when a request carries no estimate.
	DefaultEstimatedTokens = 1000

	// SpeedLatencyCeilingMs drops models slower than this for speed priority.
	SpeedLatencyCeilingMs = 2000

	// MaxAlternatives is how many runner-up candidates are returned.
	MaxAlternatives = 3

	// Blended per-request cost assumes this input/output token split.
	inputCostWeight  = 0.6
	outputCostWeight = 0.4

	// Balanced priority blend weights.
	blendCostWeight    = 0.4
	blendSpeedWeight   = 0.3
	blendQualityWeight = 0.3

	qualityBaseScore = 50.0
)

// Optimizer ranks catalog models for chat requests.
type Optimizer struct {
	repo  Repository
	cache *CatalogCache
	log   *logger.Logger
}

// New creates an Optimizer with the default 5-minute catalog TTL.
func New(repo Repository) *Optimizer {
	return NewWithCache(repo, NewCatalogCache(DefaultCatalogTTL))
}

// NewWithCache creates an Optimizer with a caller-supplied catalog cache.
func NewWithCache(repo Repository, cache *CatalogCache) *Optimizer {
	if cache == nil {
		cache = NewCatalogCache(DefaultCatalogTTL)
	}
	return &Optimizer{
		repo:  repo,
		cache: cache,
		log:   logger.New("optimizer"),
	}
}

// EstimateCost returns the blended per-request cost estimate for a model,
// assuming a 60/40 input/output token split.
func EstimateCost(m Model, tokens int) float64 {
	rate := m.InputCostPer1K*inputCostWeight + m.OutputCostPer1K*outputCostWeight
	return float64(tokens) / 1000.0 * rate
}

// QualityScore computes the heuristic quality score for a model: a base of
// 50 plus capability and context-window bonuses, capped at 100.
func QualityScore(m Model) float64 {
	score := qualityBaseScore
	if m.Reasoning {
		score += 20
	}
	if m.Thinking {
		score += 15
	}
	if m.Artifacts {
		score += 5
	}
	switch {
	case m.ContextWindow >= 200_000:
		score += 10
	case m.ContextWindow >= 100_000:
		score += 5
	}
	return math.Min(score, 100)
}

// Optimize selects the best provider/model pair for the request and up to
// three alternatives with tradeoff summaries.
func (o *Optimizer) Optimize(ctx context.Context, req Request) (*Recommendation, error) {
	priority := req.Priority
	if priority == "" {
		priority = PriorityBalanced
	}
	if !IsValidPriority(priority) {
		return nil, ErrInvalidPriority
	}

	tokens := req.EstimatedTokens
	if tokens <= 0 {
		tokens = DefaultEstimatedTokens
	}

	models, err := o.catalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load model catalog: %w", err)
	}

	candidates := eligibleCandidates(models, tokens, req.BudgetUSD, priority)
	if len(candidates) == 0 {
		return nil, ErrNoEligibleModels
	}

	rankCandidates(candidates, priority)

	top := candidates[0]
	rec := &Recommendation{
		Provider:         top.Model.Provider,
		Model:            top.Model.ModelID,
		EstimatedCostUSD: top.EstimatedCostUSD,
		AverageLatencyMs: top.Model.AverageLatencyMs,
		QualityScore:     top.QualityScore,
		Priority:         priority,
		Reasoning:        buildReasoning(top, priority, tokens, len(candidates)),
	}

	for _, alt := range candidates[1:] {
		if len(rec.Alternatives) >= MaxAlternatives {
			break
		}
		rec.Alternatives = append(rec.Alternatives, Alternative{
			Provider:         alt.Model.Provider,
			Model:            alt.Model.ModelID,
			EstimatedCostUSD: alt.EstimatedCostUSD,
			AverageLatencyMs: alt.Model.AverageLatencyMs,
			QualityScore:     alt.QualityScore,
			Tradeoff:         buildTradeoff(alt, top),
		})
	}
	rec.EligibleCount = len(candidates)

	o.log.Debug(req.UserID, "", "optimization complete", map[string]interface{}{
		"priority":       string(priority),
		"provider":       rec.Provider,
		"model":          rec.Model,
		"estimated_cost": rec.EstimatedCostUSD,
		"eligible":       rec.EligibleCount,
	})

	return rec, nil
}

// ListModels returns catalog rows matching opts and the total row count.
func (o *Optimizer) ListModels(ctx context.Context, opts ListModelsOptions) ([]Model, int, error) {
	return o.repo.ListModels(ctx, opts)
}

// GetModel looks up one catalog row by ID.
func (o *Optimizer) GetModel(ctx context.Context, id string) (*Model, error) {
	return o.repo.GetModel(ctx, id)
}

// UpsertModel writes a catalog row and drops the cached catalog.
func (o *Optimizer) UpsertModel(ctx context.Context, model *Model) error {
	if err := o.repo.UpsertModel(ctx, model); err != nil {
		return err
	}
	o.cache.Invalidate()
	return nil
}

// SetModelActive flips a row's active flag and drops the cached catalog.
func (o *Optimizer) SetModelActive(ctx context.Context, id string, active bool) error {
	if err := o.repo.SetModelActive(ctx, id, active); err != nil {
		return err
	}
	o.cache.Invalidate()
	return nil
}

// InvalidateCatalog forces the next Optimize to refetch from the repository.
func (o *Optimizer) InvalidateCatalog() {
	o.cache.Invalidate()
}

// CatalogStats exposes cache counters for the metrics endpoint.
func (o *Optimizer) CatalogStats() CacheStats {
	return o.cache.GetStats()
}

// IsHealthy reports whether the backing repository is reachable.
func (o *Optimizer) IsHealthy(ctx context.Context) bool {
	return o.repo.Ping(ctx) == nil
}

// catalog returns the chat-enabled catalog, serving the TTL cache when fresh.
func (o *Optimizer) catalog(ctx context.Context) ([]Model, error) {
	if models, ok := o.cache.Get(); ok {
		return models, nil
	}

	models, err := o.repo.ListChatModels(ctx)
	if err != nil {
		return nil, err
	}
	o.cache.Set(models)
	return models, nil
}

// eligibleCandidates applies the budget, access and priority filters.
func eligibleCandidates(models []Model, tokens int, budgetUSD float64, priority Priority) []*Candidate {
	candidates := make([]*Candidate, 0, len(models))
	for i := range models {
		m := models[i]

		// Access-restricted models are never recommended.
		if m.Restricted() {
			continue
		}

		cost := EstimateCost(m, tokens)
		if budgetUSD > 0 && cost > budgetUSD {
			continue
		}
		if priority == PrioritySpeed && m.AverageLatencyMs > SpeedLatencyCeilingMs {
			continue
		}
		if priority == PriorityQuality && !m.HasAdvancedCapability() {
			continue
		}

		candidates = append(candidates, &Candidate{
			Model:            m,
			EstimatedCostUSD: cost,
			QualityScore:     QualityScore(m),
		})
	}
	return candidates
}

// rankCandidates orders candidates in place for the given priority.
// Sorting is stable so ties keep catalog order and results stay
// deterministic for a fixed catalog.
func rankCandidates(candidates []*Candidate, priority Priority) {
	switch priority {
	case PriorityCost:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].EstimatedCostUSD < candidates[j].EstimatedCostUSD
		})
	case PrioritySpeed:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Model.AverageLatencyMs < candidates[j].Model.AverageLatencyMs
		})
	case PriorityQuality:
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].QualityScore > candidates[j].QualityScore
		})
	default:
		scoreBlended(candidates)
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].BlendedScore > candidates[j].BlendedScore
		})
	}
}

// scoreBlended assigns the balanced score: 40% cost, 30% speed, 30% quality,
// each normalized against the eligible set so no single axis dominates.
func scoreBlended(candidates []*Candidate) {
	var maxCost, maxLatency, maxQuality float64
	for _, c := range candidates {
		maxCost = math.Max(maxCost, c.EstimatedCostUSD)
		maxLatency = math.Max(maxLatency, float64(c.Model.AverageLatencyMs))
		maxQuality = math.Max(maxQuality, c.QualityScore)
	}

	for _, c := range candidates {
		costScore := 1.0
		if maxCost > 0 {
			costScore = 1.0 - c.EstimatedCostUSD/maxCost
		}
		speedScore := 1.0
		if maxLatency > 0 {
			speedScore = 1.0 - float64(c.Model.AverageLatencyMs)/maxLatency
		}
		qualityScore := 0.0
		if maxQuality > 0 {
			qualityScore = c.QualityScore / maxQuality
		}
		c.BlendedScore = blendCostWeight*costScore +
			blendSpeedWeight*speedScore +
			blendQualityWeight*qualityScore
	}
}

// buildReasoning formats the human-readable explanation for the pick.
func buildReasoning(top *Candidate, priority Priority, tokens, eligible int) string {
	switch priority {
	case PriorityCost:
		return fmt.Sprintf("Lowest estimated cost at $%.6f for ~%d tokens among %d eligible models",
			top.EstimatedCostUSD, tokens, eligible)
	case PrioritySpeed:
		return fmt.Sprintf("Fastest average latency at %dms (under the %dms ceiling) among %d eligible models",
			top.Model.AverageLatencyMs, SpeedLatencyCeilingMs, eligible)
	case PriorityQuality:
		return fmt.Sprintf("Highest quality score %.0f (%s) among %d eligible models",
			top.QualityScore, capabilitySummary(top.Model), eligible)
	default:
		return fmt.Sprintf("Best balance of cost ($%.6f), latency (%dms) and quality (%.0f) among %d eligible models",
			top.EstimatedCostUSD, top.Model.AverageLatencyMs, top.QualityScore, eligible)
	}
}

// buildTradeoff summarizes an alternative's cost and latency deltas
// relative to the recommendation.
func buildTradeoff(alt, rec *Candidate) string {
	costPhrase := "same cost"
	if rec.EstimatedCostUSD > 0 {
		delta := (alt.EstimatedCostUSD - rec.EstimatedCostUSD) / rec.EstimatedCostUSD * 100
		switch {
		case delta >= 1:
			costPhrase = fmt.Sprintf("%.0f%% more expensive", delta)
		case delta <= -1:
			costPhrase = fmt.Sprintf("%.0f%% cheaper", -delta)
		}
	} else if alt.EstimatedCostUSD > 0 {
		costPhrase = "more expensive"
	}

	latencyPhrase := "similar latency"
	if rec.Model.AverageLatencyMs > 0 {
		delta := float64(alt.Model.AverageLatencyMs-rec.Model.AverageLatencyMs) /
			float64(rec.Model.AverageLatencyMs) * 100
		switch {
		case delta >= 1:
			latencyPhrase = fmt.Sprintf("%.0f%% slower", delta)
		case delta <= -1:
			latencyPhrase = fmt.Sprintf("%.0f%% faster", -delta)
		}
	} else if alt.Model.AverageLatencyMs > 0 {
		latencyPhrase = "slower"
	}

	return fmt.Sprintf("%s, %s than %s", costPhrase, latencyPhrase, rec.Model.ModelID)
}

func capabilitySummary(m Model) string {
	var caps []string
	if m.Reasoning {
		caps = append(caps, "reasoning")
	}
	if m.Thinking {
		caps = append(caps, "thinking")
	}
	if m.Artifacts {
		caps = append(caps, "artifacts")
	}
	if len(caps) == 0 {
		return "no advanced capabilities"
	}
	return strings.Join(caps, ", ")
}
