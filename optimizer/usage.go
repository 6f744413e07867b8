// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"
)

const (
	// DefaultAnalysisDays is the trailing window when none is requested.
	DefaultAnalysisDays = 30

	// trendStableBandPct is the ±band within which spend counts as stable.
	trendStableBandPct = 10.0

	// topCostModelCount caps how many models feed the savings estimate.
	topCostModelCount = 5
)

// AnalyzeUsagePatterns aggregates a user's provider/model spend over the
// trailing window, classifies the 7-day cost trend and estimates the
// savings available from switching top-cost models to cheaper eligible
// substitutes.
func (o *Optimizer) AnalyzeUsagePatterns(ctx context.Context, userID string, days int) (*UsageAnalysis, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if days <= 0 {
		days = DefaultAnalysisDays
	}

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)

	byModel, err := o.repo.ModelUsageSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate model usage: %w", err)
	}

	daily, err := o.repo.DailyCostsSince(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily costs: %w", err)
	}

	var total float64
	for _, u := range byModel {
		total += u.TotalCostUSD
	}

	sort.SliceStable(byModel, func(i, j int) bool {
		return byModel[i].TotalCostUSD > byModel[j].TotalCostUSD
	})

	trend, changePct := classifyTrend(daily, now)

	analysis := &UsageAnalysis{
		UserID:              userID,
		WindowDays:          days,
		TotalCostUSD:        total,
		ByModel:             byModel,
		DailyCosts:          daily,
		Trend:               trend,
		TrendChangePct:      changePct,
		EstimatedSavingsUSD: o.estimateSavings(ctx, byModel),
		GeneratedAt:         now,
	}

	return analysis, nil
}

// classifyTrend compares the most recent 7 days of spend against the
// prior 7 days. Changes within ±10% are stable.
func classifyTrend(daily []DailyCost, now time.Time) (CostTrend, float64) {
	recentCut := now.AddDate(0, 0, -7)
	priorCut := now.AddDate(0, 0, -14)

	var recent, prior float64
	for _, d := range daily {
		switch {
		case d.Day.After(recentCut):
			recent += d.CostUSD
		case d.Day.After(priorCut):
			prior += d.CostUSD
		}
	}

	if prior == 0 {
		if recent > 0 {
			return TrendIncreasing, 100
		}
		return TrendStable, 0
	}

	changePct := (recent - prior) / prior * 100
	switch {
	case changePct > trendStableBandPct:
		return TrendIncreasing, changePct
	case changePct < -trendStableBandPct:
		return TrendDecreasing, changePct
	default:
		return TrendStable, changePct
	}
}

// estimateSavings re-runs the cost filter against the catalog for each
// top-cost model and sums what the same spend would have cost on the
// cheapest unrestricted substitute. Best effort: a catalog failure
// yields zero rather than failing the analysis.
func (o *Optimizer) estimateSavings(ctx context.Context, byModel []ModelUsage) float64 {
	models, err := o.catalog(ctx)
	if err != nil {
		o.log.Warn("", "", "savings estimate skipped: catalog unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		return 0
	}

	cheapestRate := -1.0
	rates := make(map[string]float64, len(models))
	for _, m := range models {
		rate := blendedRate(m)
		rates[m.Provider+"/"+m.ModelID] = rate
		if !m.Restricted() && (cheapestRate < 0 || rate < cheapestRate) {
			cheapestRate = rate
		}
	}
	if cheapestRate < 0 {
		return 0
	}

	var savings float64
	limit := topCostModelCount
	if len(byModel) < limit {
		limit = len(byModel)
	}
	for _, u := range byModel[:limit] {
		currentRate, ok := rates[u.Provider+"/"+u.ModelID]
		if !ok || currentRate <= 0 {
			continue
		}
		if cheapestRate < currentRate {
			savings += u.TotalCostUSD * (1 - cheapestRate/currentRate)
		}
	}
	return savings
}

// blendedRate is the per-1K token cost assuming the 60/40 split used by
// the optimizer's cost estimate.
func blendedRate(m Model) float64 {
	return m.InputCostPer1K*inputCostWeight + m.OutputCostPer1K*outputCostWeight
}
