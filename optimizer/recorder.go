// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"context"
	"fmt"
	"time"
)

// RecordMetric persists one provider call. When the caller did not supply
// a cost, it is derived from the catalog's per-1K rates using the actual
// token split of the call.
func (o *Optimizer) RecordMetric(ctx context.Context, metric *ProviderMetric) error {
	if metric == nil {
		return ErrInvalidInput
	}
	if metric.Provider == "" || metric.ModelID == "" {
		return ErrInvalidModelRef
	}

	if metric.CostUSD == 0 {
		metric.CostUSD = o.costFromCatalog(ctx, metric)
	}
	if metric.RecordedAt.IsZero() {
		metric.RecordedAt = time.Now().UTC()
	}

	if err := o.repo.SaveMetric(ctx, metric); err != nil {
		return fmt.Errorf("failed to save provider metric: %w", err)
	}

	o.log.Info(metric.UserID, metric.RequestID, "recorded provider metric", map[string]interface{}{
		"provider":   metric.Provider,
		"model":      metric.ModelID,
		"tokens":     metric.TotalTokens(),
		"cost_usd":   metric.CostUSD,
		"latency_ms": metric.LatencyMs,
	})

	return nil
}

// costFromCatalog prices a call from catalog rates, zero when the model
// is unknown.
func (o *Optimizer) costFromCatalog(ctx context.Context, metric *ProviderMetric) float64 {
	models, err := o.catalog(ctx)
	if err != nil {
		return 0
	}
	for _, m := range models {
		if m.Provider == metric.Provider && m.ModelID == metric.ModelID {
			return float64(metric.TokensIn)/1000.0*m.InputCostPer1K +
				float64(metric.TokensOut)/1000.0*m.OutputCostPer1K
		}
	}
	return 0
}
