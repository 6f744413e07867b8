// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"context"
	"time"
)

// Repository defines the interface for catalog and metrics persistence
type Repository interface {
	// Catalog operations
	ListChatModels(ctx context.Context) ([]Model, error)
	ListModels(ctx context.Context, opts ListModelsOptions) ([]Model, int, error)
	GetModel(ctx context.Context, id string) (*Model, error)
	UpsertModel(ctx context.Context, model *Model) error
	SetModelActive(ctx context.Context, id string, active bool) error

	// Metrics operations
	SaveMetric(ctx context.Context, metric *ProviderMetric) error
	ModelUsageSince(ctx context.Context, userID string, since time.Time) ([]ModelUsage, error)
	DailyCostsSince(ctx context.Context, userID string, since time.Time) ([]DailyCost, error)

	// Utility
	Ping(ctx context.Context) error
}
