// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const modelColumns = `id, provider, model_id, display_name, input_cost_per_1k,
	   output_cost_per_1k, average_latency_ms, context_window, reasoning,
	   thinking, artifacts, allowed_roles, active, chat_enabled, updated_at`

// ListChatModels returns all active, chat-enabled catalog rows
func (r *PostgresRepository) ListChatModels(ctx context.Context) ([]Model, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM nexus_models
		WHERE active AND chat_enabled
		ORDER BY provider, model_id
	`, modelColumns)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat models: %w", err)
	}
	defer rows.Close()

	return scanModels(rows)
}

// ListModels lists catalog rows with filtering and pagination
func (r *PostgresRepository) ListModels(ctx context.Context, opts ListModelsOptions) ([]Model, int, error) {
	var conditions []string
	var args []interface{}
	argIndex := 1

	if opts.Provider != "" {
		conditions = append(conditions, fmt.Sprintf("provider = $%d", argIndex))
		args = append(args, opts.Provider)
		argIndex++
	}
	if opts.ActiveOnly {
		conditions = append(conditions, "active")
	}
	if opts.ChatEnabled != nil {
		conditions = append(conditions, fmt.Sprintf("chat_enabled = $%d", argIndex))
		args = append(args, *opts.ChatEnabled)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM nexus_models %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count models: %w", err)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM nexus_models
		%s
		ORDER BY provider, model_id
		LIMIT $%d OFFSET $%d
	`, modelColumns, whereClause, argIndex, argIndex+1)

	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list models: %w", err)
	}
	defer rows.Close()

	models, err := scanModels(rows)
	if err != nil {
		return nil, 0, err
	}
	return models, total, nil
}

// GetModel retrieves a catalog row by ID
func (r *PostgresRepository) GetModel(ctx context.Context, id string) (*Model, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM nexus_models
		WHERE id = $1
	`, modelColumns)

	row := r.db.QueryRowContext(ctx, query, id)

	model, err := scanModel(row)
	if err == sql.ErrNoRows {
		return nil, ErrModelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get model: %w", err)
	}
	return model, nil
}

// UpsertModel creates or replaces a catalog row
func (r *PostgresRepository) UpsertModel(ctx context.Context, model *Model) error {
	roles, err := json.Marshal(model.AllowedRoles)
	if err != nil {
		return fmt.Errorf("failed to marshal allowed roles: %w", err)
	}

	query := `
		INSERT INTO nexus_models (
			id, provider, model_id, display_name, input_cost_per_1k,
			output_cost_per_1k, average_latency_ms, context_window, reasoning,
			thinking, artifacts, allowed_roles, active, chat_enabled, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			provider = EXCLUDED.provider,
			model_id = EXCLUDED.model_id,
			display_name = EXCLUDED.display_name,
			input_cost_per_1k = EXCLUDED.input_cost_per_1k,
			output_cost_per_1k = EXCLUDED.output_cost_per_1k,
			average_latency_ms = EXCLUDED.average_latency_ms,
			context_window = EXCLUDED.context_window,
			reasoning = EXCLUDED.reasoning,
			thinking = EXCLUDED.thinking,
			artifacts = EXCLUDED.artifacts,
			allowed_roles = EXCLUDED.allowed_roles,
			active = EXCLUDED.active,
			chat_enabled = EXCLUDED.chat_enabled,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		model.ID, model.Provider, model.ModelID, nullString(model.DisplayName),
		model.InputCostPer1K, model.OutputCostPer1K, model.AverageLatencyMs,
		model.ContextWindow, model.Reasoning, model.Thinking, model.Artifacts,
		roles, model.Active, model.ChatEnabled, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert model: %w", err)
	}

	return nil
}

// SetModelActive enables or disables a catalog row
func (r *PostgresRepository) SetModelActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE nexus_models SET active = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update model: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return ErrModelNotFound
	}

	return nil
}

// SaveMetric records one provider call
func (r *PostgresRepository) SaveMetric(ctx context.Context, metric *ProviderMetric) error {
	query := `
		INSERT INTO nexus_provider_metrics (
			request_id, user_id, provider, model_id, tokens_in,
			tokens_out, cost_usd, latency_ms, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		nullString(metric.RequestID), nullString(metric.UserID),
		metric.Provider, metric.ModelID, metric.TokensIn,
		metric.TokensOut, metric.CostUSD, metric.LatencyMs, metric.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save metric: %w", err)
	}

	return nil
}

// ModelUsageSince aggregates per provider/model spend for a user
func (r *PostgresRepository) ModelUsageSince(ctx context.Context, userID string, since time.Time) ([]ModelUsage, error) {
	query := `
		SELECT provider, model_id, COALESCE(SUM(cost_usd), 0),
			   COALESCE(SUM(tokens_in), 0), COALESCE(SUM(tokens_out), 0), COUNT(*)
		FROM nexus_provider_metrics
		WHERE user_id = $1 AND recorded_at >= $2
		GROUP BY provider, model_id
		ORDER BY SUM(cost_usd) DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage: %w", err)
	}
	defer rows.Close()

	var usage []ModelUsage
	for rows.Next() {
		var u ModelUsage
		if err := rows.Scan(&u.Provider, &u.ModelID, &u.TotalCostUSD,
			&u.TotalTokensIn, &u.TotalTokensOut, &u.RequestCount); err != nil {
			return nil, fmt.Errorf("failed to scan usage row: %w", err)
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}

// DailyCostsSince returns the per-day spend series for a user
func (r *PostgresRepository) DailyCostsSince(ctx context.Context, userID string, since time.Time) ([]DailyCost, error) {
	query := `
		SELECT date_trunc('day', recorded_at) AS day, COALESCE(SUM(cost_usd), 0)
		FROM nexus_provider_metrics
		WHERE user_id = $1 AND recorded_at >= $2
		GROUP BY day
		ORDER BY day
	`

	rows, err := r.db.QueryContext(ctx, query, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load daily costs: %w", err)
	}
	defer rows.Close()

	var daily []DailyCost
	for rows.Next() {
		var d DailyCost
		if err := rows.Scan(&d.Day, &d.CostUSD); err != nil {
			return nil, fmt.Errorf("failed to scan daily cost: %w", err)
		}
		daily = append(daily, d)
	}
	return daily, rows.Err()
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanModel(row rowScanner) (*Model, error) {
	var m Model
	var displayName sql.NullString
	var roles []byte

	err := row.Scan(
		&m.ID, &m.Provider, &m.ModelID, &displayName, &m.InputCostPer1K,
		&m.OutputCostPer1K, &m.AverageLatencyMs, &m.ContextWindow, &m.Reasoning,
		&m.Thinking, &m.Artifacts, &roles, &m.Active, &m.ChatEnabled, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.DisplayName = displayName.String
	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &m.AllowedRoles); err != nil {
			return nil, fmt.Errorf("failed to unmarshal allowed roles: %w", err)
		}
	}

	return &m, nil
}

func scanModels(rows *sql.Rows) ([]Model, error) {
	var models []Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models = append(models, *m)
	}
	return models, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
