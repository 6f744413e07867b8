// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var modelRowColumns = []string{
	"id", "provider", "model_id", "display_name", "input_cost_per_1k",
	"output_cost_per_1k", "average_latency_ms", "context_window", "reasoning",
	"thinking", "artifacts", "allowed_roles", "active", "chat_enabled", "updated_at",
}

func addModelRow(rows *sqlmock.Rows, id, provider, modelID string, roles []byte) *sqlmock.Rows {
	return rows.AddRow(
		id, provider, modelID, "Display "+modelID, 0.005,
		0.015, 400, 200_000, true,
		false, true, roles, true, true, time.Now().UTC(),
	)
}

func TestPostgresListChatModels(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows(modelRowColumns)
	rows = addModelRow(rows, "m1", "anthropic", "claude-haiku", nil)
	rows = addModelRow(rows, "m2", "openai", "gpt-4o", []byte(`["admin","analyst"]`))

	mock.ExpectQuery("SELECT (.+) FROM nexus_models").WillReturnRows(rows)

	repo := NewPostgresRepository(db)
	models, err := repo.ListChatModels(context.Background())
	if err != nil {
		t.Fatalf("ListChatModels() error = %v", err)
	}

	if len(models) != 2 {
		t.Fatalf("models = %d, want 2", len(models))
	}
	if models[0].ID != "m1" || models[0].Provider != "anthropic" {
		t.Errorf("first model = %+v, want m1/anthropic", models[0])
	}
	if len(models[0].AllowedRoles) != 0 {
		t.Errorf("m1 allowed roles = %v, want none", models[0].AllowedRoles)
	}
	if len(models[1].AllowedRoles) != 2 {
		t.Errorf("m2 allowed roles = %v, want [admin analyst]", models[1].AllowedRoles)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresListModelsWithFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM nexus_models").
		WithArgs("openai").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows := sqlmock.NewRows(modelRowColumns)
	rows = addModelRow(rows, "m2", "openai", "gpt-4o", nil)
	mock.ExpectQuery("SELECT (.+) FROM nexus_models").
		WithArgs("openai", 50, 0).
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)
	models, total, err := repo.ListModels(context.Background(), ListModelsOptions{
		Provider: "openai",
		Limit:    50,
	})
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if total != 1 || len(models) != 1 {
		t.Errorf("total = %d, models = %d, want 1 each", total, len(models))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresGetModelNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM nexus_models").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(modelRowColumns))

	repo := NewPostgresRepository(db)
	_, err = repo.GetModel(context.Background(), "missing")
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("GetModel() error = %v, want ErrModelNotFound", err)
	}
}

func TestPostgresUpsertModel(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO nexus_models").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepository(db)
	model := &Model{
		ID:             "m1",
		Provider:       "anthropic",
		ModelID:        "claude-haiku",
		InputCostPer1K: 0.001,
		Active:         true,
		ChatEnabled:    true,
	}
	if err := repo.UpsertModel(context.Background(), model); err != nil {
		t.Fatalf("UpsertModel() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresSetModelActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE nexus_models SET active").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepository(db)
	if err := repo.SetModelActive(context.Background(), "m1", false); err != nil {
		t.Fatalf("SetModelActive() error = %v", err)
	}

	// Zero affected rows maps to not found.
	mock.ExpectExec("UPDATE nexus_models SET active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.SetModelActive(context.Background(), "missing", false)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("SetModelActive() error = %v, want ErrModelNotFound", err)
	}
}

func TestPostgresSaveMetric(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO nexus_provider_metrics").
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepository(db)
	metric := &ProviderMetric{
		RequestID:  "req-1",
		UserID:     "user-1",
		Provider:   "anthropic",
		ModelID:    "claude-haiku",
		TokensIn:   1200,
		TokensOut:  300,
		CostUSD:    0.0021,
		LatencyMs:  420,
		RecordedAt: time.Now().UTC(),
	}
	if err := repo.SaveMetric(context.Background(), metric); err != nil {
		t.Fatalf("SaveMetric() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestPostgresModelUsageSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	since := time.Now().AddDate(0, 0, -30)
	rows := sqlmock.NewRows([]string{"provider", "model_id", "sum_cost", "sum_in", "sum_out", "count"}).
		AddRow("anthropic", "claude-opus", 14.0, 120000, 30000, 40).
		AddRow("openai", "gpt-4o-mini", 2.5, 400000, 90000, 120)

	mock.ExpectQuery("SELECT provider, model_id, COALESCE").
		WithArgs("user-1", since).
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)
	usage, err := repo.ModelUsageSince(context.Background(), "user-1", since)
	if err != nil {
		t.Fatalf("ModelUsageSince() error = %v", err)
	}

	if len(usage) != 2 {
		t.Fatalf("usage rows = %d, want 2", len(usage))
	}
	if usage[0].ModelID != "claude-opus" || !floatEquals(usage[0].TotalCostUSD, 14.0) {
		t.Errorf("first usage row = %+v, want claude-opus at 14.0", usage[0])
	}
	if usage[1].RequestCount != 120 {
		t.Errorf("request count = %d, want 120", usage[1].RequestCount)
	}
}

func TestPostgresDailyCostsSince(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	defer db.Close()

	since := time.Now().AddDate(0, 0, -14)
	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"day", "cost"}).
		AddRow(day1, 1.25).
		AddRow(day2, 0.75)

	mock.ExpectQuery("SELECT date_trunc").
		WithArgs("user-1", since).
		WillReturnRows(rows)

	repo := NewPostgresRepository(db)
	daily, err := repo.DailyCostsSince(context.Background(), "user-1", since)
	if err != nil {
		t.Fatalf("DailyCostsSince() error = %v", err)
	}

	if len(daily) != 2 {
		t.Fatalf("daily rows = %d, want 2", len(daily))
	}
	if !daily[0].Day.Equal(day1) || !floatEquals(daily[0].CostUSD, 1.25) {
		t.Errorf("first daily row = %+v, want %v at 1.25", daily[0], day1)
	}
}
