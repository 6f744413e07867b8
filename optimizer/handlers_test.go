// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
)

func newTestHandler(repo *MockRepository) (*Handler, *mux.Router) {
	h := NewHandler(New(repo))
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return h, r
}

func TestOptimizeEndpoint(t *testing.T) {
	repo := NewMockRepository()
	repo.models = []Model{
		chatModel("m1", "anthropic", "claude-haiku", 0.005, 400),
		chatModel("m2", "openai", "gpt-4o", 0.02, 800),
	}
	_, router := newTestHandler(repo)

	body, _ := json.Marshal(Request{Priority: PriorityCost})
	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var rec Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if rec.Model != "claude-haiku" {
		t.Errorf("recommended model = %s, want claude-haiku", rec.Model)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("CORS header missing")
	}
}

func TestOptimizeEndpointInvalidBody(t *testing.T) {
	_, router := newTestHandler(NewMockRepository())

	req := httptest.NewRequest("POST", "/api/v1/optimize", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOptimizeEndpointInvalidPriority(t *testing.T) {
	_, router := newTestHandler(NewMockRepository())

	req := httptest.NewRequest("POST", "/api/v1/optimize",
		bytes.NewReader([]byte(`{"priority":"fastest"}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOptimizeEndpointNoEligibleModels(t *testing.T) {
	repo := NewMockRepository()
	repo.models = []Model{
		chatModel("m1", "openai", "pricey", 1.0, 500),
	}
	_, router := newTestHandler(repo)

	req := httptest.NewRequest("POST", "/api/v1/optimize",
		bytes.NewReader([]byte(`{"budget_usd":0.0001}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", w.Code)
	}
}

func TestUsagePatternsEndpoint(t *testing.T) {
	repo := NewMockRepository()
	repo.usage = []ModelUsage{
		{Provider: "openai", ModelID: "gpt-4o", TotalCostUSD: 6.0},
	}
	_, router := newTestHandler(repo)

	req := httptest.NewRequest("GET", "/api/v1/usage/patterns?user_id=user-1&days=14", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	var analysis UsageAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if analysis.WindowDays != 14 {
		t.Errorf("window days = %d, want 14", analysis.WindowDays)
	}
	if !floatEquals(analysis.TotalCostUSD, 6.0) {
		t.Errorf("total cost = %v, want 6.0", analysis.TotalCostUSD)
	}
}

func TestUsagePatternsEndpointUserFromHeader(t *testing.T) {
	_, router := newTestHandler(NewMockRepository())

	req := httptest.NewRequest("GET", "/api/v1/usage/patterns", nil)
	req.Header.Set("X-User-ID", "user-2")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
}

func TestUsagePatternsEndpointMissingUser(t *testing.T) {
	_, router := newTestHandler(NewMockRepository())

	req := httptest.NewRequest("GET", "/api/v1/usage/patterns", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestUsagePatternsEndpointClampsDays(t *testing.T) {
	_, router := newTestHandler(NewMockRepository())

	req := httptest.NewRequest("GET", "/api/v1/usage/patterns?user_id=u&days=9999", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var analysis UsageAnalysis
	if err := json.Unmarshal(w.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if analysis.WindowDays != DefaultAnalysisDays {
		t.Errorf("window days = %d, want default %d", analysis.WindowDays, DefaultAnalysisDays)
	}
}

func TestListModelsEndpoint(t *testing.T) {
	repo := NewMockRepository()
	repo.models = []Model{
		chatModel("m1", "anthropic", "claude-haiku", 0.005, 400),
		chatModel("m2", "openai", "gpt-4o", 0.02, 800),
	}
	_, router := newTestHandler(repo)

	req := httptest.NewRequest("GET", "/api/v1/models?provider=openai", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Models []Model `json:"models"`
		Total  int     `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Models) != 1 {
		t.Fatalf("total = %d, models = %d, want 1 each", resp.Total, len(resp.Models))
	}
	if resp.Models[0].Provider != "openai" {
		t.Errorf("provider = %s, want openai", resp.Models[0].Provider)
	}
}

func TestListModelsEndpointFiltersAndPaginates(t *testing.T) {
	repo := NewMockRepository()
	embed := chatModel("m4", "openai", "text-embedding-3", 0.0001, 100)
	embed.ChatEnabled = false
	repo.models = []Model{
		chatModel("m1", "openai", "gpt-4o-mini", 0.001, 300),
		chatModel("m2", "openai", "gpt-4o", 0.02, 800),
		chatModel("m3", "openai", "o1", 0.06, 1500),
		embed,
	}
	_, router := newTestHandler(repo)

	var resp struct {
		Models []Model `json:"models"`
		Total  int     `json:"total"`
		Limit  int     `json:"limit"`
		Offset int     `json:"offset"`
	}

	// chat_enabled=false returns only the non-chat row.
	req := httptest.NewRequest("GET", "/api/v1/models?chat_enabled=false", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 1 || len(resp.Models) != 1 || resp.Models[0].ID != "m4" {
		t.Errorf("chat_enabled=false returned %+v, want only m4", resp.Models)
	}

	// limit/offset page through; total counts the full filtered set.
	req = httptest.NewRequest("GET", "/api/v1/models?chat_enabled=true&limit=2&offset=2", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Total != 3 {
		t.Errorf("total = %d, want 3 chat-enabled rows", resp.Total)
	}
	if len(resp.Models) != 1 || resp.Models[0].ID != "m3" {
		t.Errorf("page = %+v, want only m3", resp.Models)
	}
	if resp.Limit != 2 || resp.Offset != 2 {
		t.Errorf("limit/offset echoed as %d/%d, want 2/2", resp.Limit, resp.Offset)
	}
}

func TestGetModelEndpoint(t *testing.T) {
	repo := NewMockRepository()
	repo.models = []Model{
		chatModel("m1", "anthropic", "claude-haiku", 0.005, 400),
	}
	_, router := newTestHandler(repo)

	req := httptest.NewRequest("GET", "/api/v1/models/m1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/models/missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown model", w.Code)
	}
}

func TestUpsertModelEndpointInvalidatesCache(t *testing.T) {
	repo := NewMockRepository()
	repo.models = []Model{
		chatModel("m1", "anthropic", "claude-haiku", 0.005, 400),
	}
	h, router := newTestHandler(repo)

	// Warm the catalog cache.
	if _, err := h.opt.Optimize(httptest.NewRequest("GET", "/", nil).Context(), Request{}); err != nil {
		t.Fatalf("warmup Optimize() error = %v", err)
	}
	if repo.listChatCalls != 1 {
		t.Fatalf("catalog fetches = %d, want 1 after warmup", repo.listChatCalls)
	}

	model := chatModel("m2", "openai", "gpt-4o", 0.02, 800)
	body, _ := json.Marshal(model)
	req := httptest.NewRequest("PUT", "/api/v1/models/m2", bytes.NewReader(body))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", w.Code, w.Body.String())
	}

	// Next optimization must see the new catalog row.
	rec, err := h.opt.Optimize(httptest.NewRequest("GET", "/", nil).Context(), Request{Priority: PriorityCost})
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if rec.EligibleCount != 2 {
		t.Errorf("eligible count = %d, want 2 after catalog write", rec.EligibleCount)
	}
	if repo.listChatCalls != 2 {
		t.Errorf("catalog fetches = %d, want 2 (cache invalidated)", repo.listChatCalls)
	}
}

func TestUpsertModelEndpointValidation(t *testing.T) {
	_, router := newTestHandler(NewMockRepository())

	// Missing provider/model refs fail validation.
	req := httptest.NewRequest("PUT", "/api/v1/models/m9",
		bytes.NewReader([]byte(`{"input_cost_per_1k":0.01}`)))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestDisableModelEndpoint(t *testing.T) {
	repo := NewMockRepository()
	repo.models = []Model{
		chatModel("m1", "anthropic", "claude-haiku", 0.005, 400),
	}
	_, router := newTestHandler(repo)

	req := httptest.NewRequest("DELETE", "/api/v1/models/m1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if repo.models[0].Active {
		t.Error("model still active after disable")
	}

	req = httptest.NewRequest("DELETE", "/api/v1/models/missing", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unknown model", w.Code)
	}
}
