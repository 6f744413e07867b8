// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// Handler provides HTTP handlers for the optimizer APIs
type Handler struct {
	opt *Optimizer
}

// NewHandler creates a new optimizer handler
func NewHandler(opt *Optimizer) *Handler {
	return &Handler{opt: opt}
}

// RegisterRoutes registers all optimizer routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/optimize", h.Optimize).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/v1/usage/patterns", h.UsagePatterns).Methods("GET", "OPTIONS")

	// Model catalog administration
	r.HandleFunc("/api/v1/models", h.ListModels).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/models/{id}", h.GetModel).Methods("GET", "OPTIONS")
	r.HandleFunc("/api/v1/models/{id}", h.UpsertModel).Methods("PUT", "OPTIONS")
	r.HandleFunc("/api/v1/models/{id}", h.DisableModel).Methods("DELETE", "OPTIONS")
}

// Optimize handles POST /api/v1/optimize
func (h *Handler) Optimize(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		req.UserID = r.Header.Get("X-User-ID")
	}

	rec, err := h.opt.Optimize(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidPriority):
			h.writeError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrNoEligibleModels):
			h.writeError(w, "No model satisfies the budget and priority constraints", http.StatusUnprocessableEntity)
		default:
			h.writeError(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rec)
}

// UsagePatterns handles GET /api/v1/usage/patterns
func (h *Handler) UsagePatterns(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	query := r.URL.Query()
	userID := firstOrDefault(query.Get("user_id"), r.Header.Get("X-User-ID"))
	if userID == "" {
		h.writeError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	days := DefaultAnalysisDays
	if d := query.Get("days"); d != "" {
		days, _ = strconv.Atoi(d)
	}
	if days <= 0 || days > 365 {
		days = DefaultAnalysisDays
	}

	analysis, err := h.opt.AnalyzeUsagePatterns(r.Context(), userID, days)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(analysis)
}

// ListModels handles GET /api/v1/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	query := r.URL.Query()

	opts := ListModelsOptions{
		Provider:   query.Get("provider"),
		ActiveOnly: query.Get("active") == "true",
	}
	if chat := query.Get("chat_enabled"); chat != "" {
		c := chat == "true"
		opts.ChatEnabled = &c
	}
	if limit := query.Get("limit"); limit != "" {
		opts.Limit, _ = strconv.Atoi(limit)
	}
	if opts.Limit <= 0 || opts.Limit > 1000 {
		opts.Limit = 100
	}
	if offset := query.Get("offset"); offset != "" {
		opts.Offset, _ = strconv.Atoi(offset)
	}

	models, total, err := h.opt.ListModels(r.Context(), opts)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"models": models,
		"total":  total,
		"limit":  opts.Limit,
		"offset": opts.Offset,
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

// GetModel handles GET /api/v1/models/{id}
func (h *Handler) GetModel(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		h.writeError(w, "Model ID required", http.StatusBadRequest)
		return
	}

	model, err := h.opt.GetModel(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrModelNotFound) {
			h.writeError(w, "Model not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(model)
}

// UpsertModel handles PUT /api/v1/models/{id}
func (h *Handler) UpsertModel(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		h.writeError(w, "Model ID required", http.StatusBadRequest)
		return
	}

	var model Model
	if err := json.NewDecoder(r.Body).Decode(&model); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	model.ID = id

	if err := model.Validate(); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.opt.UpsertModel(r.Context(), &model); err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(model)
}

// DisableModel handles DELETE /api/v1/models/{id}
//
// Catalog rows are disabled rather than deleted so historical metrics keep
// their pricing reference.
func (h *Handler) DisableModel(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	id := mux.Vars(r)["id"]
	if id == "" {
		h.writeError(w, "Model ID required", http.StatusBadRequest)
		return
	}

	if err := h.opt.SetModelActive(r.Context(), id, false); err != nil {
		if errors.Is(err, ErrModelNotFound) {
			h.writeError(w, "Model not found", http.StatusNotFound)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": "disabled",
		"id":     id,
	})
}

// Helper functions

// setCORSHeaders sets CORS headers on all responses (not just OPTIONS)
func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, Authorization")
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func firstOrDefault(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
