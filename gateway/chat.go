// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"nexus/platform/optimizer"
	"nexus/platform/provider"
	"nexus/platform/session"
	"nexus/platform/shared/logger"
)

// ChatHandler serves the chat endpoint: it picks a model via the cost
// optimizer, calls the provider, and records the resulting usage metric.
type ChatHandler struct {
	opt       *optimizer.Optimizer
	providers *provider.Registry
	sessions  *session.Cache
	store     *session.RedisStore // nil when Redis is not configured
	log       *logger.Logger
}

// NewChatHandler creates a chat handler. store may be nil; sessions then
// live only in the local cache.
func NewChatHandler(opt *optimizer.Optimizer, providers *provider.Registry, sessions *session.Cache, store *session.RedisStore) *ChatHandler {
	return &ChatHandler{
		opt:       opt,
		providers: providers,
		sessions:  sessions,
		store:     store,
		log:       logger.New("chat-handler"),
	}
}

// ChatRequest is the inbound chat payload.
type ChatRequest struct {
	SessionID       string             `json:"session_id,omitempty"`
	Message         string             `json:"message"`
	SystemPrompt    string             `json:"system_prompt,omitempty"`
	Priority        optimizer.Priority `json:"priority,omitempty"`
	BudgetUSD       float64            `json:"budget_usd,omitempty"`
	EstimatedTokens int                `json:"estimated_tokens,omitempty"`
	MaxTokens       int                `json:"max_tokens,omitempty"`
	Temperature     float64            `json:"temperature,omitempty"`
}

// ChatResponse is the outbound chat payload.
type ChatResponse struct {
	SessionID    string  `json:"session_id"`
	Content      string  `json:"content"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	FinishReason string  `json:"finish_reason,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	LatencyMs    int64   `json:"latency_ms"`
}

// Chat handles POST /api/v1/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid_request", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		writeJSONError(w, "invalid_request", "message is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	userID := UserIDFromContext(ctx)
	if userID == "" {
		userID = r.Header.Get("X-User-ID")
	}

	state := h.loadOrCreateSession(r, req.SessionID, userID)

	// Pick a model for this request.
	rec, err := h.opt.Optimize(ctx, optimizer.Request{
		UserID:          userID,
		EstimatedTokens: req.EstimatedTokens,
		BudgetUSD:       req.BudgetUSD,
		Priority:        req.Priority,
	})
	if err != nil {
		if errors.Is(err, optimizer.ErrNoEligibleModels) {
			writeJSONError(w, "no_eligible_models", err.Error(), http.StatusUnprocessableEntity)
			return
		}
		if errors.Is(err, optimizer.ErrInvalidPriority) {
			writeJSONError(w, "invalid_priority", err.Error(), http.StatusBadRequest)
			return
		}
		h.log.ErrWith(userID, state.ID, "model selection failed", err, nil)
		writeJSONError(w, "optimizer_error", "model selection failed", http.StatusInternalServerError)
		return
	}
	promRecommendations.WithLabelValues(string(rec.Priority)).Inc()

	p, err := h.providers.Get(rec.Provider)
	if err != nil {
		h.log.ErrWith(userID, state.ID, "recommended provider not registered", err, map[string]interface{}{
			"provider": rec.Provider,
		})
		writeJSONError(w, "provider_unavailable", "provider not available: "+rec.Provider, http.StatusBadGateway)
		return
	}

	completion, err := p.Complete(ctx, provider.CompletionRequest{
		Prompt:       req.Message,
		SystemPrompt: req.SystemPrompt,
		Model:        rec.Model,
		MaxTokens:    req.MaxTokens,
		Temperature:  req.Temperature,
	})
	if err != nil {
		promProviderCalls.WithLabelValues(rec.Provider, "error").Inc()
		h.log.ErrWith(userID, state.ID, "provider call failed", err, map[string]interface{}{
			"provider": rec.Provider,
			"model":    rec.Model,
		})
		writeJSONError(w, "provider_error", "completion failed", http.StatusBadGateway)
		return
	}
	promProviderCalls.WithLabelValues(rec.Provider, "success").Inc()
	promRequestDuration.WithLabelValues("llm").Observe(float64(completion.Latency.Milliseconds()))

	metric := &optimizer.ProviderMetric{
		RequestID: uuid.New().String(),
		UserID:    userID,
		Provider:  rec.Provider,
		ModelID:   rec.Model,
		TokensIn:  completion.Usage.InputTokens,
		TokensOut: completion.Usage.OutputTokens,
		LatencyMs: completion.Latency.Milliseconds(),
	}
	if err := h.opt.RecordMetric(ctx, metric); err != nil {
		// Usage metering failures never fail the chat request.
		h.log.ErrWith(userID, state.ID, "failed to record usage metric", err, nil)
	}

	h.updateSession(r, state, rec.Provider, rec.Model)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(ChatResponse{
		SessionID:    state.ID,
		Content:      completion.Content,
		Provider:     rec.Provider,
		Model:        completion.Model,
		FinishReason: completion.FinishReason,
		InputTokens:  completion.Usage.InputTokens,
		OutputTokens: completion.Usage.OutputTokens,
		CostUSD:      metric.CostUSD,
		LatencyMs:    completion.Latency.Milliseconds(),
	}); err != nil {
		h.log.Error("", state.ID, "failed to encode chat response", nil)
	}
}

// GetSession handles GET /api/v1/sessions/{id} lookups via the local
// cache with a Redis fallback.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	state, ok := h.sessions.Get(sessionID)
	if !ok && h.store != nil {
		loaded, err := h.store.Load(r.Context(), sessionID)
		if err == nil {
			state, ok = loaded, true
			h.sessions.Set(state)
		}
	}
	if !ok {
		writeJSONError(w, "not_found", "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(state)
}

// DeleteSession handles DELETE /api/v1/sessions/{id}.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	h.sessions.Delete(sessionID)
	if h.store != nil {
		if err := h.store.Delete(r.Context(), sessionID); err != nil {
			h.log.ErrWith("", sessionID, "failed to delete session from redis", err, nil)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) loadOrCreateSession(r *http.Request, sessionID, userID string) *session.State {
	if sessionID != "" {
		if state, ok := h.sessions.Get(sessionID); ok {
			return state
		}
		if h.store != nil {
			if state, err := h.store.Load(r.Context(), sessionID); err == nil {
				h.sessions.Set(state)
				return state
			}
		}
	}

	now := time.Now().UTC()
	state := &session.State{
		ID:         uuid.New().String(),
		UserID:     userID,
		CreatedAt:  now,
		LastActive: now,
	}
	h.sessions.Set(state)
	return state
}

func (h *ChatHandler) updateSession(r *http.Request, state *session.State, providerName, model string) {
	state.Provider = providerName
	state.Model = model
	state.MessageCount++
	state.LastActive = time.Now().UTC()
	h.sessions.Set(state)

	if h.store != nil {
		if err := h.store.Save(r.Context(), state); err != nil {
			h.log.ErrWith(state.UserID, state.ID, "failed to persist session to redis", err, nil)
		}
	}
}

func writeJSONError(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
