// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

// Package provider defines the unified LLM provider interface used by the
// gateway and a registry of configured provider adapters.
package provider

import (
	"context"
	"time"
)

// CompletionRequest is the unified request shape passed to any adapter.
type CompletionRequest struct {
	// Prompt is the user's input text.
	Prompt string `json:"prompt"`

	// SystemPrompt optionally sets context/behavior.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Model selects the provider-specific model ID.
	Model string `json:"model,omitempty"`

	// MaxTokens limits the response length. 0 uses adapter defaults.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness. Zero or negative values use
	// adapter defaults.
	Temperature float64 `json:"temperature,omitempty"`
}

// CompletionResponse is the unified result of a completion call.
type CompletionResponse struct {
	Content      string        `json:"content"`
	Model        string        `json:"model"`
	FinishReason string        `json:"finish_reason,omitempty"`
	Usage        UsageStats    `json:"usage"`
	Latency      time.Duration `json:"latency"`
}

// UsageStats tracks token usage for metering.
type UsageStats struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Provider is one configured LLM backend.
type Provider interface {
	// Name returns the provider identifier used in the model catalog
	// (e.g. "anthropic", "openai").
	Name() string

	// Complete generates a completion for the request.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsHealthy reports whether the provider served its last call.
	IsHealthy() bool
}
