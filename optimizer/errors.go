// Copyright 2025 Nexus
// SPDX-License-Identifier: Apache-2.0

package optimizer

import "errors"

var (
	// ErrNoEligibleModels is returned when the filters leave no candidates
	ErrNoEligibleModels = errors.New("no eligible models for request")

	// ErrModelNotFound is returned when a catalog row is not found
	ErrModelNotFound = errors.New("model not found")

	// ErrModelExists is returned when creating a catalog row that already exists
	ErrModelExists = errors.New("model already exists")

	// ErrInvalidModelID is returned for an empty catalog row ID
	ErrInvalidModelID = errors.New("invalid model ID")

	// ErrInvalidModelRef is returned when provider or model_id is empty
	ErrInvalidModelRef = errors.New("provider and model_id are required")

	// ErrInvalidModelCost is returned for negative per-1K token costs
	ErrInvalidModelCost = errors.New("model costs must not be negative")

	// ErrInvalidModelLatency is returned for a negative average latency
	ErrInvalidModelLatency = errors.New("average latency must not be negative")

	// ErrInvalidPriority is returned for an unrecognized priority value
	ErrInvalidPriority = errors.New("invalid priority: must be cost, speed, quality, or balanced")

	// ErrInvalidUserID is returned when usage analysis is requested without a user
	ErrInvalidUserID = errors.New("user ID is required")

	// ErrInvalidInput is returned for general invalid input
	ErrInvalidInput = errors.New("invalid input")
)
